package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	Conflict(w, "Slot already booked")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "Slot already booked", body.Message)
}

func TestSuccessEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	Success(w, http.StatusOK, "ok", map[string]int{"n": 1})

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]interface{}{"n": float64(1)}, body["data"])
}

func TestDefaultMessages(t *testing.T) {
	w := httptest.NewRecorder()
	NotFound(w, "")

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Resource not found", body.Message)
}
