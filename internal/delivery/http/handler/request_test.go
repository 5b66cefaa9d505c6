package handler

import (
	"net/http/httptest"
	"strings"
	"testing"

	"clinic-booking/internal/delivery/dto"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"empty", "", errEmptyBody},
		{"syntax", `{"doctor_id":`, errInvalidBody},
		{"wrong type", `{"scheduled_at": 12}`, errInvalidBody},
		{"non-integer id", `{"doctor_id":"abc"}`, dto.ErrNotAnInteger},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req dto.CreateAppointmentRequest
			err := decodeJSON(httptest.NewRequest("POST", "/", strings.NewReader(tt.body)), &req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	var req dto.CreateAppointmentRequest
	require.NoError(t, decodeJSON(httptest.NewRequest("POST", "/", strings.NewReader(`{"doctor_id":"7","datetime":"2025-06-02 08:00"}`)), &req))
	assert.Equal(t, dto.FlexibleID(7), req.DoctorID)
	assert.Equal(t, "2025-06-02 08:00", req.Timestamp())
}

func TestPathID(t *testing.T) {
	for raw, want := range map[string]bool{"12": true, "0": false, "-3": false, "x": false, "": false} {
		r := mux.SetURLVars(httptest.NewRequest("GET", "/", nil), map[string]string{"id": raw})
		_, ok := pathID(r, "id")
		assert.Equal(t, want, ok, raw)
	}
}

func TestQueryLimit(t *testing.T) {
	n, ok := queryLimit(httptest.NewRequest("GET", "/", nil))
	assert.True(t, ok)
	assert.Zero(t, n)

	n, ok = queryLimit(httptest.NewRequest("GET", "/?limit=25", nil))
	assert.True(t, ok)
	assert.Equal(t, 25, n)

	for _, bad := range []string{"0", "-1", "ten"} {
		_, ok = queryLimit(httptest.NewRequest("GET", "/?limit="+bad, nil))
		assert.False(t, ok, bad)
	}
}
