package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackfillFillsOnlyEmptyFields(t *testing.T) {
	oldDOB := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	newDOB := time.Date(2000, 5, 5, 0, 0, 0, 0, time.UTC)

	p := &Patient{FirstName: "Ana", Email: "ana@example.com", DOB: &oldDOB}
	changed := p.Backfill(PatientContact{
		FirstName: "Anna",
		LastName:  "Silva",
		Email:     "other@example.com",
		Phone:     "555-0100",
		Gender:    GenderFemale,
		DOB:       &newDOB,
	})

	assert.True(t, changed)
	assert.Equal(t, "Ana", p.FirstName)
	assert.Equal(t, "Silva", p.LastName)
	assert.Equal(t, "ana@example.com", p.Email)
	assert.Equal(t, "555-0100", p.Phone)
	assert.Equal(t, GenderFemale, p.Gender)
	require.NotNil(t, p.DOB)
	assert.True(t, p.DOB.Equal(oldDOB))
}

func TestBackfillIsIdempotent(t *testing.T) {
	dob := time.Date(1985, 3, 3, 0, 0, 0, 0, time.UTC)
	contact := PatientContact{FirstName: "Li", LastName: "Wei", Phone: "1", DOB: &dob}

	p := &Patient{}
	assert.True(t, p.Backfill(contact))
	snapshot := *p

	assert.False(t, p.Backfill(contact))
	assert.Equal(t, snapshot, *p)
}

func TestBackfillIgnoresEmptyIncoming(t *testing.T) {
	p := &Patient{FirstName: "Keep"}

	assert.False(t, p.Backfill(PatientContact{}))
	assert.Equal(t, "Keep", p.FirstName)
}

func TestNewGuestPatient(t *testing.T) {
	p := NewGuestPatient(PatientContact{FirstName: "Guest", Email: "g@example.com"}, 5)

	assert.False(t, p.IsRegistered())
	require.NotNil(t, p.CreatedByDoctorID)
	assert.Equal(t, int64(5), *p.CreatedByDoctorID)
	assert.Equal(t, "Guest", p.FirstName)
	assert.Equal(t, "g@example.com", p.Email)
}

func TestValidGender(t *testing.T) {
	assert.True(t, ValidGender("Male"))
	assert.True(t, ValidGender("Female"))
	assert.False(t, ValidGender("male"))
	assert.False(t, ValidGender(""))
}

func TestGenderNullMapping(t *testing.T) {
	v, err := GenderUnknown.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = GenderFemale.Value()
	require.NoError(t, err)
	assert.Equal(t, "Female", v)

	var g Gender
	require.NoError(t, g.Scan(nil))
	assert.Equal(t, GenderUnknown, g)
	require.NoError(t, g.Scan([]byte("Male")))
	assert.Equal(t, GenderMale, g)
	assert.Error(t, g.Scan(42))
}

func TestBackfillColumnsSkipsEmptyFields(t *testing.T) {
	dob := time.Date(1999, 9, 9, 0, 0, 0, 0, time.UTC)
	cols := PatientContact{Phone: "555", Gender: GenderMale, DOB: &dob}.BackfillColumns()

	assert.Equal(t, map[string]interface{}{"phone": "555", "gender": "Male", "dob": dob}, cols)
	assert.Empty(t, PatientContact{}.BackfillColumns())
}
