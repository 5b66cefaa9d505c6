package usecase

import (
	"context"
	"testing"

	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMyProfile_CreatedOnFirstUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	caller := &entity.CallerIdentity{UserID: 42, Email: "late@x.com", Role: entity.RolePatient}

	profile, err := env.patients.GetMyProfile(ctx, caller)
	require.NoError(t, err)
	require.NotNil(t, profile.UserID)
	assert.Equal(t, int64(42), *profile.UserID)
	assert.Equal(t, "late@x.com", profile.Email)
	assert.Nil(t, profile.Gender)

	again, err := env.patients.GetMyProfile(ctx, caller)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, again.ID)
	assert.Equal(t, int64(1), env.countPatients(t))
}

func TestUpdateMyProfile_Overwrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	patient, caller := env.seedRegisteredPatient(t, "p@x.com")
	require.NoError(t, env.db.Model(patient).Update("phone", "123").Error)

	updated, err := env.patients.UpdateMyProfile(ctx, caller, &dto.UpdatePatientRequest{
		FirstName: "New",
		LastName:  "Name",
		DOB:       "1992-02-29",
		Email:     "P@X.com",
		Gender:    "Female",
	})
	require.NoError(t, err)
	assert.Equal(t, patient.ID, updated.ID)
	assert.Equal(t, "New", updated.FirstName)
	assert.Equal(t, "1992-02-29", updated.DOB)
	assert.Equal(t, "p@x.com", updated.Email)
	assert.Empty(t, updated.Phone)

	var stored entity.Patient
	require.NoError(t, env.db.First(&stored, patient.ID).Error)
	assert.Empty(t, stored.Phone)
	assert.Equal(t, entity.GenderFemale, stored.Gender)

	_, err = env.patients.UpdateMyProfile(ctx, caller, &dto.UpdatePatientRequest{Gender: "unknown"})
	assert.ErrorIs(t, err, ErrInvalidGender)

	_, err = env.patients.UpdateMyProfile(ctx, caller, &dto.UpdatePatientRequest{DOB: "1993-02-29"})
	assert.ErrorIs(t, err, ErrInvalidDOB)
}

func TestDoctorPatients(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doctor, doctorCaller := env.seedDoctor(t, "Dr. Who", "General")
	other, _ := env.seedDoctor(t, "Dr. Other", "General")

	created, err := env.patients.CreatePatientForDoctor(ctx, doctorCaller, &dto.CreatePatientRequest{
		FirstName: "Walk", LastName: "In", DOB: "1970-05-05", Gender: "Male",
	})
	require.NoError(t, err)
	require.NotNil(t, created.CreatedByDoctorID)
	assert.Equal(t, doctor.ID, *created.CreatedByDoctorID)
	assert.Nil(t, created.UserID)

	seen, _ := env.seedRegisteredPatient(t, "seen@x.com")
	env.seedAppointment(t, doctor.ID, seen.ID, onJune2(9, 0), entity.AppointmentStatusDone)
	stranger, _ := env.seedRegisteredPatient(t, "stranger@x.com")
	env.seedAppointment(t, other.ID, stranger.ID, onJune2(9, 0), entity.AppointmentStatusScheduled)

	list, err := env.patients.GetDoctorPatients(ctx, doctorCaller)
	require.NoError(t, err)
	require.Equal(t, 2, list.Total)
	assert.Equal(t, seen.ID, list.Patients[0].ID)
	assert.Equal(t, created.ID, list.Patients[1].ID)

	_, err = env.patients.GetDoctorPatients(ctx, &entity.CallerIdentity{UserID: 999, Role: entity.RoleDoctor})
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	_, err = env.patients.CreatePatientForDoctor(ctx, doctorCaller, &dto.CreatePatientRequest{
		FirstName: "Bad", LastName: "Gender", DOB: "1970-05-05", Gender: "X",
	})
	assert.ErrorIs(t, err, ErrInvalidGender)
}

func TestGetRegisteredPatients(t *testing.T) {
	env := newTestEnv(t)
	doctor, _ := env.seedDoctor(t, "Dr. Who", "General")
	env.seedRegisteredPatient(t, "one@x.com")
	_, err := env.booking.CreateAppointment(context.Background(), nil, bookingRequest(doctor.ID, "2025-06-02 08:00", dto.PatientContactRequest{Email: "guest@x.com"}))
	require.NoError(t, err)

	res, err := env.patients.GetRegisteredPatients(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "one@x.com", res.Patients[0].Email)
}

func TestDeletePatient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doctor, _ := env.seedDoctor(t, "Dr. Who", "General")
	patient, caller := env.seedRegisteredPatient(t, "bye@x.com")
	env.seedAppointment(t, doctor.ID, patient.ID, onJune2(8, 0), entity.AppointmentStatusScheduled)

	require.NoError(t, env.patients.DeletePatient(ctx, adminCaller, patient.ID))

	assert.Zero(t, env.countPatients(t))
	assert.Zero(t, env.countAppointments(t))
	var users int64
	require.NoError(t, env.db.Model(&entity.User{}).Where("id = ?", caller.UserID).Count(&users).Error)
	assert.Zero(t, users)
	assert.Equal(t, []int64{caller.UserID}, env.tokens.revoked)

	assert.ErrorIs(t, env.patients.DeletePatient(ctx, adminCaller, patient.ID), ErrPatientNotFound)
}

func TestDeletePatient_GuestKeepsTokensAlone(t *testing.T) {
	env := newTestEnv(t)
	doctor, _ := env.seedDoctor(t, "Dr. Who", "General")
	res, err := env.booking.CreateAppointment(context.Background(), nil, bookingRequest(doctor.ID, "2025-06-02 08:00", dto.PatientContactRequest{}))
	require.NoError(t, err)

	var appt entity.Appointment
	require.NoError(t, env.db.First(&appt, res.ID).Error)
	require.NoError(t, env.patients.DeletePatient(context.Background(), adminCaller, appt.PatientID))
	assert.Empty(t, env.tokens.revoked)
}
