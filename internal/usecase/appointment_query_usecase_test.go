package usecase

import (
	"context"
	"testing"

	"clinic-booking/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPatientAppointments_LatestSlotFirstWithDoctor(t *testing.T) {
	env := newTestEnv(t)
	doctor, _ := env.seedDoctor(t, "Dr. Strange", "Neurology")
	patient, caller := env.seedRegisteredPatient(t, "p@x.com")
	ctx := context.Background()

	early := env.seedAppointment(t, doctor.ID, patient.ID, onJune2(8, 0), entity.AppointmentStatusDone)
	late := env.seedAppointment(t, doctor.ID, patient.ID, onJune2(15, 0), entity.AppointmentStatusScheduled)
	tieA := env.seedAppointment(t, doctor.ID, patient.ID, onJune2(11, 0), entity.AppointmentStatusCancelled)
	tieB := env.seedAppointment(t, doctor.ID, patient.ID, onJune2(11, 0), entity.AppointmentStatusNone)

	res, err := env.queries.GetPatientAppointments(ctx, caller, 0)
	require.NoError(t, err)
	require.Equal(t, 4, res.Total)

	ids := make([]int64, 0, len(res.Appointments))
	for _, a := range res.Appointments {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []int64{late.ID, tieB.ID, tieA.ID, early.ID}, ids)

	first := res.Appointments[0]
	assert.Equal(t, "Dr. Strange", first.DoctorName)
	assert.Equal(t, "Neurology", first.DoctorSpecialty)
	assert.Equal(t, "Lisbon", first.DoctorCity)
	assert.Equal(t, "2025-06-02 15:00:00", first.ScheduledAt)
	require.NotNil(t, first.Status)
	assert.Equal(t, "scheduled", *first.Status)

	// legacy rows keep a null status
	assert.Nil(t, res.Appointments[1].Status)
}

func TestGetPatientAppointments_Limit(t *testing.T) {
	env := newTestEnv(t)
	doctor, _ := env.seedDoctor(t, "Dr. Who", "General")
	patient, caller := env.seedRegisteredPatient(t, "p@x.com")
	for h := 8; h < 12; h++ {
		env.seedAppointment(t, doctor.ID, patient.ID, onJune2(h, 0), entity.AppointmentStatusScheduled)
	}

	res, err := env.queries.GetPatientAppointments(context.Background(), caller, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, "2025-06-02 11:00:00", res.Appointments[0].ScheduledAt)
}

func TestGetPatientAppointments_NoProfileYet(t *testing.T) {
	env := newTestEnv(t)
	caller := &entity.CallerIdentity{UserID: 777, Role: entity.RolePatient}

	res, err := env.queries.GetPatientAppointments(context.Background(), caller, 0)
	require.NoError(t, err)
	assert.NotNil(t, res.Appointments)
	assert.Empty(t, res.Appointments)
	assert.Zero(t, res.Total)
}

func TestGetPatientAppointments_OnlyOwn(t *testing.T) {
	env := newTestEnv(t)
	doctor, _ := env.seedDoctor(t, "Dr. Who", "General")
	mine, caller := env.seedRegisteredPatient(t, "mine@x.com")
	theirs, _ := env.seedRegisteredPatient(t, "theirs@x.com")
	env.seedAppointment(t, doctor.ID, mine.ID, onJune2(8, 0), entity.AppointmentStatusScheduled)
	env.seedAppointment(t, doctor.ID, theirs.ID, onJune2(9, 0), entity.AppointmentStatusScheduled)

	res, err := env.queries.GetPatientAppointments(context.Background(), caller, 0)
	require.NoError(t, err)
	require.Len(t, res.Appointments, 1)
	assert.Equal(t, mine.ID, res.Appointments[0].PatientID)
}

func TestGetDoctorAppointments_NewestBookingFirstWithPatient(t *testing.T) {
	env := newTestEnv(t)
	doctor, doctorCaller := env.seedDoctor(t, "Dr. Who", "General")
	other, _ := env.seedDoctor(t, "Dr. Other", "General")
	patient, _ := env.seedRegisteredPatient(t, "p@x.com")

	first := env.seedAppointment(t, doctor.ID, patient.ID, onJune2(15, 0), entity.AppointmentStatusScheduled)
	second := env.seedAppointment(t, doctor.ID, patient.ID, onJune2(8, 0), entity.AppointmentStatusScheduled)
	env.seedAppointment(t, other.ID, patient.ID, onJune2(9, 0), entity.AppointmentStatusScheduled)

	res, err := env.queries.GetDoctorAppointments(context.Background(), doctorCaller, 0)
	require.NoError(t, err)
	require.Equal(t, 2, res.Total)
	assert.Equal(t, second.ID, res.Appointments[0].ID)
	assert.Equal(t, first.ID, res.Appointments[1].ID)
	assert.Equal(t, "Reg", res.Appointments[0].PatientFirstName)
	assert.Equal(t, "p@x.com", res.Appointments[0].PatientEmail)
	assert.Empty(t, res.Appointments[0].DoctorName)

	limited, err := env.queries.GetDoctorAppointments(context.Background(), doctorCaller, 1)
	require.NoError(t, err)
	require.Len(t, limited.Appointments, 1)
	assert.Equal(t, second.ID, limited.Appointments[0].ID)
}

func TestGetDoctorAppointments_WithoutProfile(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.queries.GetDoctorAppointments(context.Background(), &entity.CallerIdentity{UserID: 55, Role: entity.RoleDoctor}, 0)
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	_, err = env.queries.GetDoctorAppointments(context.Background(), nil, 0)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 100, clampLimit(0, 100))
	assert.Equal(t, 100, clampLimit(-1, 100))
	assert.Equal(t, 100, clampLimit(500, 100))
	assert.Equal(t, 7, clampLimit(7, 100))
}
