package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"clinic-booking/config"
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookingRequest(doctorID int64, at string, patient dto.PatientContactRequest) *dto.CreateAppointmentRequest {
	return &dto.CreateAppointmentRequest{
		DoctorID:    dto.FlexibleID(doctorID),
		ScheduledAt: at,
		Patient:     &patient,
	}
}

func TestCreateAppointment_GuestIsCreatedForFreshEmail(t *testing.T) {
	env := newTestEnv(t)
	doctor, _ := env.seedDoctor(t, "Dr. House", "Diagnostics")

	res, err := env.booking.CreateAppointment(context.Background(), nil, bookingRequest(doctor.ID, "2025-06-02 08:00:00", dto.PatientContactRequest{
		FirstName: "Guest",
		Email:     "Fresh@Example.com",
		Gender:    "Male",
		DOB:       "1990-04-01",
	}))
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.NotZero(t, res.ID)

	var patient entity.Patient
	require.NoError(t, env.db.First(&patient).Error)
	assert.Nil(t, patient.UserID)
	require.NotNil(t, patient.CreatedByDoctorID)
	assert.Equal(t, doctor.ID, *patient.CreatedByDoctorID)
	assert.Equal(t, "fresh@example.com", patient.Email)
	require.NotNil(t, patient.DOB)
	assert.Equal(t, "1990-04-01", patient.DOB.Format(entity.DateLayout))

	var appt entity.Appointment
	require.NoError(t, env.db.First(&appt, res.ID).Error)
	assert.Equal(t, entity.AppointmentStatusScheduled, appt.Status)
	assert.Equal(t, patient.ID, appt.PatientID)
	assert.True(t, appt.ScheduledAt.Equal(time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)))

	assert.Equal(t, []string{fmt.Sprintf("slots:booked:%d:2025-06-02", doctor.ID)}, env.cache.invalidations())
}

func TestCreateAppointment_LoggedInPatientReusesOwnRow(t *testing.T) {
	env := newTestEnv(t)
	doctor, _ := env.seedDoctor(t, "Dr. Grey", "Surgery")
	patient, caller := env.seedRegisteredPatient(t, "me@example.com")

	res, err := env.booking.CreateAppointment(context.Background(), caller, bookingRequest(doctor.ID, "2025-06-02T09:00", dto.PatientContactRequest{
		FirstName: "Ignored",
		LastName:  "Filled",
		Email:     "someone-else@example.com",
	}))
	require.NoError(t, err)

	assert.Equal(t, int64(1), env.countPatients(t))

	var appt entity.Appointment
	require.NoError(t, env.db.First(&appt, res.ID).Error)
	assert.Equal(t, patient.ID, appt.PatientID)

	var reloaded entity.Patient
	require.NoError(t, env.db.First(&reloaded, patient.ID).Error)
	assert.Equal(t, "Reg", reloaded.FirstName)
	assert.Equal(t, "Filled", reloaded.LastName)
	assert.Equal(t, "me@example.com", reloaded.Email)
}

func TestCreateAppointment_AnonymousMatchesRegisteredEmail(t *testing.T) {
	env := newTestEnv(t)
	doctor, _ := env.seedDoctor(t, "Dr. Who", "General")
	patient, _ := env.seedRegisteredPatient(t, "known@x.com")

	res, err := env.booking.CreateAppointment(context.Background(), nil, bookingRequest(doctor.ID, "2025-06-02 10:00", dto.PatientContactRequest{
		Email: "known@x.com",
		Phone: "555-0101",
	}))
	require.NoError(t, err)

	assert.Equal(t, int64(1), env.countPatients(t))

	var appt entity.Appointment
	require.NoError(t, env.db.First(&appt, res.ID).Error)
	assert.Equal(t, patient.ID, appt.PatientID)

	var reloaded entity.Patient
	require.NoError(t, env.db.First(&reloaded, patient.ID).Error)
	assert.Equal(t, "555-0101", reloaded.Phone)
}

func TestCreateAppointment_GuestEmailDoesNotMatch(t *testing.T) {
	env := newTestEnv(t)
	doctor, _ := env.seedDoctor(t, "Dr. Who", "General")

	req := dto.PatientContactRequest{FirstName: "G", Email: "guest@x.com"}
	_, err := env.booking.CreateAppointment(context.Background(), nil, bookingRequest(doctor.ID, "2025-06-02 08:00", req))
	require.NoError(t, err)
	_, err = env.booking.CreateAppointment(context.Background(), nil, bookingRequest(doctor.ID, "2025-06-02 08:30", req))
	require.NoError(t, err)

	// only registered patients are matched by email
	assert.Equal(t, int64(2), env.countPatients(t))
}

func TestCreateAppointment_BackfillIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	doctor, _ := env.seedDoctor(t, "Dr. Who", "General")
	patient, caller := env.seedRegisteredPatient(t, "p@x.com")

	req := dto.PatientContactRequest{LastName: "Doe", Phone: "1", Gender: "Female"}
	_, err := env.booking.CreateAppointment(context.Background(), caller, bookingRequest(doctor.ID, "2025-06-02 08:00", req))
	require.NoError(t, err)

	var first entity.Patient
	require.NoError(t, env.db.First(&first, patient.ID).Error)

	_, err = env.booking.CreateAppointment(context.Background(), caller, bookingRequest(doctor.ID, "2025-06-02 08:30", req))
	require.NoError(t, err)

	var second entity.Patient
	require.NoError(t, env.db.First(&second, patient.ID).Error)
	assert.Equal(t, first.LastName, second.LastName)
	assert.Equal(t, first.Phone, second.Phone)
	assert.Equal(t, first.Gender, second.Gender)
	assert.Equal(t, "Doe", second.LastName)
}

func TestCreateAppointment_ConflictRollsBackGuest(t *testing.T) {
	env := newTestEnv(t)
	doctor, _ := env.seedDoctor(t, "Dr. Who", "General")

	_, err := env.booking.CreateAppointment(context.Background(), nil, bookingRequest(doctor.ID, "2025-06-02 08:00", dto.PatientContactRequest{Email: "a@x.com"}))
	require.NoError(t, err)
	require.Equal(t, int64(1), env.countPatients(t))

	_, err = env.booking.CreateAppointment(context.Background(), nil, bookingRequest(doctor.ID, "2025-06-02T08:00:00", dto.PatientContactRequest{Email: "b@x.com"}))
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)

	assert.Equal(t, int64(1), env.countPatients(t))
	assert.Equal(t, int64(1), env.countAppointments(t))
}

func TestCreateAppointment_SameTimeDifferentDoctorsIsFine(t *testing.T) {
	env := newTestEnv(t)
	d1, _ := env.seedDoctor(t, "Dr. One", "General")
	d2, _ := env.seedDoctor(t, "Dr. Two", "General")

	_, err := env.booking.CreateAppointment(context.Background(), nil, bookingRequest(d1.ID, "2025-06-02 08:00", dto.PatientContactRequest{}))
	require.NoError(t, err)
	_, err = env.booking.CreateAppointment(context.Background(), nil, bookingRequest(d2.ID, "2025-06-02 08:00", dto.PatientContactRequest{}))
	require.NoError(t, err)
}

func TestCreateAppointment_Validation(t *testing.T) {
	env := newTestEnv(t)
	doctor, _ := env.seedDoctor(t, "Dr. Who", "General")
	ctx := context.Background()

	_, err := env.booking.CreateAppointment(ctx, nil, bookingRequest(doctor.ID+100, "2025-06-02 08:00", dto.PatientContactRequest{}))
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	_, err = env.booking.CreateAppointment(ctx, nil, bookingRequest(doctor.ID, "not-a-date", dto.PatientContactRequest{}))
	assert.ErrorIs(t, err, ErrInvalidScheduledAt)

	_, err = env.booking.CreateAppointment(ctx, nil, bookingRequest(doctor.ID, "", dto.PatientContactRequest{}))
	assert.ErrorIs(t, err, ErrInvalidScheduledAt)

	_, err = env.booking.CreateAppointment(ctx, nil, bookingRequest(doctor.ID, "2025-06-02 08:00", dto.PatientContactRequest{Gender: "other"}))
	assert.ErrorIs(t, err, ErrInvalidGender)

	_, err = env.booking.CreateAppointment(ctx, nil, bookingRequest(doctor.ID, "2025-06-02 08:00", dto.PatientContactRequest{DOB: "1990-13-01"}))
	assert.ErrorIs(t, err, ErrInvalidDOB)

	assert.Zero(t, env.countPatients(t))
	assert.Zero(t, env.countAppointments(t))
	assert.Empty(t, env.cache.invalidations())
}

func TestCreateAppointment_DatetimeAliasAndZulu(t *testing.T) {
	env := newTestEnv(t)
	doctor, _ := env.seedDoctor(t, "Dr. Who", "General")

	req := &dto.CreateAppointmentRequest{
		DoctorID: dto.FlexibleID(doctor.ID),
		Datetime: "2025-06-02T09:30:00.000Z",
		Patient:  &dto.PatientContactRequest{},
	}
	res, err := env.booking.CreateAppointment(context.Background(), nil, req)
	require.NoError(t, err)

	var appt entity.Appointment
	require.NoError(t, env.db.First(&appt, res.ID).Error)
	assert.Equal(t, "2025-06-02 09:30:00", appt.ScheduledAt.UTC().Format(entity.DateTimeLayout))
}

func TestCreateAppointment_EnforcedSlotGrid(t *testing.T) {
	env := newTestEnvWithBooking(t, config.BookingConfig{EnforceSlotGrid: true})
	doctor, _ := env.seedDoctor(t, "Dr. Who", "General")
	ctx := context.Background()

	_, err := env.booking.CreateAppointment(ctx, nil, bookingRequest(doctor.ID, "2025-06-02 08:15", dto.PatientContactRequest{}))
	assert.ErrorIs(t, err, ErrOutsideSlotGrid)

	_, err = env.booking.CreateAppointment(ctx, nil, bookingRequest(doctor.ID, "2025-06-07 09:00", dto.PatientContactRequest{}))
	assert.ErrorIs(t, err, ErrOutsideSlotGrid)

	_, err = env.booking.CreateAppointment(ctx, nil, bookingRequest(doctor.ID, "2025-06-02 15:30", dto.PatientContactRequest{}))
	assert.NoError(t, err)
}

func TestCreateAppointment_OffGridAcceptedByDefault(t *testing.T) {
	env := newTestEnv(t)
	doctor, _ := env.seedDoctor(t, "Dr. Who", "General")

	_, err := env.booking.CreateAppointment(context.Background(), nil, bookingRequest(doctor.ID, "2025-06-07 18:45", dto.PatientContactRequest{}))
	assert.NoError(t, err)
}

func TestCreateAppointment_LegacyNullStatusOccupiesSlot(t *testing.T) {
	env := newTestEnv(t)
	doctor, _ := env.seedDoctor(t, "Dr. Who", "General")
	patient, _ := env.seedRegisteredPatient(t, "legacy@x.com")

	legacy := &entity.Appointment{
		DoctorID:    doctor.ID,
		PatientID:   patient.ID,
		ScheduledAt: time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC),
	}
	require.NoError(t, env.db.Create(legacy).Error)

	_, err := env.booking.CreateAppointment(context.Background(), nil, bookingRequest(doctor.ID, "2025-06-02 11:00", dto.PatientContactRequest{}))
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)
}

func TestCreateAppointment_ConcurrentRequestsForOneSlot(t *testing.T) {
	env := newTestEnv(t)
	doctor, _ := env.seedDoctor(t, "Dr. Who", "General")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = env.booking.CreateAppointment(context.Background(), nil, bookingRequest(doctor.ID, "2025-06-02 14:00", dto.PatientContactRequest{
				Email: []string{"one@x.com", "two@x.com"}[i],
			}))
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, ErrSlotAlreadyBooked):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, int64(1), env.countAppointments(t))
	assert.Equal(t, int64(1), env.countPatients(t))
}

func TestCreateAppointment_UniqueIndexRejectsSlotMissedByOccupancyCheck(t *testing.T) {
	for name, status := range map[string]entity.AppointmentStatus{
		"scheduled":   entity.AppointmentStatusScheduled,
		"legacy_null": entity.AppointmentStatusNone,
	} {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			doctor, _ := env.seedDoctor(t, "Dr. Who", "General")
			patient, _ := env.seedRegisteredPatient(t, "p@x.com")
			env.seedAppointment(t, doctor.ID, patient.ID, onJune2(8, 0), status)

			// the pre-insert check reports the slot free, as it would for a
			// writer racing past it; only the index stands in the way
			repo := newHookedAppointmentRepo()
			repo.skipOccupancyCheck = true
			booking := env.bookingWith(repo)

			_, err := booking.CreateAppointment(context.Background(), nil, bookingRequest(doctor.ID, "2025-06-02 08:00:00", dto.PatientContactRequest{
				FirstName: "Guest",
				Email:     "guest@x.com",
			}))
			assert.ErrorIs(t, err, ErrSlotAlreadyBooked)

			assert.Equal(t, int64(1), env.countPatients(t), "guest row must roll back")
			assert.Equal(t, int64(1), env.countAppointments(t))
			assert.Empty(t, env.cache.invalidations())
		})
	}
}

func TestUpdateStatus_CancelFreesSlot(t *testing.T) {
	env := newTestEnv(t)
	doctor, doctorCaller := env.seedDoctor(t, "Dr. Who", "General")
	ctx := context.Background()
	req := bookingRequest(doctor.ID, "2025-06-02 08:00:00", dto.PatientContactRequest{Email: "p@x.com"})

	first, err := env.booking.CreateAppointment(ctx, nil, req)
	require.NoError(t, err)

	_, err = env.booking.CreateAppointment(ctx, nil, req)
	require.ErrorIs(t, err, ErrSlotAlreadyBooked)

	updated, err := env.booking.UpdateStatus(ctx, doctorCaller, first.ID, &dto.UpdateAppointmentStatusRequest{Status: "cancelled"})
	require.NoError(t, err)
	require.NotNil(t, updated.Status)
	assert.Equal(t, "cancelled", *updated.Status)

	second, err := env.booking.CreateAppointment(ctx, nil, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestUpdateStatus_DoneAlsoFreesSlot(t *testing.T) {
	env := newTestEnv(t)
	doctor, doctorCaller := env.seedDoctor(t, "Dr. Who", "General")
	ctx := context.Background()
	req := bookingRequest(doctor.ID, "2025-06-02 08:00", dto.PatientContactRequest{})

	first, err := env.booking.CreateAppointment(ctx, nil, req)
	require.NoError(t, err)
	_, err = env.booking.UpdateStatus(ctx, doctorCaller, first.ID, &dto.UpdateAppointmentStatusRequest{Status: "done"})
	require.NoError(t, err)

	_, err = env.booking.CreateAppointment(ctx, nil, req)
	assert.NoError(t, err)
}

func TestUpdateStatus_ReactivationIntoTakenSlotConflicts(t *testing.T) {
	env := newTestEnv(t)
	doctor, doctorCaller := env.seedDoctor(t, "Dr. Who", "General")
	ctx := context.Background()
	req := bookingRequest(doctor.ID, "2025-06-02 08:00", dto.PatientContactRequest{})

	first, err := env.booking.CreateAppointment(ctx, nil, req)
	require.NoError(t, err)
	_, err = env.booking.UpdateStatus(ctx, doctorCaller, first.ID, &dto.UpdateAppointmentStatusRequest{Status: "cancelled"})
	require.NoError(t, err)
	_, err = env.booking.CreateAppointment(ctx, nil, req)
	require.NoError(t, err)

	_, err = env.booking.UpdateStatus(ctx, doctorCaller, first.ID, &dto.UpdateAppointmentStatusRequest{Status: "scheduled"})
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)

	var reloaded entity.Appointment
	require.NoError(t, env.db.First(&reloaded, first.ID).Error)
	assert.Equal(t, entity.AppointmentStatusCancelled, reloaded.Status)
}

func TestUpdateStatus_ReactivationOfFreeSlot(t *testing.T) {
	env := newTestEnv(t)
	doctor, doctorCaller := env.seedDoctor(t, "Dr. Who", "General")
	ctx := context.Background()

	first, err := env.booking.CreateAppointment(ctx, nil, bookingRequest(doctor.ID, "2025-06-02 08:00", dto.PatientContactRequest{}))
	require.NoError(t, err)
	_, err = env.booking.UpdateStatus(ctx, doctorCaller, first.ID, &dto.UpdateAppointmentStatusRequest{Status: "done"})
	require.NoError(t, err)

	updated, err := env.booking.UpdateStatus(ctx, doctorCaller, first.ID, &dto.UpdateAppointmentStatusRequest{Status: "scheduled"})
	require.NoError(t, err)
	assert.Equal(t, "scheduled", *updated.Status)
}

func TestUpdateStatus_OnlyOwningDoctor(t *testing.T) {
	env := newTestEnv(t)
	doctor, _ := env.seedDoctor(t, "Dr. Owner", "General")
	_, otherCaller := env.seedDoctor(t, "Dr. Other", "General")
	ctx := context.Background()

	res, err := env.booking.CreateAppointment(ctx, nil, bookingRequest(doctor.ID, "2025-06-02 08:00", dto.PatientContactRequest{}))
	require.NoError(t, err)

	_, err = env.booking.UpdateStatus(ctx, otherCaller, res.ID, &dto.UpdateAppointmentStatusRequest{Status: "cancelled"})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	_, err = env.booking.UpdateStatus(ctx, otherCaller, res.ID+99, &dto.UpdateAppointmentStatusRequest{Status: "cancelled"})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	_, err = env.booking.UpdateStatus(ctx, &entity.CallerIdentity{UserID: 9999, Role: entity.RoleDoctor}, res.ID, &dto.UpdateAppointmentStatusRequest{Status: "cancelled"})
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	_, err = env.booking.UpdateStatus(ctx, otherCaller, res.ID, &dto.UpdateAppointmentStatusRequest{Status: "pending"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateStatus_WritesAuditEntry(t *testing.T) {
	env := newTestEnv(t)
	doctor, doctorCaller := env.seedDoctor(t, "Dr. Who", "General")
	ctx := context.Background()

	res, err := env.booking.CreateAppointment(ctx, nil, bookingRequest(doctor.ID, "2025-06-02 08:00", dto.PatientContactRequest{}))
	require.NoError(t, err)
	_, err = env.booking.UpdateStatus(ctx, doctorCaller, res.ID, &dto.UpdateAppointmentStatusRequest{Status: "done"})
	require.NoError(t, err)

	var actions []string
	require.NoError(t, env.db.Model(&entity.AuditLog{}).Order("id ASC").Pluck("action", &actions).Error)
	assert.Equal(t, []string{entity.AuditActionAppointmentCreate, entity.AuditActionAppointmentStatus}, actions)
}
