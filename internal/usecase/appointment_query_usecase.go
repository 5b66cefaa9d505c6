package usecase

import (
	"context"

	"clinic-booking/internal/converter"
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/domain/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	PatientAppointmentsCap = 200
	DoctorAppointmentsCap  = 100
)

type AppointmentQueryUsecase interface {
	GetPatientAppointments(ctx context.Context, caller *entity.CallerIdentity, limit int) (*dto.AppointmentListResponse, error)
	GetDoctorAppointments(ctx context.Context, caller *entity.CallerIdentity, limit int) (*dto.AppointmentListResponse, error)
}

type appointmentQueryUsecase struct {
	db              *gorm.DB
	log             *logrus.Logger
	doctorRepo      repository.DoctorRepository
	patientRepo     repository.PatientRepository
	appointmentRepo repository.AppointmentRepository
}

func NewAppointmentQueryUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	doctorRepo repository.DoctorRepository,
	patientRepo repository.PatientRepository,
	appointmentRepo repository.AppointmentRepository,
) AppointmentQueryUsecase {
	return &appointmentQueryUsecase{
		db:              db,
		log:             log,
		doctorRepo:      doctorRepo,
		patientRepo:     patientRepo,
		appointmentRepo: appointmentRepo,
	}
}

// GetPatientAppointments lists the caller's appointments, latest slot first.
// A PATIENT without a patient row simply has no appointments yet.
func (u *appointmentQueryUsecase) GetPatientAppointments(ctx context.Context, caller *entity.CallerIdentity, limit int) (*dto.AppointmentListResponse, error) {
	db := u.db.WithContext(ctx)
	empty := &dto.AppointmentListResponse{Appointments: []dto.AppointmentResponse{}}

	if caller == nil {
		return empty, nil
	}
	patient, err := u.patientRepo.FindByUserID(db, caller.UserID)
	if err != nil {
		u.log.Warnf("Failed to find patient for user %d: %+v", caller.UserID, err)
		return nil, err
	}
	if patient == nil {
		return empty, nil
	}

	appointments, err := u.appointmentRepo.FindByPatientID(db, patient.ID, clampLimit(limit, PatientAppointmentsCap))
	if err != nil {
		u.log.Warnf("Failed to find appointments for patient %d: %+v", patient.ID, err)
		return nil, err
	}

	return &dto.AppointmentListResponse{
		Appointments: converter.AppointmentsToResponses(appointments),
		Total:        len(appointments),
	}, nil
}

// GetDoctorAppointments lists the caller doctor's appointments, newest
// booking first.
func (u *appointmentQueryUsecase) GetDoctorAppointments(ctx context.Context, caller *entity.CallerIdentity, limit int) (*dto.AppointmentListResponse, error) {
	db := u.db.WithContext(ctx)

	if caller == nil {
		return nil, ErrDoctorNotFound
	}
	doctor, err := u.doctorRepo.FindByUserID(db, caller.UserID)
	if err != nil {
		u.log.Warnf("Failed to find doctor for user %d: %+v", caller.UserID, err)
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}

	appointments, err := u.appointmentRepo.FindByDoctorID(db, doctor.ID, clampLimit(limit, DoctorAppointmentsCap))
	if err != nil {
		u.log.Warnf("Failed to find appointments for doctor %d: %+v", doctor.ID, err)
		return nil, err
	}

	return &dto.AppointmentListResponse{
		Appointments: converter.AppointmentsToResponses(appointments),
		Total:        len(appointments),
	}, nil
}
