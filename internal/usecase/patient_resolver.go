package usecase

import (
	"context"

	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/domain/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PatientResolver maps a caller and submitted contact data to exactly one
// patient row. It must run inside the booking transaction so a guest it
// creates disappears when the booking rolls back.
type PatientResolver interface {
	Resolve(ctx context.Context, tx *gorm.DB, caller *entity.CallerIdentity, doctorID int64, contact entity.PatientContact) (*entity.Patient, error)
}

type patientResolver struct {
	log         *logrus.Logger
	patientRepo repository.PatientRepository
}

func NewPatientResolver(log *logrus.Logger, patientRepo repository.PatientRepository) PatientResolver {
	return &patientResolver{
		log:         log,
		patientRepo: patientRepo,
	}
}

// Resolve picks the first match of:
//  1. the caller's own patient row when the caller is a PATIENT
//  2. a registered patient with the submitted email
//  3. a new guest created on behalf of doctorID
//
// A matched row is then backfilled with any submitted field it lacks.
func (r *patientResolver) Resolve(ctx context.Context, tx *gorm.DB, caller *entity.CallerIdentity, doctorID int64, contact entity.PatientContact) (*entity.Patient, error) {
	patient, err := r.match(tx, caller, contact)
	if err != nil {
		return nil, err
	}

	if patient == nil {
		patient = entity.NewGuestPatient(contact, doctorID)
		if err := r.patientRepo.Create(tx, patient); err != nil {
			r.log.Warnf("Failed to create guest patient: %+v", err)
			return nil, err
		}
		return patient, nil
	}

	// the in-memory merge only decides whether a write is needed; the
	// row itself is filled by a conditional UPDATE
	if !patient.Backfill(contact) {
		return patient, nil
	}
	stored, err := r.patientRepo.Backfill(tx, patient.ID, contact)
	if err != nil {
		r.log.Warnf("Failed to backfill patient %d: %+v", patient.ID, err)
		return nil, err
	}
	if stored == nil {
		return nil, ErrPatientNotFound
	}
	return stored, nil
}

func (r *patientResolver) match(tx *gorm.DB, caller *entity.CallerIdentity, contact entity.PatientContact) (*entity.Patient, error) {
	if caller.IsPatient() {
		patient, err := r.patientRepo.FindByUserID(tx, caller.UserID)
		if err != nil {
			r.log.Warnf("Failed to find patient for user %d: %+v", caller.UserID, err)
			return nil, err
		}
		if patient != nil {
			return patient, nil
		}
	}

	if contact.Email != "" {
		patient, err := r.patientRepo.FindRegisteredByEmail(tx, contact.Email)
		if err != nil {
			r.log.Warnf("Failed to find registered patient by email: %+v", err)
			return nil, err
		}
		if patient != nil {
			return patient, nil
		}
	}

	return nil, nil
}
