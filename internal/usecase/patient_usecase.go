package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"clinic-booking/internal/converter"
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/domain/repository"
	"clinic-booking/internal/service"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrInvalidGender   = errors.New("gender must be Male or Female")
)

const doctorPatientsLimit = 100

type PatientUsecase interface {
	GetMyProfile(ctx context.Context, caller *entity.CallerIdentity) (*dto.PatientResponse, error)
	UpdateMyProfile(ctx context.Context, caller *entity.CallerIdentity, req *dto.UpdatePatientRequest) (*dto.PatientResponse, error)
	GetDoctorPatients(ctx context.Context, caller *entity.CallerIdentity) (*dto.PatientListResponse, error)
	CreatePatientForDoctor(ctx context.Context, caller *entity.CallerIdentity, req *dto.CreatePatientRequest) (*dto.PatientResponse, error)
	GetRegisteredPatients(ctx context.Context) (*dto.PatientListResponse, error)
	DeletePatient(ctx context.Context, actor *entity.CallerIdentity, patientID int64) error
}

type patientUsecase struct {
	db              *gorm.DB
	log             *logrus.Logger
	userRepo        repository.UserRepository
	doctorRepo      repository.DoctorRepository
	patientRepo     repository.PatientRepository
	appointmentRepo repository.AppointmentRepository
	tokenStore      service.TokenStore
	auditService    service.AuditService
}

func NewPatientUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	userRepo repository.UserRepository,
	doctorRepo repository.DoctorRepository,
	patientRepo repository.PatientRepository,
	appointmentRepo repository.AppointmentRepository,
	tokenStore service.TokenStore,
	auditService service.AuditService,
) PatientUsecase {
	return &patientUsecase{
		db:              db,
		log:             log,
		userRepo:        userRepo,
		doctorRepo:      doctorRepo,
		patientRepo:     patientRepo,
		appointmentRepo: appointmentRepo,
		tokenStore:      tokenStore,
		auditService:    auditService,
	}
}

// ensurePatient returns the caller's patient row, creating an empty one on
// first use.
func (u *patientUsecase) ensurePatient(db *gorm.DB, caller *entity.CallerIdentity) (*entity.Patient, error) {
	patient, err := u.patientRepo.FindByUserID(db, caller.UserID)
	if err != nil {
		u.log.Warnf("Failed to find patient for user %d: %+v", caller.UserID, err)
		return nil, err
	}
	if patient != nil {
		return patient, nil
	}

	userID := caller.UserID
	patient = &entity.Patient{UserID: &userID, Email: caller.Email}
	if err := u.patientRepo.Create(db, patient); err != nil {
		if isDuplicateKeyError(err, "user_id") {
			// lost a race with a concurrent first request
			return u.patientRepo.FindByUserID(db, caller.UserID)
		}
		u.log.Warnf("Failed to create patient for user %d: %+v", caller.UserID, err)
		return nil, err
	}
	return patient, nil
}

func (u *patientUsecase) GetMyProfile(ctx context.Context, caller *entity.CallerIdentity) (*dto.PatientResponse, error) {
	if caller == nil {
		return nil, ErrPatientNotFound
	}
	patient, err := u.ensurePatient(u.db.WithContext(ctx), caller)
	if err != nil {
		return nil, err
	}
	return converter.PatientToResponse(patient), nil
}

// UpdateMyProfile overwrites every editable field with the request values.
func (u *patientUsecase) UpdateMyProfile(ctx context.Context, caller *entity.CallerIdentity, req *dto.UpdatePatientRequest) (*dto.PatientResponse, error) {
	if caller == nil {
		return nil, ErrPatientNotFound
	}
	gender := strings.TrimSpace(req.Gender)
	if gender != "" && !entity.ValidGender(gender) {
		return nil, ErrInvalidGender
	}
	dob, err := parseDOB(req.DOB)
	if err != nil {
		return nil, err
	}

	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	patient, err := u.ensurePatient(tx, caller)
	if err != nil {
		return nil, err
	}
	before := converter.PatientToResponse(patient)

	patient.FirstName = strings.TrimSpace(req.FirstName)
	patient.LastName = strings.TrimSpace(req.LastName)
	patient.Name = strings.TrimSpace(req.Name)
	patient.DOB = dob
	patient.Email = normalizeEmail(req.Email)
	patient.Phone = strings.TrimSpace(req.Phone)
	patient.Gender = entity.Gender(gender)

	if err := u.patientRepo.Update(tx, patient); err != nil {
		u.log.Warnf("Failed to update patient %d: %+v", patient.ID, err)
		return nil, err
	}

	after := converter.PatientToResponse(patient)
	if err := u.auditService.LogUpdate(ctx, tx, caller, entity.AuditActionPatientUpdate, "patient", patient.ID, before, after); err != nil {
		u.log.Warnf("Failed to create audit log: %+v", err)
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, err
	}

	return after, nil
}

func (u *patientUsecase) callerDoctor(db *gorm.DB, caller *entity.CallerIdentity) (*entity.Doctor, error) {
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
	return doctor, nil
}

// GetDoctorPatients lists patients the doctor has seen or created.
func (u *patientUsecase) GetDoctorPatients(ctx context.Context, caller *entity.CallerIdentity) (*dto.PatientListResponse, error) {
	db := u.db.WithContext(ctx)

	doctor, err := u.callerDoctor(db, caller)
	if err != nil {
		return nil, err
	}

	patients, err := u.patientRepo.FindByDoctor(db, doctor.ID, doctorPatientsLimit)
	if err != nil {
		u.log.Warnf("Failed to find patients of doctor %d: %+v", doctor.ID, err)
		return nil, err
	}

	return &dto.PatientListResponse{
		Patients: converter.PatientsToResponses(patients),
		Total:    len(patients),
	}, nil
}

func (u *patientUsecase) CreatePatientForDoctor(ctx context.Context, caller *entity.CallerIdentity, req *dto.CreatePatientRequest) (*dto.PatientResponse, error) {
	if !entity.ValidGender(req.Gender) {
		return nil, ErrInvalidGender
	}
	dob, err := parseDOB(req.DOB)
	if err != nil {
		return nil, err
	}
	if dob == nil {
		return nil, ErrInvalidDOB
	}

	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	doctor, err := u.callerDoctor(tx, caller)
	if err != nil {
		return nil, err
	}

	patient := entity.NewGuestPatient(entity.PatientContact{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		DOB:       dob,
		Email:     normalizeEmail(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Gender:    entity.Gender(req.Gender),
	}, doctor.ID)
	if err := u.patientRepo.Create(tx, patient); err != nil {
		u.log.Warnf("Failed to create patient: %+v", err)
		return nil, err
	}

	if err := u.auditService.LogCreate(ctx, tx, caller, entity.AuditActionPatientCreate, "patient", patient.ID, converter.PatientToResponse(patient)); err != nil {
		u.log.Warnf("Failed to create audit log: %+v", err)
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, err
	}

	return converter.PatientToResponse(patient), nil
}

func (u *patientUsecase) GetRegisteredPatients(ctx context.Context) (*dto.PatientListResponse, error) {
	patients, err := u.patientRepo.FindRegistered(u.db.WithContext(ctx))
	if err != nil {
		u.log.Warnf("Failed to find patients: %+v", err)
		return nil, err
	}

	return &dto.PatientListResponse{
		Patients: converter.PatientsToResponses(patients),
		Total:    len(patients),
	}, nil
}

// DeletePatient removes the patient, its appointments and, for registered
// patients, the user account.
func (u *patientUsecase) DeletePatient(ctx context.Context, actor *entity.CallerIdentity, patientID int64) error {
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	patient, err := u.patientRepo.FindByID(tx, patientID)
	if err != nil {
		u.log.Warnf("Failed to find patient: %+v", err)
		return err
	}
	if patient == nil {
		return ErrPatientNotFound
	}

	if err := u.appointmentRepo.DeleteByPatientID(tx, patient.ID); err != nil {
		u.log.Warnf("Failed to delete appointments of patient %d: %+v", patient.ID, err)
		return err
	}
	if err := u.patientRepo.Delete(tx, patient.ID); err != nil {
		u.log.Warnf("Failed to delete patient %d: %+v", patient.ID, err)
		return err
	}
	if patient.UserID != nil {
		if err := u.userRepo.Delete(tx, *patient.UserID); err != nil {
			u.log.Warnf("Failed to delete user %d: %+v", *patient.UserID, err)
			return err
		}
	}

	if err := u.auditService.LogDelete(ctx, tx, actor, entity.AuditActionPatientDelete, "patient", patient.ID, converter.PatientToResponse(patient)); err != nil {
		u.log.Warnf("Failed to create audit log: %+v", err)
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return err
	}

	if patient.UserID != nil {
		revokeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := u.tokenStore.RevokeAll(revokeCtx, *patient.UserID); err != nil {
			u.log.Warnf("Failed to revoke tokens of deleted patient %d (non-fatal): %+v", patient.ID, err)
		}
	}

	return nil
}
