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
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrDoctorNotFound    = errors.New("doctor not found")
	ErrDoctorEmailExists = errors.New("email already exists")
)

const doctorSearchLimit = 50

type DoctorUsecase interface {
	CreateDoctor(ctx context.Context, actor *entity.CallerIdentity, req *dto.CreateDoctorRequest) (*dto.DoctorResponse, error)
	GetDoctor(ctx context.Context, doctorID int64) (*dto.DoctorResponse, error)
	GetAllDoctors(ctx context.Context) (*dto.DoctorListResponse, error)
	SearchDoctors(ctx context.Context, specialty string) (*dto.DoctorListResponse, error)
	DeleteDoctor(ctx context.Context, actor *entity.CallerIdentity, doctorID int64) error
}

type doctorUsecase struct {
	db              *gorm.DB
	log             *logrus.Logger
	userRepo        repository.UserRepository
	doctorRepo      repository.DoctorRepository
	patientRepo     repository.PatientRepository
	appointmentRepo repository.AppointmentRepository
	tokenStore      service.TokenStore
	auditService    service.AuditService
}

func NewDoctorUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	userRepo repository.UserRepository,
	doctorRepo repository.DoctorRepository,
	patientRepo repository.PatientRepository,
	appointmentRepo repository.AppointmentRepository,
	tokenStore service.TokenStore,
	auditService service.AuditService,
) DoctorUsecase {
	return &doctorUsecase{
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

// CreateDoctor creates the DOCTOR user and its profile in one transaction.
func (u *doctorUsecase) CreateDoctor(ctx context.Context, actor *entity.CallerIdentity, req *dto.CreateDoctorRequest) (*dto.DoctorResponse, error) {
	email := normalizeEmail(req.Email)

	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	existing, err := u.userRepo.FindByEmail(tx, email)
	if err != nil {
		u.log.Warnf("Failed to find user by email: %+v", err)
		return nil, err
	}
	if existing != nil {
		return nil, ErrDoctorEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		u.log.Warnf("Failed to hash password: %+v", err)
		return nil, err
	}

	user := &entity.User{
		Email:    email,
		Password: string(hashedPassword),
		Role:     entity.RoleDoctor,
	}
	if err := u.userRepo.Create(tx, user); err != nil {
		if isDuplicateKeyError(err, "email") {
			return nil, ErrDoctorEmailExists
		}
		u.log.Warnf("Failed to create user: %+v", err)
		return nil, err
	}

	doctor := &entity.Doctor{
		UserID:    user.ID,
		Name:      strings.TrimSpace(req.Name),
		Specialty: strings.TrimSpace(req.Specialty),
		City:      strings.TrimSpace(req.City),
	}
	if err := u.doctorRepo.Create(tx, doctor); err != nil {
		u.log.Warnf("Failed to create doctor: %+v", err)
		return nil, err
	}
	doctor.User = user

	if err := u.auditService.LogCreate(ctx, tx, actor, entity.AuditActionDoctorCreate, "doctor", doctor.ID, converter.DoctorToResponse(doctor)); err != nil {
		u.log.Warnf("Failed to create audit log: %+v", err)
		// Don't fail the transaction for audit log errors
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, err
	}

	return converter.DoctorToResponse(doctor), nil
}

func (u *doctorUsecase) GetDoctor(ctx context.Context, doctorID int64) (*dto.DoctorResponse, error) {
	doctor, err := u.doctorRepo.FindByID(u.db.WithContext(ctx), doctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor: %+v", err)
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}

	return converter.DoctorToResponse(doctor), nil
}

func (u *doctorUsecase) GetAllDoctors(ctx context.Context) (*dto.DoctorListResponse, error) {
	doctors, err := u.doctorRepo.FindAll(u.db.WithContext(ctx))
	if err != nil {
		u.log.Warnf("Failed to find all doctors: %+v", err)
		return nil, err
	}

	return &dto.DoctorListResponse{
		Doctors: converter.DoctorsToResponses(doctors),
		Total:   len(doctors),
	}, nil
}

func (u *doctorUsecase) SearchDoctors(ctx context.Context, specialty string) (*dto.DoctorListResponse, error) {
	doctors, err := u.doctorRepo.SearchBySpecialty(u.db.WithContext(ctx), strings.TrimSpace(specialty), doctorSearchLimit)
	if err != nil {
		u.log.Warnf("Failed to search doctors: %+v", err)
		return nil, err
	}

	return &dto.DoctorListResponse{
		Doctors: converter.DoctorsToResponses(doctors),
		Total:   len(doctors),
	}, nil
}

// DeleteDoctor removes the doctor, its appointments and its user account.
// Patients the doctor created stay, unowned.
func (u *doctorUsecase) DeleteDoctor(ctx context.Context, actor *entity.CallerIdentity, doctorID int64) error {
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	doctor, err := u.doctorRepo.FindByID(tx, doctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor: %+v", err)
		return err
	}
	if doctor == nil {
		return ErrDoctorNotFound
	}

	if err := u.appointmentRepo.DeleteByDoctorID(tx, doctor.ID); err != nil {
		u.log.Warnf("Failed to delete appointments of doctor %d: %+v", doctor.ID, err)
		return err
	}
	if err := u.patientRepo.ClearCreatedByDoctor(tx, doctor.ID); err != nil {
		u.log.Warnf("Failed to detach patients of doctor %d: %+v", doctor.ID, err)
		return err
	}
	if err := u.doctorRepo.Delete(tx, doctor.ID); err != nil {
		u.log.Warnf("Failed to delete doctor %d: %+v", doctor.ID, err)
		return err
	}
	if err := u.userRepo.Delete(tx, doctor.UserID); err != nil {
		u.log.Warnf("Failed to delete user %d: %+v", doctor.UserID, err)
		return err
	}

	if err := u.auditService.LogDelete(ctx, tx, actor, entity.AuditActionDoctorDelete, "doctor", doctor.ID, converter.DoctorToResponse(doctor)); err != nil {
		u.log.Warnf("Failed to create audit log: %+v", err)
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return err
	}

	revokeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := u.tokenStore.RevokeAll(revokeCtx, doctor.UserID); err != nil {
		u.log.Warnf("Failed to revoke tokens of deleted doctor %d (non-fatal): %+v", doctor.ID, err)
	}

	return nil
}
