package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"clinic-booking/config"
	"clinic-booking/internal/converter"
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/domain/repository"
	"clinic-booking/internal/service"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrInvalidScheduledAt  = errors.New("invalid scheduled_at, expected YYYY-MM-DD HH:mm[:ss] or an ISO timestamp ending in Z")
	ErrOutsideSlotGrid     = errors.New("scheduled_at is not an offered weekday slot")
	ErrSlotAlreadyBooked   = errors.New("this time slot is already booked for the doctor")
	ErrInvalidDOB          = errors.New("invalid dob, use YYYY-MM-DD")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvalidStatus       = errors.New("status must be one of scheduled, done, cancelled")
)

const activeSlotConstraint = "idx_appointments_active_slot"

type AppointmentUsecase interface {
	CreateAppointment(ctx context.Context, caller *entity.CallerIdentity, req *dto.CreateAppointmentRequest) (*dto.CreateAppointmentResponse, error)
	UpdateStatus(ctx context.Context, caller *entity.CallerIdentity, appointmentID int64, req *dto.UpdateAppointmentStatusRequest) (*dto.AppointmentResponse, error)
}

type appointmentUsecase struct {
	db              *gorm.DB
	log             *logrus.Logger
	cfg             config.BookingConfig
	doctorRepo      repository.DoctorRepository
	appointmentRepo repository.AppointmentRepository
	resolver        PatientResolver
	slotCache       service.BookedSlotCache
	auditService    service.AuditService
}

func NewAppointmentUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	cfg config.BookingConfig,
	doctorRepo repository.DoctorRepository,
	appointmentRepo repository.AppointmentRepository,
	resolver PatientResolver,
	slotCache service.BookedSlotCache,
	auditService service.AuditService,
) AppointmentUsecase {
	return &appointmentUsecase{
		db:              db,
		log:             log,
		cfg:             cfg,
		doctorRepo:      doctorRepo,
		appointmentRepo: appointmentRepo,
		resolver:        resolver,
		slotCache:       slotCache,
		auditService:    auditService,
	}
}

// CreateAppointment books one slot.
//
// Flow:
// 1. Validate doctor exists (404) and normalize the timestamp (400)
// 2. Begin transaction, lock the slot
// 3. Resolve the patient and backfill it inside the transaction
// 4. Re-check occupancy (409, rollback discards any guest row)
// 5. Insert with status "scheduled"; a unique index hit is also a 409
// 6. Commit, then drop the cached booked slots for that day
func (u *appointmentUsecase) CreateAppointment(ctx context.Context, caller *entity.CallerIdentity, req *dto.CreateAppointmentRequest) (*dto.CreateAppointmentResponse, error) {
	doctorID := int64(req.DoctorID)

	exists, err := u.doctorRepo.Exists(u.db.WithContext(ctx), doctorID)
	if err != nil {
		u.log.Warnf("Failed to check doctor %d: %+v", doctorID, err)
		return nil, err
	}
	if !exists {
		return nil, ErrDoctorNotFound
	}

	scheduledAt, ok := entity.ParseScheduledAt(strings.TrimSpace(req.Timestamp()))
	if !ok {
		return nil, ErrInvalidScheduledAt
	}
	if u.cfg.EnforceSlotGrid && !entity.OnSlotGrid(scheduledAt) {
		return nil, ErrOutsideSlotGrid
	}

	contact, err := contactFromRequest(req.Patient)
	if err != nil {
		return nil, err
	}

	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	if err := u.appointmentRepo.LockSlot(tx, doctorID, scheduledAt); err != nil {
		u.log.Warnf("Failed to lock slot doctor=%d at=%s: %+v", doctorID, scheduledAt.Format(entity.DateTimeLayout), err)
		return nil, err
	}

	patient, err := u.resolver.Resolve(ctx, tx, caller, doctorID, contact)
	if err != nil {
		return nil, err
	}

	busy, err := u.appointmentRepo.ExistsActive(tx, doctorID, scheduledAt)
	if err != nil {
		u.log.Warnf("Failed to check slot occupancy: %+v", err)
		return nil, err
	}
	if busy {
		return nil, ErrSlotAlreadyBooked
	}

	appointment := &entity.Appointment{
		DoctorID:    doctorID,
		PatientID:   patient.ID,
		ScheduledAt: scheduledAt,
		Status:      entity.AppointmentStatusScheduled,
		Reason:      strings.TrimSpace(req.Reason),
	}
	if err := u.appointmentRepo.Create(tx, appointment); err != nil {
		if isDuplicateKeyError(err, activeSlotConstraint) {
			return nil, ErrSlotAlreadyBooked
		}
		if isForeignKeyError(err, "doctor") {
			return nil, ErrDoctorNotFound
		}
		u.log.Errorf("Failed to insert appointment: %+v", err)
		return nil, err
	}

	if err := u.auditService.LogCreate(ctx, tx, caller, entity.AuditActionAppointmentCreate, "appointment", appointment.ID, converter.AppointmentToResponse(appointment)); err != nil {
		u.log.Warnf("Failed to create audit log: %+v", err)
	}

	if err := tx.Commit().Error; err != nil {
		if isDuplicateKeyError(err, activeSlotConstraint) {
			return nil, ErrSlotAlreadyBooked
		}
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, err
	}

	u.invalidateSlots(doctorID, scheduledAt)

	u.log.Infof("Appointment created: id=%d, doctor=%d, patient=%d, at=%s", appointment.ID, doctorID, patient.ID, scheduledAt.Format(entity.DateTimeLayout))
	return &dto.CreateAppointmentResponse{OK: true, ID: appointment.ID}, nil
}

// UpdateStatus lets the owning doctor move an appointment between
// scheduled, done and cancelled. Re-activating a slot someone else has
// taken since is rejected by the unique index and surfaces as a conflict.
func (u *appointmentUsecase) UpdateStatus(ctx context.Context, caller *entity.CallerIdentity, appointmentID int64, req *dto.UpdateAppointmentStatusRequest) (*dto.AppointmentResponse, error) {
	status := entity.AppointmentStatus(req.Status)
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if caller == nil {
		return nil, ErrDoctorNotFound
	}

	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	doctor, err := u.doctorRepo.FindByUserID(tx, caller.UserID)
	if err != nil {
		u.log.Warnf("Failed to find doctor for user %d: %+v", caller.UserID, err)
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}

	appointment, err := u.appointmentRepo.FindByID(tx, appointmentID)
	if err != nil {
		u.log.Warnf("Failed to find appointment %d: %+v", appointmentID, err)
		return nil, err
	}
	if appointment == nil || appointment.DoctorID != doctor.ID {
		return nil, ErrAppointmentNotFound
	}

	if status.IsActive() && !appointment.IsActive() {
		if err := u.appointmentRepo.LockSlot(tx, doctor.ID, appointment.ScheduledAt); err != nil {
			return nil, err
		}
	}

	before := converter.AppointmentToResponse(appointment)
	affected, err := u.appointmentRepo.UpdateStatus(tx, appointment.ID, doctor.ID, status)
	if err != nil {
		if isDuplicateKeyError(err, activeSlotConstraint) {
			return nil, ErrSlotAlreadyBooked
		}
		u.log.Warnf("Failed to update appointment %d status: %+v", appointment.ID, err)
		return nil, err
	}
	if affected == 0 {
		return nil, ErrAppointmentNotFound
	}
	appointment.Status = status

	after := converter.AppointmentToResponse(appointment)
	if err := u.auditService.LogUpdate(ctx, tx, caller, entity.AuditActionAppointmentStatus, "appointment", appointment.ID, before, after); err != nil {
		u.log.Warnf("Failed to create audit log: %+v", err)
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, err
	}

	u.invalidateSlots(doctor.ID, appointment.ScheduledAt)

	return after, nil
}

func (u *appointmentUsecase) invalidateSlots(doctorID int64, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := u.slotCache.Invalidate(ctx, doctorID, at.Format(entity.DateLayout)); err != nil {
		// entries expire on their own; a stale read only lasts one TTL
		u.log.Warnf("Failed to invalidate booked slot cache for doctor %d: %+v", doctorID, err)
	}
}

func contactFromRequest(req *dto.PatientContactRequest) (entity.PatientContact, error) {
	if req == nil {
		return entity.PatientContact{}, nil
	}

	contact := entity.PatientContact{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Name:      strings.TrimSpace(req.Name),
		Email:     normalizeEmail(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Gender:    entity.Gender(strings.TrimSpace(req.Gender)),
	}
	if contact.Gender != entity.GenderUnknown && !contact.Gender.Valid() {
		return contact, ErrInvalidGender
	}

	dob, err := parseDOB(req.DOB)
	if err != nil {
		return contact, err
	}
	contact.DOB = dob
	return contact, nil
}

func parseDOB(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, ok := entity.ParseSlotDate(raw)
	if !ok {
		return nil, ErrInvalidDOB
	}
	return &d, nil
}
