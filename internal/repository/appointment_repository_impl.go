package repository

import (
	"errors"
	"time"

	"clinic-booking/internal/domain/entity"
	domainRepo "clinic-booking/internal/domain/repository"

	"gorm.io/gorm"
)

const activeStatusClause = "(status IS NULL OR status = ?)"

type appointmentRepository struct{}

func NewAppointmentRepository() domainRepo.AppointmentRepository {
	return &appointmentRepository{}
}

func (r *appointmentRepository) Create(db *gorm.DB, appointment *entity.Appointment) error {
	return db.Create(appointment).Error
}

func (r *appointmentRepository) FindByID(db *gorm.DB, id int64) (*entity.Appointment, error) {
	var appointment entity.Appointment
	err := db.Where("id = ?", id).First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appointment, nil
}

// LockSlot takes a transaction-scoped advisory lock on PostgreSQL. Other
// dialects rely on the partial unique index alone.
func (r *appointmentRepository) LockSlot(db *gorm.DB, doctorID int64, at time.Time) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return db.Exec("SELECT pg_advisory_xact_lock(?, ?)", int32(doctorID), int32(at.Unix()/60)).Error
}

func (r *appointmentRepository) ExistsActive(db *gorm.DB, doctorID int64, at time.Time) (bool, error) {
	var count int64
	err := db.Model(&entity.Appointment{}).
		Where("doctor_id = ? AND scheduled_at = ?", doctorID, at).
		Where(activeStatusClause, entity.AppointmentStatusScheduled).
		Count(&count).Error
	return count > 0, err
}

func (r *appointmentRepository) FindActiveTimes(db *gorm.DB, doctorID int64, from, to time.Time) ([]time.Time, error) {
	var times []time.Time
	err := db.Model(&entity.Appointment{}).
		Where("doctor_id = ? AND scheduled_at >= ? AND scheduled_at < ?", doctorID, from, to).
		Where(activeStatusClause, entity.AppointmentStatusScheduled).
		Order("scheduled_at ASC").
		Pluck("scheduled_at", &times).Error
	if err != nil {
		return nil, err
	}
	return times, nil
}

func (r *appointmentRepository) FindByPatientID(db *gorm.DB, patientID int64, limit int) ([]entity.Appointment, error) {
	var appointments []entity.Appointment
	err := db.Preload("Doctor").
		Where("patient_id = ?", patientID).
		Order("scheduled_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *appointmentRepository) FindByDoctorID(db *gorm.DB, doctorID int64, limit int) ([]entity.Appointment, error) {
	var appointments []entity.Appointment
	err := db.Preload("Patient").
		Where("doctor_id = ?", doctorID).
		Order("id DESC").
		Limit(limit).
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

// UpdateStatus only touches appointments owned by doctorID.
// Returns affected rows: 0 means not found or not owned.
func (r *appointmentRepository) UpdateStatus(db *gorm.DB, id, doctorID int64, status entity.AppointmentStatus) (int64, error) {
	result := db.Model(&entity.Appointment{}).
		Where("id = ? AND doctor_id = ?", id, doctorID).
		Update("status", status)
	return result.RowsAffected, result.Error
}

func (r *appointmentRepository) DeleteByDoctorID(db *gorm.DB, doctorID int64) error {
	return db.Where("doctor_id = ?", doctorID).Delete(&entity.Appointment{}).Error
}

func (r *appointmentRepository) DeleteByPatientID(db *gorm.DB, patientID int64) error {
	return db.Where("patient_id = ?", patientID).Delete(&entity.Appointment{}).Error
}
