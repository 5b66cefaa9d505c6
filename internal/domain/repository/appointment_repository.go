package repository

import (
	"time"

	"clinic-booking/internal/domain/entity"

	"gorm.io/gorm"
)

type AppointmentRepository interface {
	Create(db *gorm.DB, appointment *entity.Appointment) error
	FindByID(db *gorm.DB, id int64) (*entity.Appointment, error)
	// LockSlot serializes writers of one (doctor, time) slot until the
	// surrounding transaction ends.
	LockSlot(db *gorm.DB, doctorID int64, at time.Time) error
	ExistsActive(db *gorm.DB, doctorID int64, at time.Time) (bool, error)
	FindActiveTimes(db *gorm.DB, doctorID int64, from, to time.Time) ([]time.Time, error)
	FindByPatientID(db *gorm.DB, patientID int64, limit int) ([]entity.Appointment, error)
	FindByDoctorID(db *gorm.DB, doctorID int64, limit int) ([]entity.Appointment, error)
	UpdateStatus(db *gorm.DB, id, doctorID int64, status entity.AppointmentStatus) (int64, error)
	DeleteByDoctorID(db *gorm.DB, doctorID int64) error
	DeleteByPatientID(db *gorm.DB, patientID int64) error
}
