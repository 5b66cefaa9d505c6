package repository

import (
	"clinic-booking/internal/domain/entity"

	"gorm.io/gorm"
)

type PatientRepository interface {
	Create(db *gorm.DB, patient *entity.Patient) error
	// Update overwrites the profile fields only.
	Update(db *gorm.DB, patient *entity.Patient) error
	// Backfill sets each empty column from the non-empty contact fields in
	// one statement and returns the stored row.
	Backfill(db *gorm.DB, id int64, contact entity.PatientContact) (*entity.Patient, error)
	LinkUser(db *gorm.DB, id, userID int64) error
	FindByID(db *gorm.DB, id int64) (*entity.Patient, error)
	FindByUserID(db *gorm.DB, userID int64) (*entity.Patient, error)
	// FindRegisteredByEmail only matches rows linked to a user account.
	FindRegisteredByEmail(db *gorm.DB, email string) (*entity.Patient, error)
	// FindUnlinkedByEmail only matches guest rows.
	FindUnlinkedByEmail(db *gorm.DB, email string) (*entity.Patient, error)
	FindByDoctor(db *gorm.DB, doctorID int64, limit int) ([]entity.Patient, error)
	FindRegistered(db *gorm.DB) ([]entity.Patient, error)
	ClearCreatedByDoctor(db *gorm.DB, doctorID int64) error
	Delete(db *gorm.DB, id int64) error
}
