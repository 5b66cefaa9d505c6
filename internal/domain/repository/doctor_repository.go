package repository

import (
	"clinic-booking/internal/domain/entity"

	"gorm.io/gorm"
)

type DoctorRepository interface {
	Create(db *gorm.DB, doctor *entity.Doctor) error
	FindByID(db *gorm.DB, id int64) (*entity.Doctor, error)
	FindByUserID(db *gorm.DB, userID int64) (*entity.Doctor, error)
	Exists(db *gorm.DB, id int64) (bool, error)
	SearchBySpecialty(db *gorm.DB, specialty string, limit int) ([]entity.Doctor, error)
	FindAll(db *gorm.DB) ([]entity.Doctor, error)
	Delete(db *gorm.DB, id int64) error
}
