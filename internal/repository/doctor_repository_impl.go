package repository

import (
	"errors"
	"strings"

	"clinic-booking/internal/domain/entity"
	domainRepo "clinic-booking/internal/domain/repository"

	"gorm.io/gorm"
)

type doctorRepository struct{}

func NewDoctorRepository() domainRepo.DoctorRepository {
	return &doctorRepository{}
}

func (r *doctorRepository) Create(db *gorm.DB, doctor *entity.Doctor) error {
	return db.Create(doctor).Error
}

func (r *doctorRepository) FindByID(db *gorm.DB, id int64) (*entity.Doctor, error) {
	var doctor entity.Doctor
	err := db.Preload("User").Where("id = ?", id).First(&doctor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doctor, nil
}

func (r *doctorRepository) FindByUserID(db *gorm.DB, userID int64) (*entity.Doctor, error) {
	var doctor entity.Doctor
	err := db.Where("user_id = ?", userID).First(&doctor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doctor, nil
}

func (r *doctorRepository) Exists(db *gorm.DB, id int64) (bool, error) {
	var count int64
	err := db.Model(&entity.Doctor{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// SearchBySpecialty matches specialty case-insensitively anywhere in the
// column. An empty term matches every doctor.
func (r *doctorRepository) SearchBySpecialty(db *gorm.DB, specialty string, limit int) ([]entity.Doctor, error) {
	var doctors []entity.Doctor
	pattern := "%" + strings.ToLower(specialty) + "%"
	err := db.Where("LOWER(specialty) LIKE ?", pattern).
		Order("id DESC").
		Limit(limit).
		Find(&doctors).Error
	if err != nil {
		return nil, err
	}
	return doctors, nil
}

func (r *doctorRepository) FindAll(db *gorm.DB) ([]entity.Doctor, error) {
	var doctors []entity.Doctor
	err := db.Preload("User").Order("id DESC").Find(&doctors).Error
	if err != nil {
		return nil, err
	}
	return doctors, nil
}

func (r *doctorRepository) Delete(db *gorm.DB, id int64) error {
	return db.Delete(&entity.Doctor{}, id).Error
}
