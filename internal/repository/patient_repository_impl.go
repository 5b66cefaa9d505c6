package repository

import (
	"errors"
	"fmt"

	"clinic-booking/internal/domain/entity"
	domainRepo "clinic-booking/internal/domain/repository"

	"gorm.io/gorm"
)

type patientRepository struct{}

func NewPatientRepository() domainRepo.PatientRepository {
	return &patientRepository{}
}

func (r *patientRepository) Create(db *gorm.DB, patient *entity.Patient) error {
	return db.Create(patient).Error
}

// profileColumns are the fields a patient may edit on their own profile.
var profileColumns = []string{"first_name", "last_name", "name", "dob", "email", "phone", "gender"}

func (r *patientRepository) Update(db *gorm.DB, patient *entity.Patient) error {
	return db.Model(patient).Select(profileColumns).Updates(patient).Error
}

// Backfill fills only the still-empty columns in a single UPDATE, so a value
// written by a concurrent transaction is kept. It returns the stored row.
func (r *patientRepository) Backfill(db *gorm.DB, id int64, contact entity.PatientContact) (*entity.Patient, error) {
	cols := contact.BackfillColumns()
	if len(cols) > 0 {
		updates := make(map[string]interface{}, len(cols))
		for col, v := range cols {
			if col == "dob" {
				updates[col] = gorm.Expr("COALESCE(dob, ?)", v)
				continue
			}
			updates[col] = gorm.Expr(fmt.Sprintf("COALESCE(NULLIF(%s, ''), ?)", col), v)
		}
		if err := db.Model(&entity.Patient{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return r.FindByID(db, id)
}

// LinkUser attaches a guest row to a user account; rows already linked are left alone.
func (r *patientRepository) LinkUser(db *gorm.DB, id, userID int64) error {
	return db.Model(&entity.Patient{}).
		Where("id = ? AND user_id IS NULL", id).
		Update("user_id", userID).Error
}

func (r *patientRepository) first(db *gorm.DB, query string, args ...interface{}) (*entity.Patient, error) {
	var patient entity.Patient
	err := db.Where(query, args...).Order("id ASC").First(&patient).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &patient, nil
}

func (r *patientRepository) FindByID(db *gorm.DB, id int64) (*entity.Patient, error) {
	return r.first(db, "id = ?", id)
}

func (r *patientRepository) FindByUserID(db *gorm.DB, userID int64) (*entity.Patient, error) {
	return r.first(db, "user_id = ?", userID)
}

func (r *patientRepository) FindRegisteredByEmail(db *gorm.DB, email string) (*entity.Patient, error) {
	return r.first(db, "email = ? AND user_id IS NOT NULL", email)
}

func (r *patientRepository) FindUnlinkedByEmail(db *gorm.DB, email string) (*entity.Patient, error) {
	return r.first(db, "email = ? AND user_id IS NULL", email)
}

// FindByDoctor returns patients the doctor has an appointment with or has
// created, newest first.
func (r *patientRepository) FindByDoctor(db *gorm.DB, doctorID int64, limit int) ([]entity.Patient, error) {
	var patients []entity.Patient
	seen := db.Session(&gorm.Session{NewDB: true}).
		Model(&entity.Appointment{}).
		Select("patient_id").
		Where("doctor_id = ?", doctorID)

	err := db.Where("created_by_doctor_id = ? OR id IN (?)", doctorID, seen).
		Order("id DESC").
		Limit(limit).
		Find(&patients).Error
	if err != nil {
		return nil, err
	}
	return patients, nil
}

func (r *patientRepository) FindRegistered(db *gorm.DB) ([]entity.Patient, error) {
	var patients []entity.Patient
	err := db.Where("user_id IS NOT NULL").Order("id DESC").Find(&patients).Error
	if err != nil {
		return nil, err
	}
	return patients, nil
}

func (r *patientRepository) ClearCreatedByDoctor(db *gorm.DB, doctorID int64) error {
	return db.Model(&entity.Patient{}).
		Where("created_by_doctor_id = ?", doctorID).
		Update("created_by_doctor_id", nil).Error
}

func (r *patientRepository) Delete(db *gorm.DB, id int64) error {
	return db.Delete(&entity.Patient{}, id).Error
}
