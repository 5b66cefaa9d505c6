package entity

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Gender is stored as NULL when unknown.
type Gender string

const (
	GenderUnknown Gender = ""
	GenderMale    Gender = "Male"
	GenderFemale  Gender = "Female"
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

func ValidGender(g string) bool {
	return Gender(g).Valid()
}

func (g Gender) Value() (driver.Value, error) {
	if g == GenderUnknown {
		return nil, nil
	}
	return string(g), nil
}

func (g *Gender) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*g = GenderUnknown
	case string:
		*g = Gender(v)
	case []byte:
		*g = Gender(v)
	default:
		return fmt.Errorf("cannot scan %T into Gender", value)
	}
	return nil
}

// Patient is either linked to a PATIENT account (UserID set) or a guest
// created by a booking or by a doctor.
type Patient struct {
	ID                int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            *int64     `gorm:"uniqueIndex:idx_patients_user_id" json:"user_id,omitempty"`
	CreatedByDoctorID *int64     `gorm:"index" json:"created_by_doctor_id,omitempty"`
	FirstName         string     `gorm:"type:varchar(100)" json:"first_name"`
	LastName          string     `gorm:"type:varchar(100)" json:"last_name"`
	Name              string     `gorm:"type:varchar(255)" json:"name"`
	DOB               *time.Time `gorm:"type:date" json:"dob,omitempty"`
	Email             string     `gorm:"type:varchar(255);index" json:"email"`
	Phone             string     `gorm:"type:varchar(50)" json:"phone"`
	Gender            Gender     `gorm:"type:varchar(10)" json:"gender"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Patient) TableName() string {
	return "patients"
}

// IsRegistered reports whether the patient row is linked to a user account.
func (p *Patient) IsRegistered() bool {
	return p.UserID != nil
}

// PatientContact is the contact data submitted with a booking.
type PatientContact struct {
	FirstName string
	LastName  string
	Name      string
	DOB       *time.Time
	Email     string
	Phone     string
	Gender    Gender
}

// NewGuestPatient builds an unlinked patient owned by the booking doctor.
func NewGuestPatient(c PatientContact, doctorID int64) *Patient {
	return &Patient{
		CreatedByDoctorID: &doctorID,
		FirstName:         c.FirstName,
		LastName:          c.LastName,
		Name:              c.Name,
		DOB:               c.DOB,
		Email:             c.Email,
		Phone:             c.Phone,
		Gender:            c.Gender,
	}
}

func mergeField[T ~string](existing, incoming T) T {
	if existing != "" {
		return existing
	}
	return incoming
}

func mergeDate(existing, incoming *time.Time) *time.Time {
	if existing != nil {
		return existing
	}
	return incoming
}

// Backfill copies every non-empty submitted field into p where p's value is
// still empty. Fields that already hold a value are never overwritten.
// It reports whether anything changed.
func (p *Patient) Backfill(c PatientContact) bool {
	before := *p

	p.FirstName = mergeField(p.FirstName, c.FirstName)
	p.LastName = mergeField(p.LastName, c.LastName)
	p.Name = mergeField(p.Name, c.Name)
	p.DOB = mergeDate(p.DOB, c.DOB)
	p.Email = mergeField(p.Email, c.Email)
	p.Phone = mergeField(p.Phone, c.Phone)
	p.Gender = mergeField(p.Gender, c.Gender)

	return before.FirstName != p.FirstName ||
		before.LastName != p.LastName ||
		before.Name != p.Name ||
		before.DOB != p.DOB ||
		before.Email != p.Email ||
		before.Phone != p.Phone ||
		before.Gender != p.Gender
}

// BackfillColumns maps the non-empty fields of c to their patient columns.
func (c PatientContact) BackfillColumns() map[string]interface{} {
	cols := make(map[string]interface{}, 7)
	for col, v := range map[string]string{
		"first_name": c.FirstName,
		"last_name":  c.LastName,
		"name":       c.Name,
		"email":      c.Email,
		"phone":      c.Phone,
		"gender":     string(c.Gender),
	} {
		if v != "" {
			cols[col] = v
		}
	}
	if c.DOB != nil {
		cols["dob"] = *c.DOB
	}
	return cols
}
