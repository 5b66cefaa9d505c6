package entity

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// AppointmentStatus is stored as NULL for legacy rows; the zero value maps
// to NULL and counts as active.
type AppointmentStatus string

const (
	AppointmentStatusNone      AppointmentStatus = ""
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusDone      AppointmentStatus = "done"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// IsActive reports whether the status occupies its slot.
func (s AppointmentStatus) IsActive() bool {
	return s == AppointmentStatusNone || s == AppointmentStatusScheduled
}

// Valid reports whether s is a status a client may set.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusDone, AppointmentStatusCancelled:
		return true
	}
	return false
}

func (s AppointmentStatus) Value() (driver.Value, error) {
	if s == AppointmentStatusNone {
		return nil, nil
	}
	return string(s), nil
}

func (s *AppointmentStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = AppointmentStatusNone
	case string:
		*s = AppointmentStatus(v)
	case []byte:
		*s = AppointmentStatus(v)
	default:
		return fmt.Errorf("cannot scan %T into AppointmentStatus", value)
	}
	return nil
}

// Appointment occupies (DoctorID, ScheduledAt) while its status is active.
// The partial unique index is what makes double booking impossible.
type Appointment struct {
	ID          int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	DoctorID    int64             `gorm:"not null;index;uniqueIndex:idx_appointments_active_slot,priority:1,where:status IS NULL OR status = 'scheduled'" json:"doctor_id"`
	PatientID   int64             `gorm:"not null;index" json:"patient_id"`
	ScheduledAt time.Time         `gorm:"type:timestamp;not null;uniqueIndex:idx_appointments_active_slot,priority:2" json:"scheduled_at"`
	Status      AppointmentStatus `gorm:"type:varchar(20);index" json:"status"`
	Reason      string            `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Doctor  *Doctor  `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
	Patient *Patient `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// IsActive checks whether the appointment still holds its slot
func (a *Appointment) IsActive() bool {
	return a.Status.IsActive()
}
