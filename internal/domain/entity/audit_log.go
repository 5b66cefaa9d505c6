package entity

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog represents a system audit trail entry
type AuditLog struct {
	ID        int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    *int64            `gorm:"index" json:"user_id,omitempty"`
	Action    string            `gorm:"type:varchar(100);not null;index" json:"action"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"autoCreateTime;index" json:"created_at"`

	// Relationships
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// Common audit actions
const (
	AuditActionUserRegister      = "user.register"
	AuditActionAppointmentCreate = "appointment.create"
	AuditActionAppointmentStatus = "appointment.status"
	AuditActionPatientCreate     = "patient.create"
	AuditActionPatientUpdate     = "patient.update"
	AuditActionPatientDelete     = "patient.delete"
	AuditActionDoctorCreate      = "doctor.create"
	AuditActionDoctorDelete      = "doctor.delete"
)
