package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrNotAnInteger is returned when an id field holds a non-integer value.
var ErrNotAnInteger = errors.New("value must be an integer")

// FlexibleID accepts 5, "5" and integral floats such as 5.0 or "5e0".
type FlexibleID int64

func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return ErrNotAnInteger
		}
		raw = strings.TrimSpace(raw)
	}
	n, err := parseIntegral(raw)
	if err != nil {
		return err
	}
	*f = FlexibleID(n)
	return nil
}

func parseIntegral(raw string) (int64, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(v, 0) || v != math.Trunc(v) || math.Abs(v) >= math.MaxInt64 {
		return 0, ErrNotAnInteger
	}
	return int64(v), nil
}

// Request DTOs

type PatientContactRequest struct {
	FirstName string `json:"first_name" validate:"omitempty,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
	Name      string `json:"name" validate:"omitempty,max=255"`
	DOB       string `json:"dob" validate:"omitempty,datetime=2006-01-02"`
	Email     string `json:"email" validate:"omitempty,email,max=255"`
	Phone     string `json:"phone" validate:"omitempty,max=50"`
	Gender    string `json:"gender" validate:"omitempty,oneof=Male Female"`
}

// CreateAppointmentRequest accepts the timestamp as scheduled_at or its
// alias datetime.
type CreateAppointmentRequest struct {
	DoctorID    FlexibleID             `json:"doctor_id" validate:"required,gt=0"`
	ScheduledAt string                 `json:"scheduled_at"`
	Datetime    string                 `json:"datetime"`
	Reason      string                 `json:"reason" validate:"omitempty,max=1000"`
	Patient     *PatientContactRequest `json:"patient" validate:"required"`
}

// Timestamp returns scheduled_at, falling back to datetime.
func (r *CreateAppointmentRequest) Timestamp() string {
	if r.ScheduledAt != "" {
		return r.ScheduledAt
	}
	return r.Datetime
}

type UpdateAppointmentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=scheduled done cancelled"`
}

// Response DTOs

type CreateAppointmentResponse struct {
	OK bool  `json:"ok"`
	ID int64 `json:"id"`
}

type BookedSlotsResponse struct {
	Booked []string `json:"booked"`
}

type AvailableSlotsResponse struct {
	Date      string   `json:"date"`
	Available []string `json:"available"`
}

// AppointmentResponse carries the doctor columns on patient dashboards and
// the patient columns on doctor dashboards.
type AppointmentResponse struct {
	ID          int64   `json:"id"`
	DoctorID    int64   `json:"doctor_id"`
	PatientID   int64   `json:"patient_id"`
	ScheduledAt string  `json:"scheduled_at"`
	Status      *string `json:"status"`
	Reason      string  `json:"reason,omitempty"`

	DoctorName      string `json:"doctor_name,omitempty"`
	DoctorSpecialty string `json:"doctor_specialty,omitempty"`
	DoctorCity      string `json:"doctor_city,omitempty"`

	PatientFirstName string `json:"patient_first_name,omitempty"`
	PatientLastName  string `json:"patient_last_name,omitempty"`
	PatientEmail     string `json:"patient_email,omitempty"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Total        int                   `json:"total"`
}
