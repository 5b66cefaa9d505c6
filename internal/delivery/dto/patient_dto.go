package dto

// Request DTOs

// UpdatePatientRequest overwrites the caller's profile; omitted fields are
// cleared.
type UpdatePatientRequest struct {
	FirstName string `json:"first_name" validate:"omitempty,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
	Name      string `json:"name" validate:"omitempty,max=255"`
	DOB       string `json:"dob" validate:"omitempty,datetime=2006-01-02"`
	Email     string `json:"email" validate:"omitempty,email,max=255"`
	Phone     string `json:"phone" validate:"omitempty,max=50"`
	Gender    string `json:"gender" validate:"omitempty,oneof=Male Female"`
}

type CreatePatientRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	DOB       string `json:"dob" validate:"required,datetime=2006-01-02"`
	Gender    string `json:"gender" validate:"required,oneof=Male Female"`
	Email     string `json:"email" validate:"omitempty,email,max=255"`
	Phone     string `json:"phone" validate:"omitempty,max=50"`
}

// Response DTOs

type PatientResponse struct {
	ID                int64   `json:"id"`
	UserID            *int64  `json:"user_id"`
	CreatedByDoctorID *int64  `json:"created_by_doctor_id"`
	FirstName         string  `json:"first_name"`
	LastName          string  `json:"last_name"`
	Name              string  `json:"name"`
	DOB               string  `json:"dob,omitempty"`
	Email             string  `json:"email"`
	Phone             string  `json:"phone"`
	Gender            *string `json:"gender"`
}

type PatientListResponse struct {
	Patients []PatientResponse `json:"patients"`
	Total    int               `json:"total"`
}
