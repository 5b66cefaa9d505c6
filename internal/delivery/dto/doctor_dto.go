package dto

import "time"

// Request DTOs

type CreateDoctorRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
	Name      string `json:"name" validate:"required,min=2,max=255"`
	Specialty string `json:"specialty" validate:"required,max=255"`
	City      string `json:"city" validate:"omitempty,max=255"`
}

// Response DTOs

type DoctorResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
	City      string    `json:"city"`
	CreatedAt time.Time `json:"created_at"`
}

type DoctorListResponse struct {
	Doctors []DoctorResponse `json:"doctors"`
	Total   int              `json:"total"`
}
