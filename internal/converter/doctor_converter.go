package converter

import (
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
)

// DoctorToResponse converts a Doctor entity to DoctorResponse DTO
func DoctorToResponse(doctor *entity.Doctor) *dto.DoctorResponse {
	if doctor == nil {
		return nil
	}

	resp := &dto.DoctorResponse{
		ID:        doctor.ID,
		UserID:    doctor.UserID,
		Name:      doctor.Name,
		Specialty: doctor.Specialty,
		City:      doctor.City,
		CreatedAt: doctor.CreatedAt,
	}
	if doctor.User != nil {
		resp.Email = doctor.User.Email
	}
	return resp
}

// DoctorsToResponses converts a slice of Doctor entities to slice of DoctorResponse DTOs
func DoctorsToResponses(doctors []entity.Doctor) []dto.DoctorResponse {
	responses := make([]dto.DoctorResponse, len(doctors))
	for i := range doctors {
		responses[i] = *DoctorToResponse(&doctors[i])
	}
	return responses
}
