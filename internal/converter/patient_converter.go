package converter

import (
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
)

func PatientToResponse(patient *entity.Patient) *dto.PatientResponse {
	if patient == nil {
		return nil
	}

	resp := &dto.PatientResponse{
		ID:                patient.ID,
		UserID:            patient.UserID,
		CreatedByDoctorID: patient.CreatedByDoctorID,
		FirstName:         patient.FirstName,
		LastName:          patient.LastName,
		Name:              patient.Name,
		Email:             patient.Email,
		Phone:             patient.Phone,
	}
	if patient.Gender != entity.GenderUnknown {
		gender := string(patient.Gender)
		resp.Gender = &gender
	}
	if patient.DOB != nil {
		resp.DOB = patient.DOB.Format(entity.DateLayout)
	}
	return resp
}

func PatientsToResponses(patients []entity.Patient) []dto.PatientResponse {
	responses := make([]dto.PatientResponse, len(patients))
	for i := range patients {
		responses[i] = *PatientToResponse(&patients[i])
	}
	return responses
}
