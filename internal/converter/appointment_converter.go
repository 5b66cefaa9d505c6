package converter

import (
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
)

// AppointmentToResponse flattens the preloaded doctor or patient, whichever
// is present.
func AppointmentToResponse(appointment *entity.Appointment) *dto.AppointmentResponse {
	if appointment == nil {
		return nil
	}

	resp := &dto.AppointmentResponse{
		ID:          appointment.ID,
		DoctorID:    appointment.DoctorID,
		PatientID:   appointment.PatientID,
		ScheduledAt: appointment.ScheduledAt.Format(entity.DateTimeLayout),
		Reason:      appointment.Reason,
	}
	if appointment.Status != entity.AppointmentStatusNone {
		status := string(appointment.Status)
		resp.Status = &status
	}
	if d := appointment.Doctor; d != nil {
		resp.DoctorName = d.Name
		resp.DoctorSpecialty = d.Specialty
		resp.DoctorCity = d.City
	}
	if p := appointment.Patient; p != nil {
		resp.PatientFirstName = p.FirstName
		resp.PatientLastName = p.LastName
		resp.PatientEmail = p.Email
	}
	return resp
}

func AppointmentsToResponses(appointments []entity.Appointment) []dto.AppointmentResponse {
	responses := make([]dto.AppointmentResponse, len(appointments))
	for i := range appointments {
		responses[i] = *AppointmentToResponse(&appointments[i])
	}
	return responses
}
