package handler

import (
	"errors"
	"net/http"
	"strconv"

	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/delivery/http/middleware"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/response"
	"clinic-booking/pkg/validator"

	"github.com/gorilla/mux"
)

type AppointmentHandler struct {
	appointmentUsecase usecase.AppointmentUsecase
	queryUsecase       usecase.AppointmentQueryUsecase
	slotUsecase        usecase.SlotUsecase
	validator          *validator.CustomValidator
}

func NewAppointmentHandler(
	appointmentUsecase usecase.AppointmentUsecase,
	queryUsecase usecase.AppointmentQueryUsecase,
	slotUsecase usecase.SlotUsecase,
	validator *validator.CustomValidator,
) *AppointmentHandler {
	return &AppointmentHandler{
		appointmentUsecase: appointmentUsecase,
		queryUsecase:       queryUsecase,
		slotUsecase:        slotUsecase,
		validator:          validator,
	}
}

// CreateAppointment books a slot. The caller is optional; an anonymous
// request books for the patient described in the body.
// @Summary Book an appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param request body dto.CreateAppointmentRequest true "Booking"
// @Success 201 {object} dto.CreateAppointmentResponse
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /appointments [post]
func (h *AppointmentHandler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, dto.ErrNotAnInteger) {
			response.BadRequest(w, "doctor_id must be an integer")
			return
		}
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	caller := middleware.GetCallerFromContext(r.Context())
	res, err := h.appointmentUsecase.CreateAppointment(r.Context(), caller, &req)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrDoctorNotFound):
			response.NotFound(w, "Doctor not found")
		case errors.Is(err, usecase.ErrSlotAlreadyBooked):
			response.Conflict(w, err.Error())
		case errors.Is(err, usecase.ErrInvalidScheduledAt),
			errors.Is(err, usecase.ErrOutsideSlotGrid),
			errors.Is(err, usecase.ErrInvalidDOB),
			errors.Is(err, usecase.ErrInvalidGender):
			response.BadRequest(w, err.Error())
		default:
			response.InternalServerError(w, "Failed to create appointment")
		}
		return
	}

	response.JSON(w, http.StatusCreated, res)
}

// GetBookedSlots lists the occupied "HH:mm" labels for a doctor on a date.
// @Summary Booked slots
// @Tags Appointments
// @Produce json
// @Param doctorId path int true "Doctor ID"
// @Param date query string true "YYYY-MM-DD"
// @Success 200 {object} dto.BookedSlotsResponse
// @Failure 400 {object} response.Response
// @Router /appointments/doctor/{doctorId}/booked [get]
func (h *AppointmentHandler) GetBookedSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, date, ok := slotParams(w, r)
	if !ok {
		return
	}

	res, err := h.slotUsecase.GetBookedSlots(r.Context(), doctorID, date)
	if err != nil {
		writeSlotError(w, err, "Failed to get booked slots")
		return
	}

	response.JSON(w, http.StatusOK, res)
}

func (h *AppointmentHandler) GetAvailableSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, date, ok := slotParams(w, r)
	if !ok {
		return
	}

	res, err := h.slotUsecase.GetAvailableSlots(r.Context(), doctorID, date)
	if err != nil {
		writeSlotError(w, err, "Failed to get available slots")
		return
	}

	response.JSON(w, http.StatusOK, res)
}

// UpdateStatus lets the owning doctor move an appointment between
// scheduled, done and cancelled.
func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid appointment ID")
		return
	}

	var req dto.UpdateAppointmentStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	caller := middleware.GetCallerFromContext(r.Context())
	appt, err := h.appointmentUsecase.UpdateStatus(r.Context(), caller, id, &req)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrAppointmentNotFound):
			response.NotFound(w, "Appointment not found")
		case errors.Is(err, usecase.ErrDoctorNotFound):
			response.NotFound(w, "Doctor profile not found")
		case errors.Is(err, usecase.ErrInvalidStatus):
			response.BadRequest(w, err.Error())
		case errors.Is(err, usecase.ErrSlotAlreadyBooked):
			response.Conflict(w, err.Error())
		default:
			response.InternalServerError(w, "Failed to update appointment status")
		}
		return
	}

	response.Success(w, http.StatusOK, "Appointment status updated", appt)
}

func (h *AppointmentHandler) GetPatientAppointments(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r)
	if !ok {
		response.BadRequest(w, "limit must be a positive integer")
		return
	}

	caller := middleware.GetCallerFromContext(r.Context())
	list, err := h.queryUsecase.GetPatientAppointments(r.Context(), caller, limit)
	if err != nil {
		response.InternalServerError(w, "Failed to get appointments")
		return
	}

	response.Success(w, http.StatusOK, "Appointments retrieved successfully", list)
}

func (h *AppointmentHandler) GetDoctorAppointments(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r)
	if !ok {
		response.BadRequest(w, "limit must be a positive integer")
		return
	}

	caller := middleware.GetCallerFromContext(r.Context())
	list, err := h.queryUsecase.GetDoctorAppointments(r.Context(), caller, limit)
	if err != nil {
		if errors.Is(err, usecase.ErrDoctorNotFound) {
			response.NotFound(w, "Doctor profile not found")
			return
		}
		response.InternalServerError(w, "Failed to get appointments")
		return
	}

	response.Success(w, http.StatusOK, "Appointments retrieved successfully", list)
}

func slotParams(w http.ResponseWriter, r *http.Request) (int64, string, bool) {
	doctorID, err := strconv.ParseInt(mux.Vars(r)["doctorId"], 10, 64)
	if err != nil || doctorID <= 0 {
		response.BadRequest(w, usecase.ErrInvalidDoctorID.Error())
		return 0, "", false
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		response.BadRequest(w, "date query parameter is required")
		return 0, "", false
	}

	return doctorID, date, true
}

func writeSlotError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, usecase.ErrInvalidDoctorID), errors.Is(err, usecase.ErrInvalidDate):
		response.BadRequest(w, err.Error())
	default:
		response.InternalServerError(w, fallback)
	}
}
