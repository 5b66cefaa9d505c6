package handler

import (
	"errors"
	"net/http"

	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/delivery/http/middleware"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/response"
	"clinic-booking/pkg/validator"
)

type DoctorHandler struct {
	doctorUsecase usecase.DoctorUsecase
	validator     *validator.CustomValidator
}

func NewDoctorHandler(doctorUsecase usecase.DoctorUsecase, validator *validator.CustomValidator) *DoctorHandler {
	return &DoctorHandler{
		doctorUsecase: doctorUsecase,
		validator:     validator,
	}
}

func (h *DoctorHandler) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateDoctorRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	actor := middleware.GetCallerFromContext(r.Context())
	doctor, err := h.doctorUsecase.CreateDoctor(r.Context(), actor, &req)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrDoctorEmailExists):
			response.Conflict(w, "Email already exists")
		default:
			response.InternalServerError(w, "Failed to create doctor")
		}
		return
	}

	response.Success(w, http.StatusCreated, "Doctor created successfully", doctor)
}

func (h *DoctorHandler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathID(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid doctor ID")
		return
	}

	doctor, err := h.doctorUsecase.GetDoctor(r.Context(), doctorID)
	if err != nil {
		if errors.Is(err, usecase.ErrDoctorNotFound) {
			response.NotFound(w, "Doctor not found")
			return
		}
		response.InternalServerError(w, "Failed to get doctor")
		return
	}

	response.Success(w, http.StatusOK, "Doctor retrieved successfully", doctor)
}

func (h *DoctorHandler) GetAllDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.doctorUsecase.GetAllDoctors(r.Context())
	if err != nil {
		response.InternalServerError(w, "Failed to get doctors")
		return
	}

	response.Success(w, http.StatusOK, "Doctors retrieved successfully", doctors)
}

// SearchDoctors matches ?specialty= case-insensitively; an empty term
// returns the newest doctors.
func (h *DoctorHandler) SearchDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.doctorUsecase.SearchDoctors(r.Context(), r.URL.Query().Get("specialty"))
	if err != nil {
		response.InternalServerError(w, "Failed to search doctors")
		return
	}

	response.Success(w, http.StatusOK, "Doctors retrieved successfully", doctors)
}

func (h *DoctorHandler) DeleteDoctor(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathID(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid doctor ID")
		return
	}

	actor := middleware.GetCallerFromContext(r.Context())
	if err := h.doctorUsecase.DeleteDoctor(r.Context(), actor, doctorID); err != nil {
		if errors.Is(err, usecase.ErrDoctorNotFound) {
			response.NotFound(w, "Doctor not found")
			return
		}
		response.InternalServerError(w, "Failed to delete doctor")
		return
	}

	response.Success(w, http.StatusOK, "Doctor deleted successfully", nil)
}
