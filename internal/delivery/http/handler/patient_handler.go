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

type PatientHandler struct {
	patientUsecase usecase.PatientUsecase
	validator      *validator.CustomValidator
}

func NewPatientHandler(patientUsecase usecase.PatientUsecase, validator *validator.CustomValidator) *PatientHandler {
	return &PatientHandler{
		patientUsecase: patientUsecase,
		validator:      validator,
	}
}

func (h *PatientHandler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())
	profile, err := h.patientUsecase.GetMyProfile(r.Context(), caller)
	if err != nil {
		response.InternalServerError(w, "Failed to get profile")
		return
	}

	response.Success(w, http.StatusOK, "Profile retrieved successfully", profile)
}

// UpdateMyProfile overwrites every contact field with the submitted values.
func (h *PatientHandler) UpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdatePatientRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	caller := middleware.GetCallerFromContext(r.Context())
	profile, err := h.patientUsecase.UpdateMyProfile(r.Context(), caller, &req)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidGender), errors.Is(err, usecase.ErrInvalidDOB):
			response.BadRequest(w, err.Error())
		default:
			response.InternalServerError(w, "Failed to update profile")
		}
		return
	}

	response.Success(w, http.StatusOK, "Profile updated successfully", profile)
}

func (h *PatientHandler) GetDoctorPatients(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCallerFromContext(r.Context())
	patients, err := h.patientUsecase.GetDoctorPatients(r.Context(), caller)
	if err != nil {
		if errors.Is(err, usecase.ErrDoctorNotFound) {
			response.NotFound(w, "Doctor profile not found")
			return
		}
		response.InternalServerError(w, "Failed to get patients")
		return
	}

	response.Success(w, http.StatusOK, "Patients retrieved successfully", patients)
}

func (h *PatientHandler) CreateDoctorPatient(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePatientRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	caller := middleware.GetCallerFromContext(r.Context())
	patient, err := h.patientUsecase.CreatePatientForDoctor(r.Context(), caller, &req)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrDoctorNotFound):
			response.NotFound(w, "Doctor profile not found")
		case errors.Is(err, usecase.ErrInvalidGender), errors.Is(err, usecase.ErrInvalidDOB):
			response.BadRequest(w, err.Error())
		default:
			response.InternalServerError(w, "Failed to create patient")
		}
		return
	}

	response.Success(w, http.StatusCreated, "Patient created successfully", patient)
}

func (h *PatientHandler) GetRegisteredPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.patientUsecase.GetRegisteredPatients(r.Context())
	if err != nil {
		response.InternalServerError(w, "Failed to get patients")
		return
	}

	response.Success(w, http.StatusOK, "Patients retrieved successfully", patients)
}

func (h *PatientHandler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	patientID, ok := pathID(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid patient ID")
		return
	}

	actor := middleware.GetCallerFromContext(r.Context())
	if err := h.patientUsecase.DeletePatient(r.Context(), actor, patientID); err != nil {
		if errors.Is(err, usecase.ErrPatientNotFound) {
			response.NotFound(w, "Patient not found")
			return
		}
		response.InternalServerError(w, "Failed to delete patient")
		return
	}

	response.Success(w, http.StatusOK, "Patient deleted successfully", nil)
}
