package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/clinical-intake/internal/middleware"
	"github.com/iliyamo/clinical-intake/internal/model"
	"github.com/iliyamo/clinical-intake/internal/service"
)

// PatientHandler serves /api/patients. Role checks happen in the router;
// row scoping happens in the service. Patients are returned as-is and
// redacted by the JSON serializer.
type PatientHandler struct {
	Patients *service.PatientService
	Log      *zap.Logger
}

func NewPatientHandler(s *service.PatientService, log *zap.Logger) *PatientHandler {
	return &PatientHandler{Patients: s, Log: log}
}

type intakeReq struct {
	FullName      string  `json:"full_name"`
	DateOfBirth   string  `json:"date_of_birth"`
	SSN           string  `json:"ssn"`
	Symptoms      *string `json:"symptoms"`
	ClinicalNotes *string `json:"clinical_notes"`
}

type updateReq struct {
	FullName      *string `json:"full_name"`
	DateOfBirth   *string `json:"date_of_birth"`
	SSN           *string `json:"ssn"`
	Symptoms      *string `json:"symptoms"`
	ClinicalNotes *string `json:"clinical_notes"`
}

type assignReq struct {
	ClinicianID int64 `json:"clinician_id"`
}

// Intake records a new patient and assigns the calling clinician to it.
func (h *PatientHandler) Intake(c echo.Context) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	var req intakeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	p, err := h.Patients.CreatePatient(ctx, actor, service.PatientInput{
		FullName:      req.FullName,
		DateOfBirth:   req.DateOfBirth,
		SSN:           req.SSN,
		Symptoms:      req.Symptoms,
		ClinicalNotes: req.ClinicalNotes,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":            "patient intake completed successfully",
		"patient":            p,
		"assigned_clinician": actor.Username,
	})
}

// List returns every patient visible to the caller.
func (h *PatientHandler) List(c echo.Context) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	ctx, cancel := dbContext(c)
	defer cancel()

	ps, err := h.Patients.ListPatients(ctx, actor)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"patients": ps})
}

// Get returns a single patient.
func (h *PatientHandler) Get(c echo.Context) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	ctx, cancel := dbContext(c)
	defer cancel()

	p, err := h.Patients.GetPatient(ctx, actor, c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"patient": p})
}

// Update changes the provided fields of a patient.
func (h *PatientHandler) Update(c echo.Context) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	var req updateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := dbContext(c)
	defer cancel()

	p, err := h.Patients.UpdatePatient(ctx, actor, c.Param("id"), service.PatientPatch{
		FullName:      req.FullName,
		DateOfBirth:   req.DateOfBirth,
		SSN:           req.SSN,
		Symptoms:      req.Symptoms,
		ClinicalNotes: req.ClinicalNotes,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"patient": p})
}

// Delete removes a patient and its assignments.
func (h *PatientHandler) Delete(c echo.Context) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	ctx, cancel := dbContext(c)
	defer cancel()

	if err := h.Patients.DeletePatient(ctx, actor, c.Param("id")); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListClinicians returns the clinicians assigned to a patient.
func (h *PatientHandler) ListClinicians(c echo.Context) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	ctx, cancel := dbContext(c)
	defer cancel()

	cs, err := h.Patients.ListClinicians(ctx, actor, c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"clinicians": cs})
}

// Assign links a clinician to a patient.
func (h *PatientHandler) Assign(c echo.Context) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	var req assignReq
	if err := c.Bind(&req); err != nil || req.ClinicianID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "clinician_id required"})
	}
	ctx, cancel := dbContext(c)
	defer cancel()

	if err := h.Patients.AssignClinician(ctx, actor, c.Param("id"), req.ClinicianID); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Unassign removes a clinician from a patient.
func (h *PatientHandler) Unassign(c echo.Context) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	clinicianID, err := strconv.ParseInt(c.Param("clinician_id"), 10, 64)
	if err != nil || clinicianID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid clinician_id"})
	}
	ctx, cancel := dbContext(c)
	defer cancel()

	if err := h.Patients.UnassignClinician(ctx, actor, c.Param("id"), clinicianID); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// principal returns the caller set by JWTAuth. Routes are always mounted
// behind it, so a missing principal is a wiring error answered with 401.
func principal(c echo.Context) (model.Principal, error) {
	p := middleware.PrincipalFrom(c)
	if p == nil {
		return model.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return *p, nil
}

func dbContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}
