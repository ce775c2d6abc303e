package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/clinical-intake/internal/audit"
	"github.com/iliyamo/clinical-intake/internal/model"
	"github.com/iliyamo/clinical-intake/internal/repository"
	"github.com/iliyamo/clinical-intake/internal/utils"
)

const dateLayout = "2006-01-02"

// PatientStore is implemented by *repository.PatientRepo.
type PatientStore interface {
	CreateWithAssignment(ctx context.Context, p *model.Patient, clinicianID int64) error
	GetByID(ctx context.Context, id string) (*model.Patient, error)
	GetByIDForClinician(ctx context.Context, id string, clinicianID int64) (*model.Patient, error)
	ListAll(ctx context.Context) ([]model.Patient, error)
	ListByClinician(ctx context.Context, clinicianID int64) ([]model.Patient, error)
	Update(ctx context.Context, p *model.Patient) error
	Delete(ctx context.Context, id string) error
	Assign(ctx context.Context, patientID string, clinicianID int64) error
	Unassign(ctx context.Context, patientID string, clinicianID int64) error
	ListClinicians(ctx context.Context, patientID string) ([]model.AssignedClinician, error)
}

// PatientInput is the intake form.
type PatientInput struct {
	FullName      string
	DateOfBirth   string
	SSN           string
	Symptoms      *string
	ClinicalNotes *string
}

// PatientPatch carries the fields to change; nil means keep.
type PatientPatch struct {
	FullName      *string
	DateOfBirth   *string
	SSN           *string
	Symptoms      *string
	ClinicalNotes *string
}

func (p PatientPatch) empty() bool {
	return p.FullName == nil && p.DateOfBirth == nil && p.SSN == nil &&
		p.Symptoms == nil && p.ClinicalNotes == nil
}

// PatientService applies row scoping on top of role checks: admins reach
// every patient, everyone else only patients they are assigned to.
type PatientService struct {
	patients PatientStore
	users    UserStore
	audit    Auditor
}

func NewPatientService(patients PatientStore, users UserStore, auditor Auditor) *PatientService {
	return &PatientService{patients: patients, users: users, audit: auditor}
}

// CreatePatient validates in, stores the patient and assigns actor to it
// atomically.
func (s *PatientService) CreatePatient(ctx context.Context, actor model.Principal, in PatientInput) (model.Patient, error) {
	name := strings.TrimSpace(in.FullName)
	dob := strings.TrimSpace(in.DateOfBirth)
	rawSSN := strings.TrimSpace(in.SSN)
	if name == "" || dob == "" || rawSSN == "" {
		return model.Patient{}, fmt.Errorf("%w: full_name, date_of_birth and ssn are required", ErrValidation)
	}
	if err := validateDate(dob); err != nil {
		return model.Patient{}, err
	}
	ssn, err := parseSSN(rawSSN)
	if err != nil {
		return model.Patient{}, err
	}

	p := model.Patient{
		FullName:      name,
		DateOfBirth:   dob,
		SSN:           ssn,
		Symptoms:      in.Symptoms,
		ClinicalNotes: in.ClinicalNotes,
	}
	if err := s.patients.CreateWithAssignment(ctx, &p, actor.ID); err != nil {
		if errors.Is(err, repository.ErrSSNExists) {
			return model.Patient{}, ErrDuplicateSSN
		}
		return model.Patient{}, err
	}

	s.audit.Record(actor, audit.ActionPatientCreated, patientPayload(p))
	return p, nil
}

// ListPatients returns the patients visible to actor, newest first.
func (s *PatientService) ListPatients(ctx context.Context, actor model.Principal) ([]model.Patient, error) {
	if actor.Roles.IsAdmin() {
		return s.patients.ListAll(ctx)
	}
	return s.patients.ListByClinician(ctx, actor.ID)
}

// GetPatient returns a patient visible to actor. Patients outside the
// caller's scope are reported as ErrNotFound, same as missing ones.
func (s *PatientService) GetPatient(ctx context.Context, actor model.Principal, id string) (model.Patient, error) {
	p, err := s.scoped(ctx, actor, id)
	if err != nil {
		return model.Patient{}, err
	}
	s.audit.Record(actor, audit.ActionPatientViewed, patientPayload(*p))
	return *p, nil
}

// UpdatePatient applies patch to a patient in actor's scope.
func (s *PatientService) UpdatePatient(ctx context.Context, actor model.Principal, id string, patch PatientPatch) (model.Patient, error) {
	if patch.empty() {
		return model.Patient{}, fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	p, err := s.scoped(ctx, actor, id)
	if err != nil {
		return model.Patient{}, err
	}

	if patch.FullName != nil {
		name := strings.TrimSpace(*patch.FullName)
		if name == "" {
			return model.Patient{}, fmt.Errorf("%w: full_name must not be empty", ErrValidation)
		}
		p.FullName = name
	}
	if patch.DateOfBirth != nil {
		dob := strings.TrimSpace(*patch.DateOfBirth)
		if err := validateDate(dob); err != nil {
			return model.Patient{}, err
		}
		p.DateOfBirth = dob
	}
	if patch.SSN != nil {
		ssn, err := parseSSN(*patch.SSN)
		if err != nil {
			return model.Patient{}, err
		}
		p.SSN = ssn
	}
	if patch.Symptoms != nil {
		p.Symptoms = patch.Symptoms
	}
	if patch.ClinicalNotes != nil {
		p.ClinicalNotes = patch.ClinicalNotes
	}

	if err := s.patients.Update(ctx, p); err != nil {
		switch {
		case errors.Is(err, repository.ErrSSNExists):
			return model.Patient{}, ErrDuplicateSSN
		case errors.Is(err, repository.ErrPatientNotFound):
			return model.Patient{}, ErrNotFound
		}
		return model.Patient{}, err
	}

	s.audit.Record(actor, audit.ActionPatientUpdated, patientPayload(*p))
	return *p, nil
}

// DeletePatient removes a patient together with its assignments.
func (s *PatientService) DeletePatient(ctx context.Context, actor model.Principal, id string) error {
	if err := s.patients.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrPatientNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.audit.Record(actor, audit.ActionPatientDeleted, map[string]any{"patient_id": id})
	return nil
}

// AssignClinician grants clinicianID visibility into a patient. The target
// user must hold the Clinician role. Assigning twice is not an error.
func (s *PatientService) AssignClinician(ctx context.Context, actor model.Principal, patientID string, clinicianID int64) error {
	if _, err := s.patient(ctx, patientID); err != nil {
		return err
	}
	u, err := s.users.GetByID(ctx, clinicianID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNotClinician
		}
		return err
	}
	if !u.Roles().Has(model.RoleClinician) {
		return ErrNotClinician
	}
	if err := s.patients.Assign(ctx, patientID, clinicianID); err != nil {
		return err
	}
	s.audit.Record(actor, audit.ActionClinicianAssigned, map[string]any{
		"patient_id":   patientID,
		"clinician_id": clinicianID,
	})
	return nil
}

// UnassignClinician removes an assignment if present. The patient is kept
// even when no clinician is left.
func (s *PatientService) UnassignClinician(ctx context.Context, actor model.Principal, patientID string, clinicianID int64) error {
	if _, err := s.patient(ctx, patientID); err != nil {
		return err
	}
	if err := s.patients.Unassign(ctx, patientID, clinicianID); err != nil {
		return err
	}
	s.audit.Record(actor, audit.ActionClinicianUnassigned, map[string]any{
		"patient_id":   patientID,
		"clinician_id": clinicianID,
	})
	return nil
}

// ListClinicians returns the clinicians assigned to a patient in actor's
// scope.
func (s *PatientService) ListClinicians(ctx context.Context, actor model.Principal, patientID string) ([]model.AssignedClinician, error) {
	if _, err := s.scoped(ctx, actor, patientID); err != nil {
		return nil, err
	}
	return s.patients.ListClinicians(ctx, patientID)
}

func (s *PatientService) scoped(ctx context.Context, actor model.Principal, id string) (*model.Patient, error) {
	if actor.Roles.IsAdmin() {
		return s.patient(ctx, id)
	}
	p, err := s.patients.GetByIDForClinician(ctx, id, actor.ID)
	if errors.Is(err, repository.ErrPatientNotFound) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *PatientService) patient(ctx context.Context, id string) (*model.Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if errors.Is(err, repository.ErrPatientNotFound) {
		return nil, ErrNotFound
	}
	return p, err
}

func validateDate(s string) error {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return fmt.Errorf("%w: date_of_birth must be YYYY-MM-DD", ErrValidation)
	}
	return nil
}

func parseSSN(raw string) (int64, error) {
	n, err := utils.ValidateAndParseSSN(raw)
	if err != nil {
		return 0, ErrInvalidSSN
	}
	return n, nil
}

func patientPayload(p model.Patient) map[string]any {
	return map[string]any{"patient_id": p.ID, "patient_name": p.FullName}
}
