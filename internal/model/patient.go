package model

import (
	"time"

	"github.com/iliyamo/clinical-intake/internal/utils"
)

// Patient mirrors a row of the `patients` table. SSN holds the unmasked
// nine digit number and is excluded from JSON; clients only ever see the
// view produced by Redact.
type Patient struct {
	ID            string    `json:"id"`
	FullName      string    `json:"full_name"`
	DateOfBirth   string    `json:"date_of_birth"`
	SSN           int64     `json:"-"`
	Symptoms      *string   `json:"symptoms"`
	ClinicalNotes *string   `json:"clinical_notes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PatientView is the outgoing representation of a patient with the SSN
// already formatted for the viewer.
type PatientView struct {
	ID            string    `json:"id"`
	FullName      string    `json:"full_name"`
	DateOfBirth   string    `json:"date_of_birth"`
	SSN           string    `json:"ssn"`
	Symptoms      *string   `json:"symptoms"`
	ClinicalNotes *string   `json:"clinical_notes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Redact returns the view of the patient for a viewer holding roles.
// Admins see the full SSN, everyone else only its last four digits.
func (p Patient) Redact(roles RoleSet) any {
	ssn := utils.MaskSSN(p.SSN)
	if roles.IsAdmin() {
		ssn = utils.FormatSSN(p.SSN)
	}
	return PatientView{
		ID:            p.ID,
		FullName:      p.FullName,
		DateOfBirth:   p.DateOfBirth,
		SSN:           ssn,
		Symptoms:      p.Symptoms,
		ClinicalNotes: p.ClinicalNotes,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// AssignedClinician is a row of the patient_clinicians relation joined
// with the clinician's user record.
type AssignedClinician struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Role       string    `json:"role"`
	AssignedAt time.Time `json:"assigned_at"`
}
