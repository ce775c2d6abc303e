package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/clinical-intake/internal/model"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrSSNExists       = fmt.Errorf("%w: ssn already exists", ErrConflict)
)

const patientColumns = "p.id, p.full_name, p.date_of_birth, p.ssn, p.symptoms, p.clinical_notes, p.created_at, p.updated_at"

// PatientRepo provides CRUD operations for patients and the
// patient_clinicians assignment relation. All timestamps are UTC.
type PatientRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewPatientRepo returns a new PatientRepo bound to the given database.
func NewPatientRepo(db *sql.DB) *PatientRepo {
	return &PatientRepo{db: db, now: func() time.Time {
		// DATETIME(6) keeps microseconds; truncate so the returned struct
		// matches what a later SELECT reads back.
		return time.Now().UTC().Truncate(time.Microsecond)
	}}
}

// CreateWithAssignment inserts p and assigns clinicianID to it in a
// single transaction. A fresh UUID and the timestamps are written back
// to p. If either insert fails nothing is committed; a duplicate SSN is
// reported as ErrSSNExists.
func (r *PatientRepo) CreateWithAssignment(ctx context.Context, p *model.Patient, clinicianID int64) error {
	now := r.now()
	p.ID = uuid.NewString()
	p.CreatedAt, p.UpdatedAt = now, now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const qPatient = `INSERT INTO patients (id, full_name, date_of_birth, ssn, symptoms, clinical_notes, created_at, updated_at)
                      VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, qPatient,
		p.ID, p.FullName, p.DateOfBirth, p.SSN, nullable(p.Symptoms), nullable(p.ClinicalNotes), p.CreatedAt, p.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrSSNExists
		}
		return err
	}

	const qAssign = `INSERT INTO patient_clinicians (patient_id, clinician_id, assigned_at) VALUES (?, ?, ?)`
	if _, err := tx.ExecContext(ctx, qAssign, p.ID, clinicianID, now); err != nil {
		return fmt.Errorf("assign creator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID fetches a patient regardless of assignment.
func (r *PatientRepo) GetByID(ctx context.Context, id string) (*model.Patient, error) {
	q := "SELECT " + patientColumns + " FROM patients p WHERE p.id = ?"
	return scanOne(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDForClinician fetches a patient only when clinicianID is assigned
// to it. An unassigned patient is reported exactly like a missing one.
func (r *PatientRepo) GetByIDForClinician(ctx context.Context, id string, clinicianID int64) (*model.Patient, error) {
	q := "SELECT " + patientColumns + ` FROM patients p
          JOIN patient_clinicians pc ON pc.patient_id = p.id
          WHERE p.id = ? AND pc.clinician_id = ?`
	return scanOne(r.db.QueryRowContext(ctx, q, id, clinicianID))
}

// ListAll returns every patient, newest first.
func (r *PatientRepo) ListAll(ctx context.Context) ([]model.Patient, error) {
	q := "SELECT " + patientColumns + " FROM patients p ORDER BY p.created_at DESC"
	return r.list(ctx, q)
}

// ListByClinician returns the patients assigned to clinicianID, newest first.
func (r *PatientRepo) ListByClinician(ctx context.Context, clinicianID int64) ([]model.Patient, error) {
	q := "SELECT " + patientColumns + ` FROM patients p
          JOIN patient_clinicians pc ON pc.patient_id = p.id
          WHERE pc.clinician_id = ?
          ORDER BY p.created_at DESC`
	return r.list(ctx, q, clinicianID)
}

// Update writes the mutable fields of p and refreshes UpdatedAt.
func (r *PatientRepo) Update(ctx context.Context, p *model.Patient) error {
	p.UpdatedAt = r.now()
	const q = `UPDATE patients
               SET full_name = ?, date_of_birth = ?, ssn = ?, symptoms = ?, clinical_notes = ?, updated_at = ?
               WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q,
		p.FullName, p.DateOfBirth, p.SSN, nullable(p.Symptoms), nullable(p.ClinicalNotes), p.UpdatedAt, p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSSNExists
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPatientNotFound
	}
	return nil
}

// Delete removes a patient and its assignments in one transaction.
func (r *PatientRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, "DELETE FROM patient_clinicians WHERE patient_id = ?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM patients WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPatientNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Assign links clinicianID to patientID. Assigning twice is a no-op.
func (r *PatientRepo) Assign(ctx context.Context, patientID string, clinicianID int64) error {
	const q = `INSERT INTO patient_clinicians (patient_id, clinician_id, assigned_at) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q, patientID, clinicianID, r.now()); err != nil && !isUniqueViolation(err) {
		return err
	}
	return nil
}

// Unassign removes the link if present. The patient row is never touched,
// even when this was its last clinician.
func (r *PatientRepo) Unassign(ctx context.Context, patientID string, clinicianID int64) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM patient_clinicians WHERE patient_id = ? AND clinician_id = ?", patientID, clinicianID)
	return err
}

// ListClinicians returns the users assigned to patientID in assignment order.
func (r *PatientRepo) ListClinicians(ctx context.Context, patientID string) ([]model.AssignedClinician, error) {
	const q = `SELECT u.id, u.username, u.role, pc.assigned_at
               FROM users u
               JOIN patient_clinicians pc ON pc.clinician_id = u.id
               WHERE pc.patient_id = ?
               ORDER BY pc.assigned_at, u.id`
	rows, err := r.db.QueryContext(ctx, q, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AssignedClinician, 0)
	for rows.Next() {
		var c model.AssignedClinician
		if err := rows.Scan(&c.ID, &c.Username, &c.Role, &c.AssignedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PatientRepo) list(ctx context.Context, q string, args ...any) ([]model.Patient, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Patient, 0)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*model.Patient, error) {
	p, err := scanPatient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	return p, err
}

func scanPatient(s rowScanner) (*model.Patient, error) {
	var (
		p             model.Patient
		symptoms      sql.NullString
		clinicalNotes sql.NullString
	)
	if err := s.Scan(&p.ID, &p.FullName, &p.DateOfBirth, &p.SSN, &symptoms, &clinicalNotes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if symptoms.Valid {
		p.Symptoms = &symptoms.String
	}
	if clinicalNotes.Valid {
		p.ClinicalNotes = &clinicalNotes.String
	}
	return &p, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
