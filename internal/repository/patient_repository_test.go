package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/clinical-intake/internal/config"
	"github.com/iliyamo/clinical-intake/internal/database"
	"github.com/iliyamo/clinical-intake/internal/model"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PatientRepo) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPatientRepo(db)
}

func setupSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db, config.DriverSQLite))
	t.Cleanup(func() { db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

func TestCreateWithAssignment_Commits(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO patients`).
		WithArgs(sqlmock.AnyArg(), "Jane Doe", "1990-01-01", int64(123456789), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO patient_clinicians`).
		WithArgs(sqlmock.AnyArg(), int64(7), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	p := &model.Patient{FullName: "Jane Doe", DateOfBirth: "1990-01-01", SSN: 123456789}
	err := repo.CreateWithAssignment(context.Background(), p, 7)

	require.NoError(t, err)
	assert.Len(t, p.ID, 36)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithAssignment_RollsBackWhenAssignmentFails(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO patients`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO patient_clinicians`).WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	p := &model.Patient{FullName: "Jane Doe", DateOfBirth: "1990-01-01", SSN: 123456789}
	err := repo.CreateWithAssignment(context.Background(), p, 7)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "assign creator")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithAssignment_DuplicateSSN(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO patients`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	err := repo.CreateWithAssignment(context.Background(), &model.Patient{SSN: 1}, 7)

	assert.ErrorIs(t, err, ErrSSNExists)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM patients p WHERE p.id = \?`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	p, err := repo.GetByID(context.Background(), "missing")

	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrPatientNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_NoRowsIsNotFound(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE patients`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &model.Patient{ID: "missing"})

	assert.ErrorIs(t, err, ErrPatientNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientRepo_SQLiteLifecycle(t *testing.T) {
	ctx := context.Background()
	db := setupSQLite(t)
	users := NewUserRepo(db)
	repo := NewPatientRepo(db)

	c1, err := users.Create(ctx, "clin1", "pw", "Clinician", 4)
	require.NoError(t, err)
	c2, err := users.Create(ctx, "clin2", "pw", "Clinician", 4)
	require.NoError(t, err)

	p := &model.Patient{FullName: "Jane Doe", DateOfBirth: "1990-01-01", SSN: 123456789, Symptoms: strPtr("cough")}
	require.NoError(t, repo.CreateWithAssignment(ctx, p, c1))

	got, err := repo.GetByIDForClinician(ctx, p.ID, c1)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.FullName)
	assert.Equal(t, int64(123456789), got.SSN)
	require.NotNil(t, got.Symptoms)
	assert.Equal(t, "cough", *got.Symptoms)
	assert.Nil(t, got.ClinicalNotes)

	_, err = repo.GetByIDForClinician(ctx, p.ID, c2)
	assert.ErrorIs(t, err, ErrPatientNotFound)

	dup := &model.Patient{FullName: "Other", DateOfBirth: "1980-02-02", SSN: 123456789}
	assert.ErrorIs(t, repo.CreateWithAssignment(ctx, dup, c2), ErrSSNExists)
	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.Assign(ctx, p.ID, c2))
	require.NoError(t, repo.Assign(ctx, p.ID, c2))
	clinicians, err := repo.ListClinicians(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, clinicians, 2)
	assert.Equal(t, "clin1", clinicians[0].Username)
	assert.Equal(t, "clin2", clinicians[1].Username)

	mine, err := repo.ListByClinician(ctx, c2)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	require.NoError(t, repo.Unassign(ctx, p.ID, c1))
	require.NoError(t, repo.Unassign(ctx, p.ID, c2))
	_, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err, "unassigning the last clinician keeps the patient")

	got.FullName = "Jane Roe"
	require.NoError(t, repo.Update(ctx, got))
	again, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Roe", again.FullName)

	require.NoError(t, repo.Delete(ctx, p.ID))
	assert.ErrorIs(t, repo.Delete(ctx, p.ID), ErrPatientNotFound)
}
