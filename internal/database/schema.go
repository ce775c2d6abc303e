package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/clinical-intake/internal/config"
)

// Tables are created only when missing. This is a local-run and test
// convenience; production schemas are managed outside the service.
var schema = map[string][]string{
	config.DriverMySQL: {
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			username VARCHAR(191) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(64) NOT NULL,
			created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS patients (
			id CHAR(36) PRIMARY KEY,
			full_name VARCHAR(255) NOT NULL,
			date_of_birth VARCHAR(10) NOT NULL,
			ssn BIGINT NOT NULL UNIQUE,
			symptoms TEXT NULL,
			clinical_notes TEXT NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			INDEX idx_patients_created_at (created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS patient_clinicians (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			patient_id CHAR(36) NOT NULL,
			clinician_id BIGINT NOT NULL,
			assigned_at DATETIME(6) NOT NULL,
			UNIQUE KEY uq_patient_clinician (patient_id, clinician_id),
			INDEX idx_patient_clinicians_clinician (clinician_id),
			CONSTRAINT fk_pc_patient FOREIGN KEY (patient_id) REFERENCES patients(id) ON DELETE CASCADE,
			CONSTRAINT fk_pc_clinician FOREIGN KEY (clinician_id) REFERENCES users(id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	config.DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS patients (
			id TEXT PRIMARY KEY,
			full_name TEXT NOT NULL,
			date_of_birth TEXT NOT NULL,
			ssn INTEGER NOT NULL UNIQUE,
			symptoms TEXT,
			clinical_notes TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS patient_clinicians (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			patient_id TEXT NOT NULL,
			clinician_id INTEGER NOT NULL,
			assigned_at DATETIME NOT NULL,
			FOREIGN KEY (patient_id) REFERENCES patients(id) ON DELETE CASCADE,
			FOREIGN KEY (clinician_id) REFERENCES users(id) ON DELETE CASCADE,
			UNIQUE(patient_id, clinician_id)
		)`,
	},
}

// Migrate creates the users, patients and patient_clinicians tables for
// driver if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	stmts, ok := schema[driver]
	if !ok {
		return fmt.Errorf("no schema for driver %q", driver)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
