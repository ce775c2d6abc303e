// Package audit records security-relevant actions off the request path.
// Callers hand entries to a Recorder, which queues them and lets a single
// worker goroutine persist them through a Sink.
package audit

import (
	"time"

	"github.com/iliyamo/clinical-intake/internal/model"
)

// Actions written by the service layer.
const (
	ActionUserLogin           = "user_login"
	ActionPatientCreated      = "patient_created"
	ActionPatientViewed       = "patient_viewed"
	ActionPatientUpdated      = "patient_updated"
	ActionPatientDeleted      = "patient_deleted"
	ActionClinicianAssigned   = "clinician_assigned"
	ActionClinicianUnassigned = "clinician_unassigned"
)

// Entry is one line of the audit log.
type Entry struct {
	UserID    int64          `json:"userId"`
	UserRole  string         `json:"userRole"`
	Action    string         `json:"action"`
	Timestamp string         `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// NewEntry stamps an entry for actor with the current UTC time. A nil
// payload is stored as an empty object.
func NewEntry(actor model.Principal, action string, payload map[string]any, now time.Time) Entry {
	if payload == nil {
		payload = map[string]any{}
	}
	return Entry{
		UserID:    actor.ID,
		UserRole:  actor.Roles.String(),
		Action:    action,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	}
}
