package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportStatus represents the current state of a report import
type ImportStatus string

const (
	ImportStatusRunning   ImportStatus = "running"
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusFailed    ImportStatus = "failed"
)

// ImportRun represents one ingestion of a Veracode Detailed report. It is
// the scan-run reference findings point back to, and it carries the
// fallback timestamp used when a per-flaw occurrence date cannot be
// parsed.
type ImportRun struct {
	ID     uuid.UUID    `json:"id" db:"id"`
	Status ImportStatus `json:"status" db:"status"`

	// Report-level attributes extracted by the document loader
	ApplicationID string     `json:"application_id" db:"application_id"`
	ReportDate    *time.Time `json:"report_date,omitempty" db:"report_date"`

	// Where the report came from (file path or upload name)
	Source string `json:"source" db:"source"`

	// TargetStart is the scan-run start time. Per-flaw dates that fail
	// to parse fall back to this value.
	TargetStart time.Time `json:"target_start" db:"target_start"`

	// Result counts
	FindingsCount int `json:"findings_count" db:"findings_count"`
	CriticalCount int `json:"critical_count" db:"critical_count"`
	HighCount     int `json:"high_count" db:"high_count"`
	MediumCount   int `json:"medium_count" db:"medium_count"`
	LowCount      int `json:"low_count" db:"low_count"`
	InfoCount     int `json:"info_count" db:"info_count"`

	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	// Audit
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the import is in a terminal state
func (r *ImportRun) IsTerminal() bool {
	return r.Status == ImportStatusCompleted || r.Status == ImportStatusFailed
}

// Duration returns how long the import took
func (r *ImportRun) Duration() time.Duration {
	endTime := time.Now()
	if r.CompletedAt != nil {
		endTime = *r.CompletedAt
	}
	return endTime.Sub(r.CreatedAt)
}
