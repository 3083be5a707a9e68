package domain

import (
	"time"
)

// Severity represents the severity level of a security finding
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
	SeverityInfo     Severity = "Info"
)

// GetPriority returns a numeric priority for sorting (higher = more severe)
func (s Severity) GetPriority() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Finding is a normalized vulnerability record produced from a Veracode
// Detailed report. One struct covers the three report sub-formats; the
// UnsavedTags field says which one a record came from ("sast", "dast" or
// "sca"), and exactly one of those applies per record.
type Finding struct {
	// Test is the import run this finding belongs to. Opaque to the
	// parser; supplied by the caller and threaded through untouched.
	Test *ImportRun `json:"-" db:"-"`

	Title       string   `json:"title" db:"title"`
	Description string   `json:"description" db:"description"`
	Severity    Severity `json:"severity" db:"severity"`
	CWE         *int     `json:"cwe,omitempty" db:"cwe"`

	Mitigation string `json:"mitigation" db:"mitigation"`
	References string `json:"references" db:"refs"`
	Impact     string `json:"impact" db:"impact"`

	Date        *time.Time `json:"date,omitempty" db:"date"`
	IsMitigated bool       `json:"is_mitigated" db:"is_mitigated"`
	Active      bool       `json:"active" db:"active"`
	FalseP      bool       `json:"false_p" db:"false_p"`
	Mitigated   *time.Time `json:"mitigated,omitempty" db:"mitigated"`

	StaticFinding  bool `json:"static_finding" db:"static_finding"`
	DynamicFinding bool `json:"dynamic_finding" db:"dynamic_finding"`

	// Source location (SAST only)
	FilePath           string  `json:"file_path,omitempty" db:"file_path"`
	Line               *int    `json:"line,omitempty" db:"line"`
	SASTSourceLine     *int    `json:"sast_source_line,omitempty" db:"sast_source_line"`
	SASTSourceFilePath string  `json:"sast_source_file_path,omitempty" db:"sast_source_file_path"`
	SASTSourceObject   *string `json:"sast_source_object,omitempty" db:"sast_source_object"`

	// Endpoints (DAST only)
	UnsavedEndpoints []Endpoint `json:"unsaved_endpoints,omitempty" db:"-"`

	// Component details (SCA only)
	ComponentName           string   `json:"component_name,omitempty" db:"component_name"`
	ComponentVersion        string   `json:"component_version,omitempty" db:"component_version"`
	CVSSv3Score             float64  `json:"cvssv3_score,omitempty" db:"cvssv3_score"`
	UnsavedVulnerabilityIDs []string `json:"unsaved_vulnerability_ids,omitempty" db:"-"`

	// UniqueIDFromTool is the external dedup key
	// ("app-<app_id>_issue-<issue_id>"). Empty for SCA findings, which
	// have no natural identity in the report.
	UniqueIDFromTool string `json:"unique_id_from_tool,omitempty" db:"unique_id_from_tool"`

	UnsavedTags []string `json:"unsaved_tags" db:"-"`
}
