package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"github.com/vulnfeed/veracode-ingest/internal/domain"
	"github.com/vulnfeed/veracode-ingest/internal/interfaces"
)

// FindingRepository implements interfaces.FindingRepository using PostgreSQL
type FindingRepository struct {
	db     *DB
	logger *log.Entry
}

// NewFindingRepository creates a new finding repository
func NewFindingRepository(db *DB) interfaces.FindingRepository {
	return &FindingRepository{
		db:     db,
		logger: log.WithField("component", "finding-repository"),
	}
}

const findingColumnCount = 30

const findingColumns = `
	id, import_id, application_id, unique_id_from_tool,
	title, description, severity, cwe,
	mitigation, refs, impact,
	date, is_mitigated, active, false_p, mitigated,
	static_finding, dynamic_finding,
	file_path, line, sast_source_line, sast_source_file_path, sast_source_object,
	endpoints, component_name, component_version, cvssv3_score, vulnerability_ids,
	tags, created_at
`

// SaveBatch persists one import run's findings in a single statement.
// Rows with a unique_id_from_tool upsert against the partial unique index
// on (application_id, unique_id_from_tool), so re-importing a report
// updates prior rows for the same issues; rows without one (SCA) are
// plain inserts.
func (r *FindingRepository) SaveBatch(ctx context.Context, findings []*domain.Finding) error {
	if len(findings) == 0 {
		return nil
	}

	r.logger.WithField("count", len(findings)).Debug("Saving batch of findings")

	query := `INSERT INTO findings (` + findingColumns + `) VALUES `

	values := []interface{}{}
	placeholders := []string{}

	for i, f := range findings {
		offset := i * findingColumnCount
		ph := make([]string, findingColumnCount)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", offset+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")

		endpoints := make([]string, len(f.UnsavedEndpoints))
		for k, e := range f.UnsavedEndpoints {
			endpoints[k] = e.String()
		}

		values = append(values,
			uuid.New(),
			f.Test.ID,
			f.Test.ApplicationID,
			nullString(f.UniqueIDFromTool),
			f.Title,
			f.Description,
			f.Severity,
			nullIntPtr(f.CWE),
			f.Mitigation,
			f.References,
			f.Impact,
			nullTimePtr(f.Date),
			f.IsMitigated,
			f.Active,
			f.FalseP,
			nullTimePtr(f.Mitigated),
			f.StaticFinding,
			f.DynamicFinding,
			f.FilePath,
			nullIntPtr(f.Line),
			nullIntPtr(f.SASTSourceLine),
			f.SASTSourceFilePath,
			nullStringPtr(f.SASTSourceObject),
			pq.Array(endpoints),
			f.ComponentName,
			f.ComponentVersion,
			f.CVSSv3Score,
			pq.Array(f.UnsavedVulnerabilityIDs),
			pq.Array(f.UnsavedTags),
			time.Now(),
		)
	}

	query += strings.Join(placeholders, ", ")
	query += `
		ON CONFLICT (application_id, unique_id_from_tool) WHERE unique_id_from_tool IS NOT NULL
		DO UPDATE SET
			import_id = EXCLUDED.import_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			severity = EXCLUDED.severity,
			cwe = EXCLUDED.cwe,
			mitigation = EXCLUDED.mitigation,
			refs = EXCLUDED.refs,
			impact = EXCLUDED.impact,
			date = EXCLUDED.date,
			is_mitigated = EXCLUDED.is_mitigated,
			active = EXCLUDED.active,
			false_p = EXCLUDED.false_p,
			mitigated = EXCLUDED.mitigated,
			static_finding = EXCLUDED.static_finding,
			dynamic_finding = EXCLUDED.dynamic_finding,
			file_path = EXCLUDED.file_path,
			line = EXCLUDED.line,
			sast_source_line = EXCLUDED.sast_source_line,
			sast_source_file_path = EXCLUDED.sast_source_file_path,
			sast_source_object = EXCLUDED.sast_source_object,
			endpoints = EXCLUDED.endpoints,
			tags = EXCLUDED.tags
	`

	_, err := r.db.ExecContext(ctx, query, values...)
	if err != nil {
		r.logger.WithError(err).Error("Failed to save findings batch")
		return fmt.Errorf("failed to save findings: %w", err)
	}

	r.logger.WithField("count", len(findings)).Info("Successfully saved findings batch")
	return nil
}

// GetByImportID retrieves all findings for an import run
func (r *FindingRepository) GetByImportID(ctx context.Context, importID uuid.UUID) ([]*domain.Finding, error) {
	query := `SELECT ` + findingColumns + ` FROM findings WHERE import_id = $1
		ORDER BY CASE severity
			WHEN 'Critical' THEN 1 WHEN 'High' THEN 2 WHEN 'Medium' THEN 3
			WHEN 'Low' THEN 4 ELSE 5 END, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, importID)
	if err != nil {
		r.logger.WithError(err).Error("Failed to list findings")
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}
	defer rows.Close()

	findings := []*domain.Finding{}
	for rows.Next() {
		f := &domain.Finding{}
		var (
			rowID      uuid.UUID
			runID      uuid.UUID
			appID      string
			uniqueID   sql.NullString
			cwe        sql.NullInt64
			date       sql.NullTime
			mitigated  sql.NullTime
			line       sql.NullInt64
			sourceLine sql.NullInt64
			sourceObj  sql.NullString
			endpoints  pq.StringArray
			vulnIDs    pq.StringArray
			tags       pq.StringArray
			createdAt  time.Time
		)

		err := rows.Scan(
			&rowID, &runID, &appID, &uniqueID,
			&f.Title, &f.Description, &f.Severity, &cwe,
			&f.Mitigation, &f.References, &f.Impact,
			&date, &f.IsMitigated, &f.Active, &f.FalseP, &mitigated,
			&f.StaticFinding, &f.DynamicFinding,
			&f.FilePath, &line, &sourceLine, &f.SASTSourceFilePath, &sourceObj,
			&endpoints, &f.ComponentName, &f.ComponentVersion, &f.CVSSv3Score, &vulnIDs,
			&tags, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding row: %w", err)
		}

		f.UniqueIDFromTool = uniqueID.String
		if cwe.Valid {
			v := int(cwe.Int64)
			f.CWE = &v
		}
		if date.Valid {
			v := date.Time
			f.Date = &v
		}
		if mitigated.Valid {
			v := mitigated.Time
			f.Mitigated = &v
		}
		if line.Valid {
			v := int(line.Int64)
			f.Line = &v
		}
		if sourceLine.Valid {
			v := int(sourceLine.Int64)
			f.SASTSourceLine = &v
		}
		if sourceObj.Valid {
			v := sourceObj.String
			f.SASTSourceObject = &v
		}
		for _, raw := range endpoints {
			ep, err := domain.EndpointFromURI(raw)
			if err != nil {
				continue
			}
			f.UnsavedEndpoints = append(f.UnsavedEndpoints, ep)
		}
		f.UnsavedVulnerabilityIDs = vulnIDs
		f.UnsavedTags = tags

		findings = append(findings, f)
	}

	return findings, nil
}

// GetStats retrieves finding statistics for an import run
func (r *FindingRepository) GetStats(ctx context.Context, importID uuid.UUID) (*interfaces.FindingStats, error) {
	r.logger.WithField("import_id", importID.String()).Debug("Getting finding stats")

	query := `SELECT
		COUNT(*) as total,
		COUNT(CASE WHEN severity = 'Critical' THEN 1 END) as critical,
		COUNT(CASE WHEN severity = 'High' THEN 1 END) as high,
		COUNT(CASE WHEN severity = 'Medium' THEN 1 END) as medium,
		COUNT(CASE WHEN severity = 'Low' THEN 1 END) as low,
		COUNT(CASE WHEN severity = 'Info' THEN 1 END) as info
	FROM findings WHERE import_id = $1`

	stats := &interfaces.FindingStats{}
	err := r.db.QueryRowContext(ctx, query, importID).Scan(
		&stats.Total,
		&stats.Critical,
		&stats.High,
		&stats.Medium,
		&stats.Low,
		&stats.Info,
	)
	if err != nil {
		r.logger.WithError(err).Error("Failed to get finding stats")
		return nil, fmt.Errorf("failed to get finding stats: %w", err)
	}

	return stats, nil
}

// DeleteByImportID deletes all findings for an import run
func (r *FindingRepository) DeleteByImportID(ctx context.Context, importID uuid.UUID) error {
	r.logger.WithField("import_id", importID.String()).Debug("Deleting findings by import ID")

	query := `DELETE FROM findings WHERE import_id = $1`
	result, err := r.db.ExecContext(ctx, query, importID)
	if err != nil {
		r.logger.WithError(err).Error("Failed to delete findings")
		return fmt.Errorf("failed to delete findings: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithField("deleted_count", rowsAffected).Info("Successfully deleted findings")
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullStringPtr(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullIntPtr(n *int) interface{} {
	if n == nil {
		return nil
	}
	return *n
}

func nullTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
