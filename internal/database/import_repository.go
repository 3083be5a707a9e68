package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vulnfeed/veracode-ingest/internal/domain"
	"github.com/vulnfeed/veracode-ingest/internal/interfaces"
)

// ImportRepository implements interfaces.ImportRepository using PostgreSQL
type ImportRepository struct {
	db *DB
}

// NewImportRepository creates a new ImportRepository
func NewImportRepository(db *DB) interfaces.ImportRepository {
	return &ImportRepository{db: db}
}

const importColumns = `
	id, status, application_id, report_date, source, target_start,
	findings_count, critical_count, high_count, medium_count, low_count, info_count,
	error_message, completed_at, created_at, updated_at
`

// Create creates a new import run
func (r *ImportRepository) Create(ctx context.Context, run *domain.ImportRun) error {
	query := `
		INSERT INTO import_runs (` + importColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.Status,
		run.ApplicationID,
		run.ReportDate,
		run.Source,
		run.TargetStart,
		run.FindingsCount,
		run.CriticalCount,
		run.HighCount,
		run.MediumCount,
		run.LowCount,
		run.InfoCount,
		run.ErrorMessage,
		run.CompletedAt,
		run.CreatedAt,
		run.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create import run: %w", err)
	}

	return nil
}

func scanImportRun(scanner interface{ Scan(...interface{}) error }) (*domain.ImportRun, error) {
	run := &domain.ImportRun{}
	err := scanner.Scan(
		&run.ID,
		&run.Status,
		&run.ApplicationID,
		&run.ReportDate,
		&run.Source,
		&run.TargetStart,
		&run.FindingsCount,
		&run.CriticalCount,
		&run.HighCount,
		&run.MediumCount,
		&run.LowCount,
		&run.InfoCount,
		&run.ErrorMessage,
		&run.CompletedAt,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Get retrieves an import run by ID
func (r *ImportRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ImportRun, error) {
	query := `SELECT ` + importColumns + ` FROM import_runs WHERE id = $1`

	run, err := scanImportRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("import run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import run: %w", err)
	}

	return run, nil
}

// Update updates an existing import run
func (r *ImportRepository) Update(ctx context.Context, run *domain.ImportRun) error {
	query := `
		UPDATE import_runs SET
			status = $2,
			application_id = $3,
			report_date = $4,
			findings_count = $5,
			critical_count = $6,
			high_count = $7,
			medium_count = $8,
			low_count = $9,
			info_count = $10,
			error_message = $11,
			completed_at = $12,
			updated_at = $13
		WHERE id = $1
	`

	run.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.Status,
		run.ApplicationID,
		run.ReportDate,
		run.FindingsCount,
		run.CriticalCount,
		run.HighCount,
		run.MediumCount,
		run.LowCount,
		run.InfoCount,
		run.ErrorMessage,
		run.CompletedAt,
		run.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update import run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("import run not found")
	}

	return nil
}

// List retrieves import runs with optional filters
func (r *ImportRepository) List(ctx context.Context, filter interfaces.ImportFilter) ([]*domain.ImportRun, error) {
	query := `SELECT ` + importColumns + ` FROM import_runs WHERE 1=1`

	args := []interface{}{}
	argPos := 1

	if filter.ApplicationID != nil {
		query += fmt.Sprintf(" AND application_id = $%d", argPos)
		args = append(args, *filter.ApplicationID)
		argPos++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, *filter.Status)
		argPos++
	}

	if filter.CreatedBefore != nil {
		query += fmt.Sprintf(" AND created_at < $%d", argPos)
		args = append(args, *filter.CreatedBefore)
		argPos++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filter.Limit)
		argPos++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, filter.Offset)
		argPos++
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list import runs: %w", err)
	}
	defer rows.Close()

	runs := []*domain.ImportRun{}
	for rows.Next() {
		run, err := scanImportRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, nil
}

// DeleteOlderThan deletes import runs created before the cutoff. Findings
// cascade via the foreign key.
func (r *ImportRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM import_runs WHERE created_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete import runs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
