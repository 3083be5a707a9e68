package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vulnfeed/veracode-ingest/internal/domain"
)

// ImportRepository defines the interface for import run persistence
type ImportRepository interface {
	// Create creates a new import run
	Create(ctx context.Context, run *domain.ImportRun) error

	// Get retrieves an import run by ID
	Get(ctx context.Context, id uuid.UUID) (*domain.ImportRun, error)

	// Update updates an existing import run
	Update(ctx context.Context, run *domain.ImportRun) error

	// List retrieves import runs with optional filters
	List(ctx context.Context, filter ImportFilter) ([]*domain.ImportRun, error)

	// DeleteOlderThan deletes import runs created before the cutoff and
	// returns how many were removed
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ImportFilter represents filter criteria for listing import runs
type ImportFilter struct {
	ApplicationID *string
	Status        *domain.ImportStatus
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// FindingRepository defines the interface for finding persistence
type FindingRepository interface {
	// SaveBatch persists findings from one import run. Findings with a
	// unique_id_from_tool are upserted on (application_id, unique id);
	// findings without one are plain inserts.
	SaveBatch(ctx context.Context, findings []*domain.Finding) error

	// GetByImportID retrieves all findings for an import run
	GetByImportID(ctx context.Context, importID uuid.UUID) ([]*domain.Finding, error)

	// GetStats retrieves finding statistics for an import run
	GetStats(ctx context.Context, importID uuid.UUID) (*FindingStats, error)

	// DeleteByImportID deletes all findings for an import run
	DeleteByImportID(ctx context.Context, importID uuid.UUID) error
}

// FindingStats represents aggregated finding statistics
type FindingStats struct {
	Total    int
	Critical int
	High     int
	Medium   int
	Low      int
	Info     int
}
