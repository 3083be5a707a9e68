package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vulnfeed/veracode-ingest/internal/domain"
	"github.com/vulnfeed/veracode-ingest/internal/interfaces"
	"github.com/vulnfeed/veracode-ingest/internal/veracode"
)

// Service ties the report parser to the persistence layer: one call turns
// a Veracode Detailed report into an ImportRun plus its stored findings.
type Service struct {
	parser   *veracode.Parser
	imports  interfaces.ImportRepository
	findings interfaces.FindingRepository
	logger   *log.Entry
}

// NewService creates an importer service
func NewService(parser *veracode.Parser, imports interfaces.ImportRepository, findings interfaces.FindingRepository) *Service {
	return &Service{
		parser:   parser,
		imports:  imports,
		findings: findings,
		logger:   log.WithField("component", "importer"),
	}
}

// ImportFile ingests a report from disk.
func (s *Service) ImportFile(ctx context.Context, path string) (*domain.ImportRun, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	return s.ImportReport(ctx, f, filepath.Base(path))
}

// ImportReport ingests a report from a stream. The run is recorded first
// so a conversion failure leaves a failed run behind for inspection; the
// conversion itself is all-or-nothing, so no findings are stored unless
// the whole report converts.
func (s *Service) ImportReport(ctx context.Context, r io.Reader, source string) (*domain.ImportRun, error) {
	now := time.Now()
	run := &domain.ImportRun{
		ID:          uuid.New(),
		Status:      domain.ImportStatusRunning,
		Source:      source,
		TargetStart: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.imports.Create(ctx, run); err != nil {
		return nil, err
	}

	logger := s.logger.WithFields(log.Fields{
		"import_id": run.ID.String(),
		"source":    source,
	})
	logger.Info("Starting report import")

	result, err := s.parser.Parse(r, run)
	if err != nil {
		logger.WithError(err).Error("Report conversion failed")
		s.markFailed(ctx, run, err)
		return run, fmt.Errorf("report conversion failed: %w", err)
	}

	run.ApplicationID = result.AppID
	run.ReportDate = &result.ReportDate

	if err := s.findings.SaveBatch(ctx, result.Findings); err != nil {
		logger.WithError(err).Error("Failed to persist findings")
		s.markFailed(ctx, run, err)
		return run, err
	}

	run.Status = domain.ImportStatusCompleted
	run.FindingsCount = len(result.Findings)
	for _, f := range result.Findings {
		switch f.Severity {
		case domain.SeverityCritical:
			run.CriticalCount++
		case domain.SeverityHigh:
			run.HighCount++
		case domain.SeverityMedium:
			run.MediumCount++
		case domain.SeverityLow:
			run.LowCount++
		case domain.SeverityInfo:
			run.InfoCount++
		}
	}
	completed := time.Now()
	run.CompletedAt = &completed

	if err := s.imports.Update(ctx, run); err != nil {
		return run, err
	}

	logger.WithFields(log.Fields{
		"app_id":   run.ApplicationID,
		"findings": run.FindingsCount,
	}).Info("Report import completed")

	return run, nil
}

func (s *Service) markFailed(ctx context.Context, run *domain.ImportRun, cause error) {
	run.Status = domain.ImportStatusFailed
	run.ErrorMessage = cause.Error()
	completed := time.Now()
	run.CompletedAt = &completed

	if err := s.imports.Update(ctx, run); err != nil {
		s.logger.WithError(err).Error("Failed to record failed import run")
	}
}
