package workers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vulnfeed/veracode-ingest/internal/domain"
)

// ReportImporter is the part of the importer service the inbox needs.
type ReportImporter interface {
	ImportFile(ctx context.Context, path string) (*domain.ImportRun, error)
}

// Inbox watches a drop directory for Veracode report files and imports
// them. Successfully imported files move to done/, failed ones to
// failed/, so a crashed run never re-ingests or loses a report.
type Inbox struct {
	importer ReportImporter
	dir      string
	interval time.Duration
	logger   *log.Entry
	stopChan chan struct{}
}

// NewInbox creates a new inbox worker
func NewInbox(imp ReportImporter, dir string, interval time.Duration) *Inbox {
	return &Inbox{
		importer: imp,
		dir:      dir,
		interval: interval,
		logger:   log.WithField("component", "inbox"),
		stopChan: make(chan struct{}),
	}
}

// Start begins the inbox's sweep loop
func (i *Inbox) Start(ctx context.Context) {
	i.logger.WithFields(log.Fields{
		"dir":      i.dir,
		"interval": i.interval,
	}).Info("Starting inbox worker")

	for _, sub := range []string{"done", "failed"} {
		if err := os.MkdirAll(filepath.Join(i.dir, sub), 0o755); err != nil {
			i.logger.WithError(err).Error("Failed to prepare inbox directories")
			return
		}
	}

	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	// Run immediately on start
	i.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			i.sweep(ctx)
		case <-i.stopChan:
			i.logger.Info("Inbox worker stopped")
			return
		case <-ctx.Done():
			i.logger.Info("Inbox worker context cancelled")
			return
		}
	}
}

// Stop gracefully stops the inbox worker
func (i *Inbox) Stop() {
	close(i.stopChan)
}

// sweep performs a single pass over the drop directory
func (i *Inbox) sweep(ctx context.Context) {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		i.logger.WithError(err).Error("Failed to read inbox directory")
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".xml") {
			continue
		}
		i.processFile(ctx, entry.Name())
	}
}

// processFile imports one report file and files it under done/ or
// failed/ depending on the outcome.
func (i *Inbox) processFile(ctx context.Context, name string) {
	path := filepath.Join(i.dir, name)
	logger := i.logger.WithField("file", name)
	logger.Info("Importing report from inbox")

	dest := "done"
	run, err := i.importer.ImportFile(ctx, path)
	if err != nil {
		logger.WithError(err).Warn("Report import failed")
		dest = "failed"
	} else {
		logger.WithFields(log.Fields{
			"import_id": run.ID.String(),
			"findings":  run.FindingsCount,
		}).Info("Report imported")
	}

	target := filepath.Join(i.dir, dest, name)
	if err := os.Rename(path, target); err != nil {
		logger.WithError(err).Error("Failed to move processed report")
	}
}
