package workers

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vulnfeed/veracode-ingest/internal/interfaces"
)

// Cleaner enforces the retention policy by deleting import runs older
// than the configured window. Findings go with their run via the foreign
// key cascade.
type Cleaner struct {
	imports   interfaces.ImportRepository
	retention time.Duration
	interval  time.Duration
	logger    *log.Entry
	stopChan  chan struct{}
}

// NewCleaner creates a new cleaner worker
func NewCleaner(imports interfaces.ImportRepository, retention, interval time.Duration) *Cleaner {
	return &Cleaner{
		imports:   imports,
		retention: retention,
		interval:  interval,
		logger:    log.WithField("component", "cleaner"),
		stopChan:  make(chan struct{}),
	}
}

// Start begins the cleaner's cleanup schedule
func (c *Cleaner) Start(ctx context.Context) {
	c.logger.WithFields(log.Fields{
		"retention": c.retention,
		"interval":  c.interval,
	}).Info("Starting cleaner worker")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup(ctx)
		case <-c.stopChan:
			c.logger.Info("Cleaner worker stopped")
			return
		case <-ctx.Done():
			c.logger.Info("Cleaner worker context cancelled")
			return
		}
	}
}

// Stop gracefully stops the cleaner
func (c *Cleaner) Stop() {
	close(c.stopChan)
}

// cleanup performs a single retention pass
func (c *Cleaner) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-c.retention)
	c.logger.WithField("cutoff", cutoff).Debug("Starting cleanup cycle")

	deleted, err := c.imports.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		c.logger.WithError(err).Error("Failed to delete expired import runs")
		return
	}

	if deleted > 0 {
		c.logger.WithField("deleted", deleted).Info("Expired import runs removed")
	}
}
