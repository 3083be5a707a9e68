package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vulnfeed/veracode-ingest/internal/interfaces"
)

type stubImportRepo struct {
	interfaces.ImportRepository

	cutoffs []time.Time
	deleted int64
	err     error
}

func (s *stubImportRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoffs = append(s.cutoffs, cutoff)
	return s.deleted, s.err
}

func TestCleanerCleanup(t *testing.T) {
	repo := &stubImportRepo{deleted: 3}
	cleaner := NewCleaner(repo, 90*24*time.Hour, time.Hour)

	before := time.Now().Add(-90 * 24 * time.Hour)
	cleaner.cleanup(context.Background())
	after := time.Now().Add(-90 * 24 * time.Hour)

	assert.Len(t, repo.cutoffs, 1)
	cutoff := repo.cutoffs[0]
	assert.False(t, cutoff.Before(before))
	assert.False(t, cutoff.After(after))
}

func TestCleanerCleanupSwallowsErrors(t *testing.T) {
	repo := &stubImportRepo{err: errors.New("db down")}
	cleaner := NewCleaner(repo, time.Hour, time.Hour)

	// A failed pass logs and moves on; the next tick retries.
	cleaner.cleanup(context.Background())
	cleaner.cleanup(context.Background())
	assert.Len(t, repo.cutoffs, 2)
}

func TestCleanerStartStops(t *testing.T) {
	repo := &stubImportRepo{}
	cleaner := NewCleaner(repo, time.Hour, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		cleaner.Start(context.Background())
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cleaner.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleaner did not stop")
	}
	assert.NotEmpty(t, repo.cutoffs)
}
