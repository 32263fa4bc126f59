// Package cache decides whether a destination is computed afresh or reused,
// and tracks the sample tables of one run.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/inodb/vibe-burden/internal/burden"
	"github.com/inodb/vibe-burden/internal/duckdb"
	"github.com/inodb/vibe-burden/internal/ledger"
)

// Decision is the outcome of Acquire.
type Decision int

const (
	// Compute means the destination was claimed and must be written.
	Compute Decision = iota
	// Reuse means a persisted result exists and is trusted as is.
	Reuse
)

func (d Decision) String() string {
	if d == Reuse {
		return "reuse"
	}
	return "compute"
}

// SampleStore persists and loads sample tables.
type SampleStore interface {
	WriteSample(ctx context.Context, dir string, t *burden.SampleTable) error
	ReadSample(dir string) (*burden.SampleTable, error)
}

// Manager applies the compute/reuse/replace policy to destinations.
type Manager struct {
	runID     string
	overwrite bool
	ledger    *ledger.Ledger
	logger    *zap.Logger
}

// NewManager creates a manager for one run.
func NewManager(runID string, overwrite bool) *Manager {
	return &Manager{
		runID:     runID,
		overwrite: overwrite,
		logger:    zap.NewNop(),
	}
}

// SetLedger records claims in l. Without a ledger only the filesystem is used.
func (m *Manager) SetLedger(l *ledger.Ledger) {
	m.ledger = l
}

// SetLogger sets the logger for warning and debug messages.
func (m *Manager) SetLogger(l *zap.Logger) {
	m.logger = l
}

// Acquire decides what to do with dest.
//
// A missing destination is claimed with an exclusive mkdir and Compute is
// returned. An existing destination is removed and claimed when overwrite is
// set. Otherwise it is reused when reuse is true, and reported as
// burden.ErrAlreadyExists when it is not.
func (m *Manager) Acquire(ctx context.Context, dest string, reuse bool) (Decision, error) {
	_, err := os.Stat(dest)
	switch {
	case err == nil && !m.overwrite:
		if !reuse {
			return Compute, fmt.Errorf("destination %s: %w", dest, burden.ErrAlreadyExists)
		}
		m.checkComplete(ctx, dest)
		return Reuse, nil
	case err == nil:
		m.logger.Warn("overwriting existing destination", zap.String("path", dest))
		if err := os.RemoveAll(dest); err != nil {
			return Compute, fmt.Errorf("remove %s: %w", dest, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return Compute, fmt.Errorf("stat destination: %w", err)
	}

	if err := m.claim(ctx, dest); err != nil {
		return Compute, err
	}
	return Compute, nil
}

func (m *Manager) claim(ctx context.Context, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create parent of %s: %w", dest, err)
	}
	if err := os.Mkdir(dest, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("destination %s claimed concurrently: %w", dest, burden.ErrAlreadyExists)
		}
		return fmt.Errorf("claim %s: %w", dest, err)
	}
	if m.ledger == nil {
		return nil
	}

	// The directory is ours, so any ledger row left for it is stale.
	if err := m.ledger.Release(ctx, dest); err != nil {
		return err
	}
	return m.ledger.Claim(ctx, dest, m.runID)
}

func (m *Manager) checkComplete(ctx context.Context, dest string) {
	if m.ledger == nil {
		return
	}
	c, err := m.ledger.Lookup(ctx, dest)
	if err != nil {
		if !errors.Is(err, burden.ErrNotFound) {
			m.logger.Warn("ledger lookup failed", zap.String("path", dest), zap.Error(err))
		}
		return
	}
	if c.Status != ledger.StatusComplete {
		m.logger.Warn("reusing destination left incomplete by an earlier run",
			zap.String("path", dest),
			zap.String("claimed_by", c.RunID))
	}
}

// Commit marks a computed destination as fully persisted.
func (m *Manager) Commit(ctx context.Context, dest string) error {
	if m.ledger == nil {
		return nil
	}
	return m.ledger.Complete(ctx, dest)
}

// Abandon removes a claimed destination whose computation failed.
func (m *Manager) Abandon(ctx context.Context, dest string) {
	if err := os.RemoveAll(dest); err != nil {
		m.logger.Warn("remove abandoned destination", zap.String("path", dest), zap.Error(err))
	}
	if m.ledger != nil {
		if err := m.ledger.Release(ctx, dest); err != nil {
			m.logger.Warn("release abandoned claim", zap.String("path", dest), zap.Error(err))
		}
	}
}

// Materialize returns the sample table persisted at dest, calling compute and
// persisting its result when the destination has to be (re)built.
func (m *Manager) Materialize(ctx context.Context, store SampleStore, dest string,
	compute func(context.Context) (*burden.SampleTable, error)) (*burden.SampleTable, Decision, error) {

	d, err := m.Acquire(ctx, dest, true)
	if err != nil {
		return nil, d, err
	}

	if d == Reuse {
		t, err := store.ReadSample(dest)
		if err != nil {
			return nil, d, err
		}
		if duckdb.SourceChanged(t) {
			m.logger.Warn("input changed since sample was persisted",
				zap.String("sample", t.ID),
				zap.String("source", t.Source.Path))
		}
		m.logger.Debug("reusing sample", zap.String("sample", t.ID), zap.String("path", dest))
		return t, d, nil
	}

	t, err := compute(ctx)
	if err == nil {
		t.RunID = m.runID
		err = store.WriteSample(ctx, dest, t)
	}
	if err != nil {
		m.Abandon(context.Background(), dest)
		return nil, d, err
	}
	if err := m.Commit(ctx, dest); err != nil {
		return nil, d, err
	}
	return t, d, nil
}
