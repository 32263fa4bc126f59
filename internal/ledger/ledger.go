// Package ledger records which destinations a run has claimed and whether
// their persistence completed. It is backed by SQLite through bun.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/inodb/vibe-burden/internal/burden"
)

// FileName is the ledger database stored at the root of a destination tree.
const FileName = ".vibe-burden-ledger.db"

// Claim statuses.
const (
	StatusClaimed  = "claimed"
	StatusComplete = "complete"
)

// Claim is one destination directory owned by a run.
type Claim struct {
	bun.BaseModel `bun:"table:claims,alias:c"`

	ID          int64      `bun:"id,pk,autoincrement"`
	Destination string     `bun:"destination,unique,notnull"`
	RunID       string     `bun:"run_id,notnull"`
	Status      string     `bun:"status,notnull"`
	ClaimedAt   time.Time  `bun:"claimed_at,notnull"`
	CompletedAt *time.Time `bun:"completed_at"`
}

// Ledger is a handle on the claim database.
type Ledger struct {
	db *bun.DB
}

// Open opens or creates the ledger at path. An empty path opens a private
// in-memory ledger. With debug set every query is logged.
func Open(ctx context.Context, path string, debug bool) (*Ledger, error) {
	dsn := "file::memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
		dsn = "file:" + path
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// One connection keeps an in-memory ledger shared across calls.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if _, err := db.ExecContext(ctx, `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set ledger pragmas: %w", err)
	}

	if _, err := db.NewCreateTable().Model((*Claim)(nil)).IfNotExists().Exec(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create claims table: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the ledger database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Claim records dest as owned by runID. A destination already present in the
// ledger, complete or not, yields burden.ErrAlreadyExists.
func (l *Ledger) Claim(ctx context.Context, dest, runID string) error {
	return l.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*Claim)(nil)).Where("destination = ?", dest).Exists(ctx)
		if err != nil {
			return fmt.Errorf("check claim: %w", err)
		}
		if exists {
			return fmt.Errorf("claim %s: %w", dest, burden.ErrAlreadyExists)
		}
		c := &Claim{
			Destination: dest,
			RunID:       runID,
			Status:      StatusClaimed,
			ClaimedAt:   time.Now().UTC(),
		}
		if _, err := tx.NewInsert().Model(c).Exec(ctx); err != nil {
			return fmt.Errorf("insert claim: %w", err)
		}
		return nil
	})
}

// Complete marks the claim on dest as fully persisted.
func (l *Ledger) Complete(ctx context.Context, dest string) error {
	now := time.Now().UTC()
	res, err := l.db.NewUpdate().Model((*Claim)(nil)).
		Set("status = ?", StatusComplete).
		Set("completed_at = ?", now).
		Where("destination = ?", dest).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("complete claim: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("claim %s: %w", dest, burden.ErrNotFound)
	}
	return nil
}

// Release forgets any claim on dest.
func (l *Ledger) Release(ctx context.Context, dest string) error {
	if _, err := l.db.NewDelete().Model((*Claim)(nil)).Where("destination = ?", dest).Exec(ctx); err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

// Lookup returns the claim on dest, or burden.ErrNotFound.
func (l *Ledger) Lookup(ctx context.Context, dest string) (*Claim, error) {
	c := new(Claim)
	err := l.db.NewSelect().Model(c).Where("destination = ?", dest).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim %s: %w", dest, burden.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup claim: %w", err)
	}
	return c, nil
}

// Pending returns claims that were never completed, oldest first.
func (l *Ledger) Pending(ctx context.Context) ([]Claim, error) {
	var claims []Claim
	err := l.db.NewSelect().Model(&claims).
		Where("status = ?", StatusClaimed).
		Order("claimed_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending claims: %w", err)
	}
	return claims, nil
}
