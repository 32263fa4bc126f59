package duckdb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/inodb/vibe-burden/internal/burden"
)

// AggregateFile is the Parquet file holding a persisted aggregate.
const AggregateFile = "aggregate.parquet"

// AggregateTable is a materialized gene aggregate: one row per gene with a
// BIGINT column per impact class and frequency bucket.
type AggregateTable struct {
	store *Store
	table string
}

// aggregateColumns lists the count columns in output order.
func aggregateColumns() []string {
	cols := make([]string, 0, burden.NumImpacts*burden.NumBuckets)
	for _, i := range burden.Impacts {
		for _, b := range burden.Buckets {
			cols = append(cols, burden.ColumnName(i, b))
		}
	}
	return cols
}

// Rows returns the aggregate sorted by gene.
func (a *AggregateTable) Rows(ctx context.Context) ([]burden.GeneAggregate, error) {
	rows, err := a.store.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT gene, %s FROM %s ORDER BY gene", strings.Join(aggregateColumns(), ", "), a.table))
	if err != nil {
		return nil, fmt.Errorf("query aggregate: %w", err)
	}
	defer rows.Close()

	var out []burden.GeneAggregate
	for rows.Next() {
		var g burden.GeneAggregate
		dest := make([]any, 0, 1+burden.NumImpacts*burden.NumBuckets)
		dest = append(dest, &g.Gene)
		for _, i := range burden.Impacts {
			for _, b := range burden.Buckets {
				dest = append(dest, &g.Counts[i][b])
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate: %w", err)
	}
	return out, nil
}

// WriteParquet persists the aggregate as dir/aggregate.parquet. dir must exist.
func (a *AggregateTable) WriteParquet(ctx context.Context, dir string) error {
	out := filepath.Join(dir, AggregateFile)
	if _, err := a.store.db.ExecContext(ctx, fmt.Sprintf(
		"COPY (SELECT * FROM %s ORDER BY gene) TO %s (FORMAT PARQUET)", a.table, sqlString(out))); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	return nil
}

// Drop releases the aggregate's table.
func (a *AggregateTable) Drop(ctx context.Context) error {
	return dropTable(ctx, a.store.db, a.table)
}

// ReadAggregate loads an aggregate persisted in dir.
func (s *Store) ReadAggregate(ctx context.Context, dir string) (*AggregateTable, error) {
	in := filepath.Join(dir, AggregateFile)
	if _, err := os.Stat(in); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("aggregate %s: %w", dir, burden.ErrNotFound)
		}
		return nil, fmt.Errorf("stat aggregate: %w", err)
	}
	a := &AggregateTable{store: s, table: s.tableName("aggregate")}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE %s AS SELECT * FROM read_parquet(%s)", a.table, sqlString(in))); err != nil {
		return nil, fmt.Errorf("read %s: %w", in, err)
	}
	return a, nil
}
