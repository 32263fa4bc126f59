package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"path/filepath"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/inodb/vibe-burden/internal/burden"
)

// Cohort is the concatenation of several sample tables, materialized once.
// Rows keep the order of their input tables and, within a table, the order
// of its entries.
type Cohort struct {
	store *Store
	table string
	n     int64
}

// Union concatenates tables into a new cohort. Persisted tables whose entries
// are not in memory are read from their Parquet files. An empty input yields
// burden.ErrNoInput.
func (s *Store) Union(ctx context.Context, tables []*burden.SampleTable) (*Cohort, error) {
	if len(tables) == 0 {
		return nil, burden.ErrNoInput
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	c := &Cohort{store: s, table: s.tableName("cohort")}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE %s (sample_ord BIGINT, sample_id VARCHAR, %s)", c.table, entryColumns)); err != nil {
		return nil, fmt.Errorf("create cohort table: %w", err)
	}

	for ord, t := range tables {
		if err := ctx.Err(); err != nil {
			dropTable(context.Background(), conn, c.table)
			return nil, err
		}
		if err := c.insert(ctx, conn, int64(ord), t); err != nil {
			dropTable(context.Background(), conn, c.table)
			return nil, fmt.Errorf("union %s: %w", t.ID, err)
		}
	}

	if err := conn.QueryRowContext(ctx, "SELECT count(*) FROM "+c.table).Scan(&c.n); err != nil {
		dropTable(context.Background(), conn, c.table)
		return nil, fmt.Errorf("count cohort: %w", err)
	}

	s.logger.Debug("built cohort", zap.String("table", c.table),
		zap.Int("samples", len(tables)), zap.Int64("entries", c.n))
	return c, nil
}

func (c *Cohort) insert(ctx context.Context, conn *sql.Conn, ord int64, t *burden.SampleTable) error {
	if t.Entries == nil && t.Path != "" {
		_, err := conn.ExecContext(ctx, fmt.Sprintf(
			"INSERT INTO %s SELECT %d, %s, %s FROM read_parquet(%s) ORDER BY row_idx",
			c.table, ord, sqlString(t.ID), entrySelect,
			sqlString(filepath.Join(t.Path, EntriesFile))))
		return err
	}
	if len(t.Entries) == 0 {
		return nil
	}
	return withAppender(conn, c.table, func(a *goduckdb.Appender) error {
		for i := range t.Entries {
			if err := appendEntry(a, []driver.Value{ord, t.ID}, int64(i), &t.Entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Len returns the number of rows in the cohort.
func (c *Cohort) Len() int64 {
	return c.n
}

// Drop releases the cohort's table.
func (c *Cohort) Drop(ctx context.Context) error {
	return dropTable(ctx, c.store.db, c.table)
}

// Aggregate groups the cohort by gene and sums alt allele counts per impact
// class and frequency bucket.
func (c *Cohort) Aggregate(ctx context.Context) (*AggregateTable, error) {
	agg := &AggregateTable{store: c.store, table: c.store.tableName("aggregate")}
	query := fmt.Sprintf("CREATE TABLE %s AS SELECT gene, %s FROM %s GROUP BY gene",
		agg.table, strings.Join(bucketSums("impact", "max_af", "alt_allele_count"), ", "), c.table)
	if _, err := c.store.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("aggregate cohort: %w", err)
	}
	return agg, nil
}

// bucketSums renders one summed column per impact class and frequency bucket.
func bucketSums(impact, maxAF, count string) []string {
	cols := make([]string, 0, burden.NumImpacts*burden.NumBuckets)
	for _, i := range burden.Impacts {
		for _, b := range burden.Buckets {
			cols = append(cols, fmt.Sprintf(
				"CAST(COALESCE(SUM(%s) FILTER (WHERE contains(%s, %s) AND %s), 0) AS BIGINT) AS %s",
				count, impact, sqlString(i.String()), b.Predicate(maxAF), burden.ColumnName(i, b)))
		}
	}
	return cols
}
