package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-burden/internal/burden"
)

// entryColumns is the column layout of a persisted sample table.
const entryColumns = `row_idx BIGINT,
	chrom VARCHAR,
	pos BIGINT,
	ref VARCHAR,
	alt VARCHAR,
	gene VARCHAR,
	impact VARCHAR,
	hgnc_id BIGINT,
	max_af DOUBLE,
	alt_allele_count BIGINT,
	variant_fraction DOUBLE`

const entrySelect = `row_idx, chrom, pos, ref, alt, gene, impact, hgnc_id, max_af, alt_allele_count, variant_fraction`

// WriteSample persists t into dir, which must already exist, and sets t.Path.
// Entries are written as Parquet in their original order; globals go to a
// YAML sidecar written last, so a directory without it is incomplete.
func (s *Store) WriteSample(ctx context.Context, dir string, t *burden.SampleTable) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	stage := s.tableName("stage")
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", stage, entryColumns)); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}
	defer dropTable(context.Background(), conn, stage)

	if err := withAppender(conn, stage, func(a *goduckdb.Appender) error {
		for i := range t.Entries {
			if err := appendEntry(a, nil, int64(i), &t.Entries[i]); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("stage entries of %s: %w", t.ID, err)
	}

	out := filepath.Join(dir, EntriesFile)
	if _, err := conn.ExecContext(ctx, fmt.Sprintf(
		"COPY (SELECT * FROM %s ORDER BY row_idx) TO %s (FORMAT PARQUET)", stage, sqlString(out))); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	if err := writeGlobals(dir, t); err != nil {
		return err
	}
	t.Path = dir
	return nil
}

// ReadSample loads the globals of the sample table persisted at dir. Entries
// stay on disk and are read by Union.
func (s *Store) ReadSample(dir string) (*burden.SampleTable, error) {
	g, err := ReadGlobals(dir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(dir, EntriesFile)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("sample table %s has no %s: %w", dir, EntriesFile, burden.ErrIncomplete)
		}
		return nil, fmt.Errorf("stat entries: %w", err)
	}
	return &burden.SampleTable{
		ID:         g.SampleID,
		Metadata:   burden.NewMetadata(g.Phenotype, g.Mutation),
		EntryCount: g.Entries,
		Path:       dir,
		RunID:      g.RunID,
		Source:     g.Source,
	}, nil
}

// appendEntry appends e with any leading values (such as a sample ordinal).
func appendEntry(a *goduckdb.Appender, lead []driver.Value, rowIdx int64, e *burden.Entry) error {
	row := append(lead, rowIdx, e.Chrom, e.Pos, e.Ref, e.Alt, e.Gene, e.Impact,
		nullInt(e.HGNCID), nullFloat(e.MaxAF), e.AltAlleleCount, e.VariantFraction)
	if err := a.AppendRow(row...); err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

// entryDest returns scan destinations for the entry columns after row_idx.
func entryDest(e *burden.Entry) []any {
	return []any{&e.Chrom, &e.Pos, &e.Ref, &e.Alt, &e.Gene, &e.Impact,
		&e.HGNCID, &e.MaxAF, &e.AltAlleleCount, &e.VariantFraction}
}

func nullInt(v sql.NullInt64) driver.Value {
	if !v.Valid {
		return nil
	}
	return v.Int64
}

func nullFloat(v sql.NullFloat64) driver.Value {
	if !v.Valid {
		return nil
	}
	return v.Float64
}
