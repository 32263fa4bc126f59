// Package output writes gene aggregates as tab-delimited text.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/inodb/vibe-burden/internal/burden"
)

// TabWriter writes gene aggregates in tab-delimited format, one gene per line.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer. Count columns use the
// dotted impact.bucket naming, e.g. "high.gnomad_1".
func NewTabWriter(w io.Writer) *TabWriter {
	columns := []string{"gene"}
	for _, i := range burden.Impacts {
		for _, b := range burden.Buckets {
			columns = append(columns, burden.FieldName(i, b))
		}
	}
	return &TabWriter{
		w:       bufio.NewWriter(w),
		columns: columns,
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single gene aggregate.
func (tw *TabWriter) Write(g *burden.GeneAggregate) error {
	values := make([]string, 0, len(tw.columns))
	values = append(values, g.Gene)
	for _, i := range burden.Impacts {
		for _, b := range burden.Buckets {
			values = append(values, strconv.FormatInt(g.Get(i, b), 10))
		}
	}
	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// WriteFile writes rows with a header to path, replacing any existing file.
// Missing parent directories are created.
func WriteFile(path string, rows []burden.GeneAggregate) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	tw := NewTabWriter(f)
	if err := tw.WriteHeader(); err != nil {
		f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for i := range rows {
		if err := tw.Write(&rows[i]); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", rows[i].Gene, err)
		}
	}
	if err := tw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}
