// Package metadata loads per-sample phenotype and mutation globals from a
// tab-delimited, Latin-1 encoded file.
package metadata

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/inodb/vibe-burden/internal/burden"
)

// Map maps sample id to its metadata.
type Map map[string]burden.Metadata

// Lookup returns the metadata for id, or burden.DefaultMetadata when the
// sample has no record. A nil Map always returns the default.
func (m Map) Lookup(id string) burden.Metadata {
	if md, ok := m[id]; ok {
		return md
	}
	return burden.DefaultMetadata
}

// Load reads a metadata file. Each line is id, phenotype, mutation separated
// by tabs; trailing fields are optional.
func Load(path string, trim burden.IDTrimmer, logger *zap.Logger) (Map, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("metadata file %s: %w", path, burden.ErrNotFound)
		}
		return nil, fmt.Errorf("open metadata file: %w", err)
	}
	defer f.Close()

	m, err := Parse(f, trim, logger)
	if err != nil {
		return nil, fmt.Errorf("read metadata file %s: %w", path, err)
	}
	return m, nil
}

// Parse reads metadata lines from r. On a duplicate id the first record wins
// and the collision is logged as a warning.
func Parse(r io.Reader, trim burden.IDTrimmer, logger *zap.Logger) (Map, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := make(Map)
	scanner := bufio.NewScanner(charmap.ISO8859_1.NewDecoder().Reader(r))
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		id := trim.Trim(fields[0])

		md := burden.DefaultMetadata
		switch {
		case len(fields) >= 3:
			md = burden.NewMetadata(strings.TrimSpace(fields[1]), strings.TrimSpace(fields[2]))
		case len(fields) == 2:
			md = burden.NewMetadata(strings.TrimSpace(fields[1]), "")
		}

		if existing, ok := m[id]; ok {
			logger.Warn("duplicate metadata key",
				zap.String("id", id),
				zap.Int("line", lineNumber),
				zap.Strings("fields", fields),
				zap.String("retained_phenotype", existing.Phenotype),
				zap.String("retained_mutation", existing.Mutation))
			continue
		}
		m[id] = md
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}
