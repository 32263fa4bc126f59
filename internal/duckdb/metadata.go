package duckdb

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/inodb/vibe-burden/internal/burden"
)

// Files making up a persisted sample table.
const (
	EntriesFile = "entries.parquet"
	GlobalsFile = "globals.yaml"
)

// Globals is the YAML sidecar stored next to a sample's entries.
type Globals struct {
	SampleID        string `yaml:"sample_id"`
	burden.Metadata `yaml:",inline"`
	RunID           string        `yaml:"run_id,omitempty"`
	Entries         int64         `yaml:"entries"`
	Source          burden.Source `yaml:"source,omitempty"`
	CreatedAt       time.Time     `yaml:"created_at"`
}

// StatFile creates a stat-based fingerprint for an on-disk file.
func StatFile(path string) (burden.Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return burden.Source{}, err
	}
	return burden.Source{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// SourceChanged reports whether the file a persisted table was built from
// differs from its recorded fingerprint. Tables without a recorded source
// never report a change.
func SourceChanged(t *burden.SampleTable) bool {
	if t.Source.Path == "" {
		return false
	}
	cur, err := StatFile(t.Source.Path)
	if err != nil {
		return true
	}
	return cur.Size != t.Source.Size || !cur.ModTime.Equal(t.Source.ModTime)
}

func writeGlobals(dir string, t *burden.SampleTable) error {
	g := Globals{
		SampleID:  t.ID,
		Metadata:  t.Metadata,
		RunID:     t.RunID,
		Entries:   t.Len(),
		Source:    t.Source,
		CreatedAt: time.Now().UTC(),
	}
	data, err := yaml.Marshal(&g)
	if err != nil {
		return fmt.Errorf("marshal globals: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, GlobalsFile), data, 0644); err != nil {
		return fmt.Errorf("write globals: %w", err)
	}
	return nil
}

// ReadGlobals reads the sidecar of the sample table persisted at dir. A
// missing dir is burden.ErrNotFound; a dir without the sidecar was never
// finished and is burden.ErrIncomplete.
func ReadGlobals(dir string) (*Globals, error) {
	data, err := os.ReadFile(filepath.Join(dir, GlobalsFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if _, serr := os.Stat(dir); serr != nil {
				return nil, fmt.Errorf("sample table %s: %w", dir, burden.ErrNotFound)
			}
			return nil, fmt.Errorf("sample table %s has no %s: %w", dir, GlobalsFile, burden.ErrIncomplete)
		}
		return nil, fmt.Errorf("read globals: %w", err)
	}
	var g Globals
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Join(dir, GlobalsFile), err)
	}
	return &g, nil
}
