package cache

import (
	"fmt"

	"github.com/inodb/vibe-burden/internal/burden"
)

// Registry holds the sample tables of one run in insertion order.
type Registry struct {
	tables []*burden.SampleTable
	ids    map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]struct{})}
}

// Add appends t. A second table with the same id is rejected.
func (r *Registry) Add(t *burden.SampleTable) error {
	if _, dup := r.ids[t.ID]; dup {
		return fmt.Errorf("sample %s: %w", t.ID, burden.ErrAlreadyExists)
	}
	r.ids[t.ID] = struct{}{}
	r.tables = append(r.tables, t)
	return nil
}

// Len returns the number of tables.
func (r *Registry) Len() int {
	return len(r.tables)
}

// Tables returns the tables in insertion order.
func (r *Registry) Tables() []*burden.SampleTable {
	out := make([]*burden.SampleTable, len(r.tables))
	copy(out, r.tables)
	return out
}
