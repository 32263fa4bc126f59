// Package phenotype selects sample tables by their phenotype metadata.
package phenotype

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/inodb/vibe-burden/internal/burden"
)

// Filter returns the tables whose phenotype matches expr anywhere in the
// value. An empty expr selects every table. When nothing matches, the error
// is a *burden.NoMatchError listing every distinct phenotype among tables.
func Filter(tables []*burden.SampleTable, expr string) ([]*burden.SampleTable, error) {
	if expr == "" {
		return tables, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile phenotype expression: %w", err)
	}

	var out []*burden.SampleTable
	for _, t := range tables {
		if re.MatchString(t.Metadata.Phenotype) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, &burden.NoMatchError{Pattern: expr, Available: Available(tables)}
	}
	return out, nil
}

// Available returns the sorted distinct phenotypes of tables.
func Available(tables []*burden.SampleTable) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tables {
		if p := t.Metadata.Phenotype; !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
