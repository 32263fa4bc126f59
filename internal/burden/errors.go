package burden

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for structural and configuration failures. They are
// wrapped with the offending path or key and are never retried.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNoInput       = errors.New("no tables to be joined based on current configuration")
	ErrIncomplete    = errors.New("incomplete table")
)

// NoMatchError reports a phenotype expression that selected no samples.
type NoMatchError struct {
	Pattern   string
	Available []string // distinct phenotype values across all candidates
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no tables matched phenotype %q; phenotype keys available: [%s]",
		e.Pattern, strings.Join(e.Available, ", "))
}
