package burden

import (
	"path/filepath"
	"strings"
)

// sampleSuffixes are stripped, in order, from file names before prefix trimming.
var sampleSuffixes = []string{".gz", ".bgz", ".vcf"}

// IDTrimmer derives sample ids from file names and metadata keys.
type IDTrimmer struct {
	Prefixes []string
}

// Trim returns the sample id for name: the base name without VCF
// extensions and without the first matching known prefix.
func (t IDTrimmer) Trim(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	id := filepath.Base(name)
	for _, suf := range sampleSuffixes {
		id = strings.TrimSuffix(id, suf)
	}
	for _, p := range t.Prefixes {
		if p != "" && strings.HasPrefix(id, p) && len(id) > len(p) {
			return id[len(p):]
		}
	}
	return id
}
