// Package vcf reads annotated VCF files: per-variant INFO annotations and
// per-sample genotype calls.
package vcf

// VariantParser is the interface for sources of annotated variant rows.
type VariantParser interface {
	// Next reads the next variant.
	// Returns nil, nil when there are no more variants.
	Next() (*Variant, error)

	// Close closes the parser and releases resources.
	Close() error

	// LineNumber returns the current line number being processed.
	LineNumber() int
}

// AnnotatedSource is a VariantParser that also exposes the declared layout of
// the CSQ annotation string.
type AnnotatedSource interface {
	VariantParser

	// CSQFields returns the CSQ sub-field names declared in the header, or
	// nil when the header does not declare a Format.
	CSQFields() []string
}
