package vcf

import "strings"

// StarAllele is the symbolic allele for a deletion spanning the locus.
const StarAllele = "*"

// Variant represents a single VCF row with its genotype calls.
type Variant struct {
	Chrom  string                 // Chromosome name (e.g., "12", "chr12")
	Pos    int64                  // 1-based genomic position
	ID     string                 // Variant identifier (e.g., rs ID)
	Ref    string                 // Reference allele
	Alt    string                 // Alternate alleles, comma separated as in the file
	Qual   float64                // Quality score
	Filter string                 // Filter status (PASS or filter name)
	Info   map[string]interface{} // INFO field key-value pairs
	Format []string               // FORMAT keys
	Calls  []Call                 // one genotype call per sample column
}

// FirstAlt returns the first alternate allele, or "" when there is none.
func (v *Variant) FirstAlt() string {
	alt, _, _ := strings.Cut(v.Alt, ",")
	if alt == "." {
		return ""
	}
	return alt
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func (v *Variant) NormalizeChrom() string {
	if len(v.Chrom) > 3 && v.Chrom[:3] == "chr" {
		return v.Chrom[3:]
	}
	return v.Chrom
}

// Annotation returns the first record of the CSQ INFO field, or "" when the
// row is not annotated.
func (v *Variant) Annotation() string {
	raw, ok := v.Info[CSQKey].(string)
	if !ok {
		return ""
	}
	first, _, _ := strings.Cut(raw, ",")
	return first
}

// Call is one sample's genotype call at a variant.
type Call struct {
	GT     []int // allele indices, -1 for a missing allele
	Phased bool
	AD     []int // allelic depths, -1 for a missing value
	DP     int
	HasDP  bool
}

// AltAlleleCount returns the number of called non-reference alleles.
func (c *Call) AltAlleleCount() int64 {
	var n int64
	for _, a := range c.GT {
		if a > 0 {
			n++
		}
	}
	return n
}

// VariantFraction returns the first alternate allele's read depth over the
// total depth. ok is false when either depth is missing or the total is 0.
func (c *Call) VariantFraction() (fraction float64, ok bool) {
	if !c.HasDP || c.DP == 0 || len(c.AD) < 2 || c.AD[1] < 0 {
		return 0, false
	}
	return float64(c.AD[1]) / float64(c.DP), true
}
