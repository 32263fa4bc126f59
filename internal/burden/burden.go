// Package burden defines the data model for gene-level allele-frequency burden tables.
package burden

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// MinVariantFraction is the lowest alt-read fraction a genotype call may have to be retained.
const MinVariantFraction = 0.3

// NA is the placeholder for absent phenotype or mutation metadata.
const NA = "NA"

// Impact is a VEP functional impact class.
type Impact int

// Impact classes, in the order their columns appear in aggregate output.
const (
	ImpactModifier Impact = iota
	ImpactLow
	ImpactModerate
	ImpactHigh

	NumImpacts = 4
)

// Impacts lists every impact class in output order.
var Impacts = [NumImpacts]Impact{ImpactModifier, ImpactLow, ImpactModerate, ImpactHigh}

var impactNames = [NumImpacts]string{"MODIFIER", "LOW", "MODERATE", "HIGH"}

// String returns the VEP spelling of the impact class (e.g. "HIGH").
func (i Impact) String() string {
	return impactNames[i]
}

// Column returns the lowercase name used for the impact's output struct (e.g. "high").
func (i Impact) Column() string {
	return strings.ToLower(impactNames[i])
}

// Matches reports whether a raw IMPACT annotation belongs to this class.
// Matching is by substring, so compound values still count.
func (i Impact) Matches(raw string) bool {
	return strings.Contains(raw, impactNames[i])
}

// Bucket is a population allele-frequency range.
type Bucket int

// Frequency buckets, in output order.
const (
	BucketRare Bucket = iota
	BucketLowFrequency
	BucketCommon

	NumBuckets = 3
)

// Buckets lists every frequency bucket in output order.
var Buckets = [NumBuckets]Bucket{BucketRare, BucketLowFrequency, BucketCommon}

// bucketBound describes an open interval. Both bounds are strict: a MAX_AF
// equal to a bound is outside the bucket.
type bucketBound struct {
	name     string
	lower    float64
	upper    float64
	hasLower bool
	hasUpper bool
}

var bucketBounds = [NumBuckets]bucketBound{
	{name: "gnomad_1", upper: 0.01, hasUpper: true},
	{name: "gnomad_1_5", lower: 0.01, upper: 0.05, hasLower: true, hasUpper: true},
	{name: "gnomad_5_100", lower: 0.05, hasLower: true},
}

// String returns the bucket's column name (e.g. "gnomad_1_5").
func (b Bucket) String() string {
	return bucketBounds[b].name
}

// Contains reports whether maxAF falls strictly inside the bucket.
// A missing maxAF is never inside any bucket.
func (b Bucket) Contains(maxAF sql.NullFloat64) bool {
	if !maxAF.Valid {
		return false
	}
	bb := bucketBounds[b]
	if bb.hasLower && !(maxAF.Float64 > bb.lower) {
		return false
	}
	if bb.hasUpper && !(maxAF.Float64 < bb.upper) {
		return false
	}
	return true
}

// Predicate renders the bucket as a SQL boolean expression over column.
// NULL values compare to NULL and are therefore excluded by FILTER clauses.
func (b Bucket) Predicate(column string) string {
	bb := bucketBounds[b]
	var parts []string
	if bb.hasLower {
		parts = append(parts, column+" > "+formatBound(bb.lower))
	}
	if bb.hasUpper {
		parts = append(parts, column+" < "+formatBound(bb.upper))
	}
	return strings.Join(parts, " AND ")
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64) + "::DOUBLE"
}

// Entry is one retained genotype call for one variant in one sample.
type Entry struct {
	Chrom           string
	Pos             int64
	Ref             string
	Alt             string
	Gene            string
	Impact          string          // raw IMPACT annotation
	HGNCID          sql.NullInt64   // optional integer id from the annotation
	MaxAF           sql.NullFloat64 // population max allele frequency, missing stays missing
	AltAlleleCount  int64
	VariantFraction float64
}

// Metadata holds the per-sample globals attached to a SampleTable.
type Metadata struct {
	Phenotype string `yaml:"phenotype"`
	Mutation  string `yaml:"mutation"`
}

// DefaultMetadata is used for samples without a metadata record.
var DefaultMetadata = Metadata{Phenotype: NA, Mutation: NA}

// NewMetadata builds Metadata, replacing empty values with NA.
func NewMetadata(phenotype, mutation string) Metadata {
	if phenotype == "" {
		phenotype = NA
	}
	if mutation == "" {
		mutation = NA
	}
	return Metadata{Phenotype: phenotype, Mutation: mutation}
}

// Source records the identity of the raw input a SampleTable was built from.
type Source struct {
	Path    string    `yaml:"path,omitempty"`
	Size    int64     `yaml:"size,omitempty"`
	ModTime time.Time `yaml:"mod_time,omitempty"`
}

// SampleTable is the normalized entry set for one sample.
// Entries may be nil for a table loaded from disk; the table engine then
// reads them from Path when they are needed.
type SampleTable struct {
	ID         string
	Metadata   Metadata
	Entries    []Entry
	EntryCount int64
	Path       string
	RunID      string
	Source     Source
}

// Len returns the number of entries in the table, whether or not they are in memory.
func (s *SampleTable) Len() int64 {
	if s.Entries != nil {
		return int64(len(s.Entries))
	}
	return s.EntryCount
}

// GeneAggregate holds the twelve bucket sums for one gene.
type GeneAggregate struct {
	Gene   string
	Counts [NumImpacts][NumBuckets]int64
}

// Get returns the sum for one impact class and frequency bucket.
func (g *GeneAggregate) Get(i Impact, b Bucket) int64 {
	return g.Counts[i][b]
}

// Total returns the sum over all impact classes and buckets.
func (g *GeneAggregate) Total() int64 {
	var n int64
	for _, row := range g.Counts {
		for _, c := range row {
			n += c
		}
	}
	return n
}

// ColumnName returns the flat column name for an impact/bucket pair
// (e.g. "high_gnomad_1"), as stored in persisted aggregate tables.
func ColumnName(i Impact, b Bucket) string {
	return i.Column() + "_" + b.String()
}

// FieldName returns the dotted export name for an impact/bucket pair
// (e.g. "high.gnomad_1").
func FieldName(i Impact, b Bucket) string {
	return i.Column() + "." + b.String()
}
