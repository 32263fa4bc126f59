// Package normalize turns an annotated per-sample VCF into a SampleTable of
// retained genotype calls.
package normalize

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/vibe-burden/internal/burden"
	"github.com/inodb/vibe-burden/internal/metadata"
	"github.com/inodb/vibe-burden/internal/vcf"
)

// Stats counts what happened to the rows and calls of one sample.
type Stats struct {
	Rows            int // variant rows read
	StarAlleles     int // rows skipped because the first alt allele is '*'
	Calls           int // genotype calls seen
	Retained        int // calls kept as entries
	LowFraction     int // calls dropped for variant fraction < MinVariantFraction
	MissingFraction int // calls dropped for undefined variant fraction
	BadNumeric      int // numeric CSQ fields that did not parse and were treated as missing
	ShortRecords    int // CSQ records with fewer sub-fields than the schema needs
	Unbucketed      int // retained entries that fall in no impact class or frequency bucket
}

// Normalizer builds SampleTables from annotated variant sources.
type Normalizer struct {
	names    FieldNames
	metadata metadata.Map
	logger   *zap.Logger
}

// NewNormalizer creates a normalizer that tags samples with metadata from md.
// md may be nil, in which case every sample gets burden.DefaultMetadata.
func NewNormalizer(md metadata.Map) *Normalizer {
	return &Normalizer{
		names:    DefaultFieldNames,
		metadata: md,
		logger:   zap.NewNop(),
	}
}

// SetFieldNames configures which CSQ sub-fields hold impact, gene, id and MAX_AF.
func (n *Normalizer) SetFieldNames(names FieldNames) {
	n.names = names
}

// SetLogger sets the logger for warning and debug messages.
func (n *Normalizer) SetLogger(l *zap.Logger) {
	n.logger = l
}

// NormalizeFile opens the VCF at path and normalizes it as sampleID.
func (n *Normalizer) NormalizeFile(path, sampleID string) (*burden.SampleTable, Stats, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Stats{}, fmt.Errorf("vcf %s: %w", path, burden.ErrNotFound)
		}
		return nil, Stats{}, fmt.Errorf("stat vcf: %w", err)
	}

	parser, err := vcf.NewParser(path)
	if err != nil {
		return nil, Stats{}, err
	}
	defer parser.Close()

	table, stats, err := n.Normalize(parser, sampleID)
	if err != nil {
		return nil, stats, fmt.Errorf("normalize %s: %w", path, err)
	}
	table.Source = burden.Source{Path: path, Size: info.Size(), ModTime: info.ModTime()}
	return table, stats, nil
}

// Normalize reads every row of src and returns the retained entries for sampleID.
func (n *Normalizer) Normalize(src vcf.AnnotatedSource, sampleID string) (*burden.SampleTable, Stats, error) {
	var stats Stats

	schema, err := ResolveSchema(src.CSQFields(), n.names)
	if err != nil {
		return nil, stats, err
	}

	table := &burden.SampleTable{
		ID:       sampleID,
		Metadata: n.metadata.Lookup(sampleID),
		Entries:  []burden.Entry{},
	}

	for {
		v, err := src.Next()
		if err != nil {
			return nil, stats, fmt.Errorf("read variant: %w", err)
		}
		if v == nil {
			break
		}
		stats.Rows++

		if v.FirstAlt() == vcf.StarAllele {
			stats.StarAlleles++
			continue
		}

		row := n.parseAnnotation(v.Annotation(), schema, &stats)
		row.Chrom = v.NormalizeChrom()
		row.Pos = v.Pos
		row.Ref = v.Ref
		row.Alt = v.Alt

		for i := range v.Calls {
			stats.Calls++
			c := &v.Calls[i]
			vf, ok := c.VariantFraction()
			if !ok {
				stats.MissingFraction++
				continue
			}
			if vf < burden.MinVariantFraction {
				stats.LowFraction++
				continue
			}

			e := row
			e.AltAlleleCount = c.AltAlleleCount()
			e.VariantFraction = vf
			table.Entries = append(table.Entries, e)
			stats.Retained++
			if !counted(&e) {
				stats.Unbucketed++
			}
		}
	}

	table.EntryCount = int64(len(table.Entries))

	n.logger.Debug("normalized sample",
		zap.String("sample", sampleID),
		zap.Int("rows", stats.Rows),
		zap.Int("calls", stats.Calls),
		zap.Int("retained", stats.Retained),
		zap.Int("low_fraction", stats.LowFraction),
		zap.Int("missing_fraction", stats.MissingFraction),
		zap.Int("star_alleles", stats.StarAlleles),
		zap.Int("unbucketed", stats.Unbucketed))
	if stats.BadNumeric > 0 || stats.ShortRecords > 0 {
		n.logger.Warn("malformed csq values treated as missing",
			zap.String("sample", sampleID),
			zap.Int("bad_numeric", stats.BadNumeric),
			zap.Int("short_records", stats.ShortRecords))
	}

	return table, stats, nil
}

// counted reports whether e contributes to any aggregate column.
func counted(e *burden.Entry) bool {
	impact := false
	for _, i := range burden.Impacts {
		if i.Matches(e.Impact) {
			impact = true
			break
		}
	}
	if !impact {
		return false
	}
	for _, b := range burden.Buckets {
		if b.Contains(e.MaxAF) {
			return true
		}
	}
	return false
}

// parseAnnotation splits one CSQ record into the row-level entry fields.
func (n *Normalizer) parseAnnotation(record string, schema Schema, stats *Stats) burden.Entry {
	fields := strings.Split(record, "|")
	if record != "" && len(fields) < schema.width() {
		stats.ShortRecords++
	}
	field := func(i int) string {
		if i < len(fields) {
			return strings.TrimSpace(fields[i])
		}
		return ""
	}

	var e burden.Entry
	e.Impact = field(schema.Impact)
	e.Gene = field(schema.Gene)

	if id, ok, bad := parseOptionalInt(strings.TrimPrefix(field(schema.ID), "HGNC:")); ok {
		e.HGNCID = sql.NullInt64{Int64: id, Valid: true}
	} else if bad {
		stats.BadNumeric++
	}

	if af, ok, bad := parseOptionalFloat(field(schema.MaxAF)); ok {
		e.MaxAF = sql.NullFloat64{Float64: af, Valid: true}
	} else if bad {
		stats.BadNumeric++
	}

	return e
}

// parseOptionalFloat treats empty text as missing rather than zero.
func parseOptionalFloat(s string) (v float64, ok, bad bool) {
	if s == "" {
		return 0, false, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, true
	}
	return v, true, false
}

func parseOptionalInt(s string) (v int64, ok, bad bool) {
	if s == "" {
		return 0, false, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, true
	}
	return v, true, false
}
