package normalize

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-burden/internal/burden"
	"github.com/inodb/vibe-burden/internal/metadata"
	"github.com/inodb/vibe-burden/internal/vcf"
)

const header = "##fileformat=VCFv4.2\n" +
	"##INFO=<ID=CSQ,Number=.,Type=String,Description=\"Consequence annotations from Ensembl VEP. Format: IMPACT|SYMBOL|HGNC_ID|MAX_AF\">\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n"

func parse(t *testing.T, body string) *vcf.Parser {
	t.Helper()
	p, err := vcf.NewParserFromReader(strings.NewReader(header + body))
	require.NoError(t, err)
	return p
}

func TestNormalize_FiltersAndDerivesFields(t *testing.T) {
	body := "chr17\t100\t.\tC\tT\t.\tPASS\tCSQ=HIGH|TP53|HGNC:11998|0.002\tGT:AD:DP\t0/1:10,10:20\n" +
		"chr17\t200\t.\tC\tA\t.\tPASS\tCSQ=MODERATE|TP53||\tGT:AD:DP\t1/1:0,30:30\n" +
		"chr17\t300\t.\tG\tC\t.\tPASS\tCSQ=LOW|TP53|11998|0.3\tGT:AD:DP\t0/1:18,2:20\n" +
		"chr17\t400\t.\tG\t*,C\t.\tPASS\tCSQ=HIGH|TP53|11998|0.001\tGT:AD:DP\t1/2:0,5,5:10\n" +
		"chr17\t500\t.\tA\tG\t.\tPASS\tCSQ=HIGH|TP53|11998|0.001\tGT:AD:DP\t0/1:0,0:0\n"

	md := metadata.Map{"S1": {Phenotype: "PhenoA", Mutation: "MutX"}}
	n := NewNormalizer(md)

	table, stats, err := n.Normalize(parse(t, body), "S1")
	require.NoError(t, err)

	assert.Equal(t, "S1", table.ID)
	assert.Equal(t, burden.Metadata{Phenotype: "PhenoA", Mutation: "MutX"}, table.Metadata)
	require.Len(t, table.Entries, 2)
	assert.Equal(t, int64(2), table.EntryCount)

	first := table.Entries[0]
	assert.Equal(t, "17", first.Chrom)
	assert.Equal(t, int64(100), first.Pos)
	assert.Equal(t, "TP53", first.Gene)
	assert.Equal(t, "HIGH", first.Impact)
	assert.Equal(t, sql.NullInt64{Int64: 11998, Valid: true}, first.HGNCID)
	assert.Equal(t, sql.NullFloat64{Float64: 0.002, Valid: true}, first.MaxAF)
	assert.Equal(t, int64(1), first.AltAlleleCount)
	assert.InDelta(t, 0.5, first.VariantFraction, 1e-9)

	second := table.Entries[1]
	assert.False(t, second.MaxAF.Valid, "empty MAX_AF must stay missing, not 0")
	assert.False(t, second.HGNCID.Valid)
	assert.Equal(t, int64(2), second.AltAlleleCount)

	assert.Equal(t, Stats{
		Rows: 5, StarAlleles: 1, Calls: 4, Retained: 2,
		LowFraction: 1, MissingFraction: 1, Unbucketed: 1,
	}, stats)
}

func TestNormalize_FractionThresholdInclusive(t *testing.T) {
	body := "1\t100\t.\tA\tT\t.\tPASS\tCSQ=HIGH|BRCA1|1100|0.001\tGT:AD:DP\t0/1:7,3:10\n"
	table, _, err := NewNormalizer(nil).Normalize(parse(t, body), "S1")
	require.NoError(t, err)
	require.Len(t, table.Entries, 1, "a fraction of exactly 0.3 is retained")
}

func TestNormalize_DefaultMetadata(t *testing.T) {
	table, _, err := NewNormalizer(nil).Normalize(parse(t, ""), "S9")
	require.NoError(t, err)
	assert.Equal(t, burden.DefaultMetadata, table.Metadata)
	assert.Empty(t, table.Entries)
	assert.NotNil(t, table.Entries)
}

func TestNormalize_BadNumericIsMissing(t *testing.T) {
	body := "1\t100\t.\tA\tT\t.\tPASS\tCSQ=HIGH|BRCA1|x|0.1&0.2\tGT:AD:DP\t0/1:5,5:10\n" +
		"1\t200\t.\tA\tT\t.\tPASS\tCSQ=HIGH|BRCA1\tGT:AD:DP\t0/1:5,5:10\n"
	table, stats, err := NewNormalizer(nil).Normalize(parse(t, body), "S1")
	require.NoError(t, err)
	require.Len(t, table.Entries, 2)
	assert.False(t, table.Entries[0].MaxAF.Valid)
	assert.False(t, table.Entries[0].HGNCID.Valid)
	assert.Equal(t, 2, stats.BadNumeric)
	assert.Equal(t, 1, stats.ShortRecords)
	assert.Equal(t, "BRCA1", table.Entries[1].Gene)
}

func TestNormalize_HeaderDerivedOffsets(t *testing.T) {
	input := "##fileformat=VCFv4.2\n" +
		"##INFO=<ID=CSQ,Number=.,Type=String,Description=\"Format: Allele|SYMBOL|MAX_AF|IMPACT|HGNC_ID\">\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n" +
		"1\t100\t.\tA\tT\t.\tPASS\tCSQ=T|BRCA2|0.04|MODERATE|1101\tGT:AD:DP\t0/1:5,5:10\n"
	p, err := vcf.NewParserFromReader(strings.NewReader(input))
	require.NoError(t, err)

	table, _, err := NewNormalizer(nil).Normalize(p, "S1")
	require.NoError(t, err)
	require.Len(t, table.Entries, 1)
	e := table.Entries[0]
	assert.Equal(t, "BRCA2", e.Gene)
	assert.Equal(t, "MODERATE", e.Impact)
	assert.InDelta(t, 0.04, e.MaxAF.Float64, 1e-12)
	assert.Equal(t, int64(1101), e.HGNCID.Int64)
}

func TestNormalize_SchemaMismatch(t *testing.T) {
	input := "##fileformat=VCFv4.2\n" +
		"##INFO=<ID=CSQ,Number=.,Type=String,Description=\"Format: Allele|SYMBOL\">\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"
	p, err := vcf.NewParserFromReader(strings.NewReader(input))
	require.NoError(t, err)

	_, _, err = NewNormalizer(nil).Normalize(p, "S1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMPACT")
}

func TestResolveSchema(t *testing.T) {
	s, err := ResolveSchema(nil, DefaultFieldNames)
	require.NoError(t, err)
	assert.Equal(t, PositionalSchema, s)

	s, err = ResolveSchema([]string{"MAX_AF", "HGNC_ID", "SYMBOL", "IMPACT"}, DefaultFieldNames)
	require.NoError(t, err)
	assert.Equal(t, Schema{Impact: 3, Gene: 2, ID: 1, MaxAF: 0}, s)
	assert.Equal(t, 4, s.width())

	names := DefaultFieldNames
	names.ID = "Gene"
	s, err = ResolveSchema([]string{"IMPACT", "SYMBOL", "Gene", "MAX_AF"}, names)
	require.NoError(t, err)
	assert.Equal(t, 2, s.ID)
}

func TestNormalizeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "S1.vcf")
	body := "1\t100\t.\tA\tT\t.\tPASS\tCSQ=HIGH|BRCA1|1100|0.001\tGT:AD:DP\t0/1:5,5:10\n"
	require.NoError(t, os.WriteFile(path, []byte(header+body), 0644))

	table, stats, err := NewNormalizer(nil).NormalizeFile(path, "S1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Retained)
	assert.Equal(t, path, table.Source.Path)
	assert.NotZero(t, table.Source.Size)
}

func TestNormalizeFile_NotFound(t *testing.T) {
	_, _, err := NewNormalizer(nil).NormalizeFile(filepath.Join(t.TempDir(), "missing.vcf"), "S1")
	require.Error(t, err)
	assert.ErrorIs(t, err, burden.ErrNotFound)
}

func TestNormalize_Unbucketed(t *testing.T) {
	body := "1\t100\t.\tA\tT\t.\tPASS\tCSQ=HIGH|BRCA1|1100|0.01\tGT:AD:DP\t0/1:5,5:10\n" +
		"1\t200\t.\tA\tT\t.\tPASS\tCSQ=UNKNOWN|BRCA1|1100|0.001\tGT:AD:DP\t0/1:5,5:10\n" +
		"1\t300\t.\tA\tT\t.\tPASS\tCSQ=splice&LOW|BRCA1|1100|0.2\tGT:AD:DP\t0/1:5,5:10\n"
	table, stats, err := NewNormalizer(nil).Normalize(parse(t, body), "S1")
	require.NoError(t, err)
	require.Len(t, table.Entries, 3, "unbucketed entries are still retained")
	assert.Equal(t, 2, stats.Unbucketed)
}
