package vcf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParser_AnnotatedVariants(t *testing.T) {
	testFile := findTestFile(t, "annotated.vcf")

	parser, err := NewParser(testFile)
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	defer parser.Close()

	v, err := parser.Next()
	if err != nil {
		t.Fatalf("Failed to read variant: %v", err)
	}
	if v == nil {
		t.Fatal("Expected a variant, got nil")
	}

	if v.Chrom != "chr17" || v.NormalizeChrom() != "17" {
		t.Errorf("Unexpected chrom %s (normalized %s)", v.Chrom, v.NormalizeChrom())
	}
	if v.Pos != 7674220 {
		t.Errorf("Expected pos 7674220, got %d", v.Pos)
	}
	if got := v.Annotation(); got != "HIGH|TP53|11998|0.002" {
		t.Errorf("Expected first CSQ record, got %q", got)
	}
	if len(v.Calls) != 1 {
		t.Fatalf("Expected 1 call, got %d", len(v.Calls))
	}

	c := v.Calls[0]
	if c.AltAlleleCount() != 1 {
		t.Errorf("Expected 1 alt allele, got %d", c.AltAlleleCount())
	}
	vf, ok := c.VariantFraction()
	if !ok || vf != 0.5 {
		t.Errorf("Expected variant fraction 0.5, got %v (ok=%v)", vf, ok)
	}

	count := 1
	for {
		v, err := parser.Next()
		if err != nil {
			t.Fatalf("Error reading variant: %v", err)
		}
		if v == nil {
			break
		}
		count++
	}
	if count != 5 {
		t.Errorf("Expected 5 variants, got %d", count)
	}
}

func TestParser_Gzip(t *testing.T) {
	parser, err := NewParser(findTestFile(t, "annotated.vcf.gz"))
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	defer parser.Close()

	v, err := parser.Next()
	if err != nil || v == nil {
		t.Fatalf("Expected a variant, got %v (err=%v)", v, err)
	}
	if v.Pos != 7674220 {
		t.Errorf("Expected pos 7674220, got %d", v.Pos)
	}
}

func TestParser_CSQFields(t *testing.T) {
	parser, err := NewParser(findTestFile(t, "annotated.vcf"))
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	defer parser.Close()

	want := []string{"IMPACT", "SYMBOL", "HGNC_ID", "MAX_AF"}
	got := parser.CSQFields()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("CSQFields() = %v, want %v", got, want)
	}
}

func TestParser_NoCSQHeader(t *testing.T) {
	input := "##fileformat=VCFv4.2\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"1\t100\t.\tA\tT\t.\tPASS\tCSQ=HIGH|BRCA1||0.1\n"

	parser, err := NewParserFromReader(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	if parser.CSQFields() != nil {
		t.Errorf("Expected no CSQ fields, got %v", parser.CSQFields())
	}
	v, err := parser.Next()
	if err != nil || v == nil {
		t.Fatalf("Expected a variant, got %v (err=%v)", v, err)
	}
	if len(v.Calls) != 0 {
		t.Errorf("Expected no calls for a sites-only VCF, got %d", len(v.Calls))
	}
}

func TestParser_MissingChromHeader(t *testing.T) {
	_, err := NewParserFromReader(strings.NewReader("##fileformat=VCFv4.2\n1\t100\t.\tA\tT\n"))
	if err == nil {
		t.Fatal("Expected an error for a missing #CHROM line")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Errorf("Expected *ParseError, got %T", err)
	}
}

func TestParseCall(t *testing.T) {
	tests := []struct {
		name     string
		format   []string
		sample   string
		altCount int64
		vf       float64
		vfOK     bool
	}{
		{"het", []string{"GT", "AD", "DP"}, "0/1:6,4:10", 1, 0.4, true},
		{"hom alt phased", []string{"GT", "AD", "DP"}, "1|1:0,8:8", 2, 1, true},
		{"no call", []string{"GT", "AD", "DP"}, "./.:.:.", 0, 0, false},
		{"zero depth", []string{"GT", "AD", "DP"}, "0/1:0,0:0", 1, 0, false},
		{"missing DP", []string{"GT", "AD"}, "0/1:3,3", 1, 0, false},
		{"truncated sample", []string{"GT", "AD", "DP", "GQ"}, "0/1:5,5:10", 1, 0.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := parseCall(tt.format, tt.sample)
			if err != nil {
				t.Fatalf("parseCall: %v", err)
			}
			if got := c.AltAlleleCount(); got != tt.altCount {
				t.Errorf("AltAlleleCount() = %d, want %d", got, tt.altCount)
			}
			vf, ok := c.VariantFraction()
			if ok != tt.vfOK || (ok && vf != tt.vf) {
				t.Errorf("VariantFraction() = %v, %v; want %v, %v", vf, ok, tt.vf, tt.vfOK)
			}
		})
	}
}

func TestParseCall_InvalidDP(t *testing.T) {
	if _, err := parseCall([]string{"GT", "DP"}, "0/1:x"); err == nil {
		t.Error("Expected an error for non-numeric DP")
	}
}

func TestVariant_FirstAlt(t *testing.T) {
	v := &Variant{Alt: "*,C"}
	if v.FirstAlt() != StarAllele {
		t.Errorf("FirstAlt() = %q, want %q", v.FirstAlt(), StarAllele)
	}
	if first := (&Variant{Alt: "C,*"}).FirstAlt(); first != "C" {
		t.Errorf("FirstAlt() = %q, want %q", first, "C")
	}
	empty := &Variant{Alt: "."}
	if empty.FirstAlt() != "" {
		t.Errorf("Expected no alt for '.', got %q", empty.FirstAlt())
	}
}

func TestParseError(t *testing.T) {
	err := &ParseError{
		Line:    42,
		Message: "expected 8 columns, found 7",
	}

	expected := "vcf parse error at line 42: expected 8 columns, found 7"
	if err.Error() != expected {
		t.Errorf("Error message mismatch: got %q, want %q", err.Error(), expected)
	}
}

// findTestFile locates a test file in the testdata directory.
func findTestFile(t *testing.T, name string) string {
	t.Helper()

	p := filepath.Join("testdata", name)
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("Test file not found: %s", name)
	}
	return p
}
