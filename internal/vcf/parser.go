package vcf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// CSQKey is the INFO key holding VEP consequence annotations.
const CSQKey = "CSQ"

// csqFormatRe extracts the pipe-delimited field list from the CSQ header description.
var csqFormatRe = regexp.MustCompile(`Format:\s*([^"]+)`)

// Parser reads variants from a VCF file.
type Parser struct {
	reader      *bufio.Reader
	file        *os.File
	gzipReader  *gzip.Reader
	lineNumber  int
	csqFields   []string // CSQ sub-field names from the ##INFO=<ID=CSQ> line
}

// NewParser creates a new VCF parser for the given file.
// Supports both plain VCF and gzipped VCF (.vcf.gz) files.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}

	p := &Parser{file: file}

	// Check for gzip magic bytes
	buf := make([]byte, 2)
	n, err := io.ReadFull(file, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		file.Close()
		return nil, fmt.Errorf("read vcf header: %w", err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek vcf file: %w", err)
	}

	// Check for gzip magic number (0x1f, 0x8b)
	if n == 2 && buf[0] == 0x1f && buf[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	} else {
		p.reader = bufio.NewReader(file)
	}

	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{
		reader: bufio.NewReader(r),
	}

	if err := p.parseHeader(); err != nil {
		return nil, err
	}

	return p, nil
}

// parseHeader reads the header up to #CHROM, recording the CSQ layout.
func (p *Parser) parseHeader() error {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read header: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")

		if strings.HasPrefix(line, "##") {
			if strings.HasPrefix(line, "##INFO=<ID="+CSQKey+",") {
				p.csqFields = parseCSQFormat(line)
			}
			continue
		}

		if strings.HasPrefix(line, "#CHROM") {
			return nil
		}

		// Non-header line encountered without #CHROM
		return &ParseError{
			Line:    p.lineNumber,
			Message: "expected #CHROM header line",
		}
	}

	return &ParseError{
		Line:    p.lineNumber,
		Message: "no #CHROM header line found",
	}
}

// parseCSQFormat returns the field names of a CSQ INFO header line, e.g.
// `Description="Consequence annotations from Ensembl VEP. Format: IMPACT|SYMBOL"`.
func parseCSQFormat(line string) []string {
	m := csqFormatRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	fields := strings.Split(strings.TrimSpace(m[1]), "|")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// Next reads the next variant from the VCF file.
// Returns nil, nil when there are no more variants.
func (p *Parser) Next() (*Variant, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		return p.parseLine(line)
	}
}

// parseLine parses a single VCF data line into a Variant.
func (p *Parser) parseLine(line string) (*Variant, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected at least 8 columns, found %d", len(fields)),
		}
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid position: %s", fields[1]),
		}
	}

	qual := 0.0
	if fields[5] != "." {
		qual, _ = strconv.ParseFloat(fields[5], 64)
	}

	v := &Variant{
		Chrom:  fields[0],
		Pos:    pos,
		ID:     fields[2],
		Ref:    fields[3],
		Alt:    fields[4],
		Qual:   qual,
		Filter: fields[6],
		Info:   parseInfo(fields[7]),
	}

	if len(fields) > 9 {
		v.Format = strings.Split(fields[8], ":")
		v.Calls = make([]Call, 0, len(fields)-9)
		for _, sample := range fields[9:] {
			c, err := parseCall(v.Format, sample)
			if err != nil {
				return nil, &ParseError{Line: p.lineNumber, Message: err.Error()}
			}
			v.Calls = append(v.Calls, c)
		}
	}

	return v, nil
}

// parseInfo parses the INFO field into a map.
func parseInfo(info string) map[string]interface{} {
	result := make(map[string]interface{})
	if info == "." {
		return result
	}

	for _, kv := range strings.Split(info, ";") {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		} else {
			// Flag-type INFO field
			result[parts[0]] = true
		}
	}

	return result
}

// parseCall parses one sample column against the FORMAT keys. Only GT, AD
// and DP are interpreted; other keys are ignored.
func parseCall(format []string, sample string) (Call, error) {
	var c Call
	values := strings.Split(sample, ":")
	for i, key := range format {
		if i >= len(values) {
			break
		}
		val := values[i]
		switch key {
		case "GT":
			c.GT, c.Phased = parseGT(val)
		case "AD":
			ad, err := parseIntList(val)
			if err != nil {
				return Call{}, fmt.Errorf("invalid AD %q", val)
			}
			c.AD = ad
		case "DP":
			if val == "." || val == "" {
				continue
			}
			dp, err := strconv.Atoi(val)
			if err != nil {
				return Call{}, fmt.Errorf("invalid DP %q", val)
			}
			c.DP, c.HasDP = dp, true
		}
	}
	return c, nil
}

// parseGT parses a genotype such as "0/1", "1|1" or "./.".
func parseGT(val string) ([]int, bool) {
	phased := strings.Contains(val, "|")
	parts := strings.FieldsFunc(val, func(r rune) bool { return r == '/' || r == '|' })
	gt := make([]int, len(parts))
	for i, a := range parts {
		n, err := strconv.Atoi(a)
		if err != nil {
			n = -1
		}
		gt[i] = n
	}
	return gt, phased
}

func parseIntList(val string) ([]int, error) {
	if val == "." || val == "" {
		return nil, nil
	}
	parts := strings.Split(val, ",")
	out := make([]int, len(parts))
	for i, s := range parts {
		if s == "." {
			out[i] = -1
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// CSQFields returns the CSQ sub-field names declared in the header.
func (p *Parser) CSQFields() []string {
	return p.csqFields
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// ParseError represents an error during VCF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}
