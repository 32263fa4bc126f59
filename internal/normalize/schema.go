package normalize

import "fmt"

// FieldNames are the CSQ sub-field names the normalizer reads.
type FieldNames struct {
	Impact string
	Gene   string
	ID     string
	MaxAF  string
}

// DefaultFieldNames matches a VEP run configured with
// --fields IMPACT,SYMBOL,HGNC_ID,MAX_AF.
var DefaultFieldNames = FieldNames{
	Impact: "IMPACT",
	Gene:   "SYMBOL",
	ID:     "HGNC_ID",
	MaxAF:  "MAX_AF",
}

// Schema holds resolved positions of the fields within a CSQ record.
type Schema struct {
	Impact int
	Gene   int
	ID     int
	MaxAF  int
}

// PositionalSchema is used when the header does not declare a CSQ Format.
var PositionalSchema = Schema{Impact: 0, Gene: 1, ID: 2, MaxAF: 3}

// ResolveSchema maps names onto the declared CSQ fields. With no declared
// fields the positional layout is assumed. A declared layout missing any of
// the names is a schema error.
func ResolveSchema(declared []string, names FieldNames) (Schema, error) {
	if len(declared) == 0 {
		return PositionalSchema, nil
	}

	index := make(map[string]int, len(declared))
	for i, f := range declared {
		if _, dup := index[f]; !dup {
			index[f] = i
		}
	}

	var s Schema
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{names.Impact, &s.Impact},
		{names.Gene, &s.Gene},
		{names.ID, &s.ID},
		{names.MaxAF, &s.MaxAF},
	} {
		i, ok := index[f.name]
		if !ok {
			return Schema{}, fmt.Errorf("csq field %q not declared in header (have %v)", f.name, declared)
		}
		*f.dst = i
	}
	return s, nil
}

// width is the minimum number of CSQ sub-fields needed to read every position.
func (s Schema) width() int {
	w := s.Impact
	for _, i := range []int{s.Gene, s.ID, s.MaxAF} {
		if i > w {
			w = i
		}
	}
	return w + 1
}
