package records

import (
	"fmt"
	"slices"
	"strings"
)

// Schema tags which optional columns a record file carries.
// It is resolved once from the header and kept for the life of a Store.
type Schema int

const (
	// SchemaPlain is sample, object, species, confidence
	SchemaPlain Schema = iota
	// SchemaProloculous adds a trailing proloculous column
	SchemaProloculous
)

var (
	plainHeader       = []string{"Sample Name", "Obj. #", "Species", "Confidence"}
	proloculousHeader = append(slices.Clone(plainHeader), "Proloculous")
)

// Header returns the header row written for the schema
func (s Schema) Header() []string {
	if s == SchemaProloculous {
		return slices.Clone(proloculousHeader)
	}
	return slices.Clone(plainHeader)
}

// Columns returns the number of fields in every row
func (s Schema) Columns() int {
	return len(s.Header())
}

func (s Schema) String() string {
	if s == SchemaProloculous {
		return "proloculous"
	}
	return "plain"
}

// resolveSchema decides how a file with the given header is read by a store
// configured for mode. A plain file opens in proloculous mode with the column
// defaulted, never the other way round.
func resolveSchema(header []string, mode Schema) (Schema, error) {
	switch {
	case slices.Equal(header, plainHeader):
		return SchemaPlain, nil
	case slices.Equal(header, proloculousHeader) && mode == SchemaProloculous:
		return SchemaProloculous, nil
	case slices.Equal(header, proloculousHeader):
		return 0, fmt.Errorf("%w: file has a Proloculous column but proloculous mode is off", ErrSchemaMismatch)
	default:
		return 0, fmt.Errorf("%w: got [%s], expected [%s] or [%s]", ErrSchemaMismatch,
			strings.Join(header, ", "), strings.Join(plainHeader, ", "), strings.Join(proloculousHeader, ", "))
	}
}

// Confidence levels on the low/med/high scale
const (
	ConfidenceLow  = 1
	ConfidenceMed  = 2
	ConfidenceHigh = 3
)

// Proloculous values
const (
	ProloculousMega    = "mega"
	ProloculousMicro   = "micro"
	ProloculousUnknown = "unk"
)

// ProloculousValues lists the accepted non-empty proloculous tokens
var ProloculousValues = []string{ProloculousMega, ProloculousMicro, ProloculousUnknown}

// ValidConfidence reports whether c is on the 1..3 scale
func ValidConfidence(c int) bool {
	return c >= ConfidenceLow && c <= ConfidenceHigh
}

// ValidProloculous reports whether p is an accepted token or empty
func ValidProloculous(p string) bool {
	return p == "" || slices.Contains(ProloculousValues, p)
}
