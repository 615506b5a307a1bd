package schema

import (
	"fmt"
	"strings"
)

// Kind is the coarse type category a column is scored against.
type Kind string

const (
	KindTimestamp Kind = "timestamp"
	KindNumeric   Kind = "numeric"
	KindText      Kind = "text"
	KindOther     Kind = "other"
)

// Column describes one cataloged column. Immutable once harvested; a new
// slice is produced on every catalog refresh.
type Column struct {
	Table    string   `json:"table"`
	Name     string   `json:"name"`
	DataType string   `json:"data_type"`
	Kind     Kind     `json:"kind"`
	Samples  []string `json:"samples,omitempty"`
}

// MaxSampleValues caps how many distinct stored values are kept per text column.
const MaxSampleValues = 50

// KindOf classifies a declared Postgres type into a scoring category.
func KindOf(dataType string) Kind {
	dt := strings.ToLower(dataType)
	switch {
	case strings.Contains(dt, "timestamp"), strings.Contains(dt, "date"), strings.Contains(dt, "time"):
		return KindTimestamp
	case strings.Contains(dt, "int"), strings.Contains(dt, "numeric"), strings.Contains(dt, "decimal"),
		strings.Contains(dt, "real"), strings.Contains(dt, "double"), strings.Contains(dt, "float"),
		strings.Contains(dt, "serial"):
		return KindNumeric
	case strings.Contains(dt, "char"), strings.Contains(dt, "text"), strings.Contains(dt, "uuid"):
		return KindText
	default:
		return KindOther
	}
}

// Describe renders a compact text summary of the catalog for the slot
// extraction prompt.
func Describe(cols []Column) string {
	var b strings.Builder
	b.WriteString("DATABASE SCHEMA:\n")

	byTable := map[string][]Column{}
	var order []string
	for _, c := range cols {
		if _, ok := byTable[c.Table]; !ok {
			order = append(order, c.Table)
		}
		byTable[c.Table] = append(byTable[c.Table], c)
	}

	for _, t := range order {
		fmt.Fprintf(&b, "- %s\n", t)
		for _, c := range byTable[t] {
			fmt.Fprintf(&b, "    - %s (%s)", c.Name, c.DataType)
			if len(c.Samples) > 0 {
				n := len(c.Samples)
				if n > 5 {
					n = 5
				}
				fmt.Fprintf(&b, " e.g. %s", strings.Join(c.Samples[:n], ", "))
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
