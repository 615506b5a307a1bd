package engine

import (
	"errors"
	"sort"
	"strings"

	"github.com/veloquery/veloquery/internal/schema"
)

// ErrNoRelevantTables is the single hard failure of the pipeline: after
// scoring, no table cleared the relevance floor.
var ErrNoRelevantTables = errors.New("no relevant tables found for this question")

// ColumnMapping scores one cataloged column against a question.
type ColumnMapping struct {
	Table  string
	Column string
	Kind   schema.Kind
	Score  int
}

// TableMapping carries the maximum score of a table's columns.
type TableMapping struct {
	Table string
	Score int
}

// Mapping is the ranked output of the semantic column mapper. Produced
// fresh per question, never persisted.
type Mapping struct {
	Columns []ColumnMapping
	Tables  []TableMapping
}

// Scoring weights. All bonuses are additive; ranking is by straight sum
// with ties broken by catalog declaration order.
const (
	scoreExactToken      = 100
	scoreNameContains    = 50
	scoreTokenContains   = 30
	scoreSubTokenOverlap = 25
	scoreFactDomain      = 30
	scoreDimDomain       = 25
	scoreTypeMatch       = 40
	scoreTextSpecial     = 35
	scoreSampleOverlap   = 30
	scoreHighCardinality = 10

	slotBoost = 60

	minTableRelevance = 15
	maxMappedTables   = 4
	maxMappedColumns  = 12
)

// MapColumns scores every cataloged column against the question and derives
// table scores as the maximum of their columns. The floor is intentionally
// permissive: low-scoring columns are retained and only excluded by slicing
// to the top-N, so a question never fails purely from under-scoring.
func MapColumns(question string, cols []schema.Column) (*Mapping, error) {
	qTokens := tokenize(question)
	set := tokenSet(question)

	mapped := make([]ColumnMapping, 0, len(cols))
	for _, c := range cols {
		mapped = append(mapped, ColumnMapping{
			Table:  c.Table,
			Column: c.Name,
			Kind:   c.Kind,
			Score:  scoreColumn(qTokens, set, c),
		})
	}

	tables := deriveTables(mapped)
	if len(tables) == 0 || tables[0].Score < minTableRelevance {
		return nil, ErrNoRelevantTables
	}
	if len(tables) > maxMappedTables {
		tables = tables[:maxMappedTables]
	}

	sort.SliceStable(mapped, func(i, j int) bool { return mapped[i].Score > mapped[j].Score })
	if len(mapped) > maxMappedColumns {
		mapped = mapped[:maxMappedColumns]
	}

	return &Mapping{Columns: mapped, Tables: tables}, nil
}

func scoreColumn(qTokens []string, set map[string]bool, c schema.Column) int {
	name := strings.ToLower(c.Name)
	parts := strings.Split(name, "_")
	score := 0

	for _, tok := range qTokens {
		switch {
		case tok == name:
			score += scoreExactToken
		case len(tok) > 2 && strings.Contains(name, tok):
			score += scoreNameContains
		case len(tok) > 2 && strings.Contains(tok, name):
			score += scoreTokenContains
		default:
			for _, p := range parts {
				if tok == p && len(p) > 2 {
					score += scoreSubTokenOverlap
					break
				}
			}
		}
	}

	switch c.Table {
	case FactTable:
		if mentionsTrips(set) {
			score += scoreFactDomain
		}
	case StationsTable:
		if mentionsStations(set) {
			score += scoreDimDomain
		}
	case WeatherTable:
		if mentionsWeather(set) {
			score += scoreDimDomain
		}
	case BikesTable:
		if hasAnyToken(set, bikeWords) {
			score += scoreDimDomain
		}
	}

	switch c.Kind {
	case schema.KindTimestamp:
		if hasAnyToken(set, temporalWords) {
			score += scoreTypeMatch
		}
	case schema.KindNumeric:
		if hasAnyToken(set, quantityWords) {
			score += scoreTypeMatch
		}
	case schema.KindText:
		if hasAnyToken(set, descriptiveWords) {
			score += scoreTypeMatch
		}
		if mentionsGender(set) || mentionsWeather(set) {
			score += scoreTextSpecial
		}
	}

	if sampleOverlap(qTokens, c.Samples) {
		score += scoreSampleOverlap
	}
	if len(c.Samples) > 10 {
		score += scoreHighCardinality
	}

	return score
}

func sampleOverlap(qTokens []string, samples []string) bool {
	for _, s := range samples {
		lowered := strings.ToLower(s)
		for _, tok := range qTokens {
			if len(tok) < 3 {
				continue
			}
			if strings.Contains(lowered, tok) || strings.Contains(tok, lowered) {
				return true
			}
		}
	}
	return false
}

func deriveTables(cols []ColumnMapping) []TableMapping {
	best := map[string]int{}
	var order []string
	for _, c := range cols {
		if _, ok := best[c.Table]; !ok {
			order = append(order, c.Table)
		}
		if c.Score > best[c.Table] {
			best[c.Table] = c.Score
		}
	}

	tables := make([]TableMapping, 0, len(order))
	for _, t := range order {
		tables = append(tables, TableMapping{Table: t, Score: best[t]})
	}
	sort.SliceStable(tables, func(i, j int) bool { return tables[i].Score > tables[j].Score })
	return tables
}

// Boost applies a flat additive bonus to any column or table the advisory
// slots explicitly name, then re-sorts both lists. A named station implies
// the stations table the same way NeedsWeather implies the weather table.
func (m *Mapping) Boost(slots Slots) {
	named := map[string]bool{}
	if slots.Measure != "" {
		named[strings.ToLower(slots.Measure)] = true
	}
	for _, g := range slots.GroupBy {
		named[strings.ToLower(g)] = true
	}

	if len(named) == 0 && !slots.NeedsWeather && slots.StationName == "" {
		return
	}

	for i := range m.Columns {
		if named[strings.ToLower(m.Columns[i].Column)] {
			m.Columns[i].Score += slotBoost
		}
		if slots.NeedsWeather && m.Columns[i].Table == WeatherTable {
			m.Columns[i].Score += slotBoost
		}
		if slots.StationName != "" && m.Columns[i].Table == StationsTable {
			m.Columns[i].Score += slotBoost
		}
	}
	sort.SliceStable(m.Columns, func(i, j int) bool { return m.Columns[i].Score > m.Columns[j].Score })

	m.Tables = deriveTables(m.Columns)
}

// HasTable reports whether a table survived the top-N slice.
func (m *Mapping) HasTable(table string) bool {
	for _, t := range m.Tables {
		if t.Table == table {
			return true
		}
	}
	return false
}

// FindColumn returns the first mapped column on table whose name contains
// any of the given fragments, in fragment priority order.
func (m *Mapping) FindColumn(table string, fragments ...string) (ColumnMapping, bool) {
	for _, frag := range fragments {
		for _, c := range m.Columns {
			if (table == "" || c.Table == table) && strings.Contains(strings.ToLower(c.Column), frag) {
				return c, true
			}
		}
	}
	return ColumnMapping{}, false
}

// FindColumnOfKind returns the highest-scoring mapped column of the given
// kind, optionally restricted to one table.
func (m *Mapping) FindColumnOfKind(table string, kind schema.Kind) (ColumnMapping, bool) {
	for _, c := range m.Columns {
		if (table == "" || c.Table == table) && c.Kind == kind {
			return c, true
		}
	}
	return ColumnMapping{}, false
}

// Owner resolves the table that owns a column name, preferring the mapped
// columns and falling back to name heuristics for canonical dataset columns.
func (m *Mapping) Owner(column string) string {
	lowered := strings.ToLower(column)
	for _, c := range m.Columns {
		if strings.ToLower(c.Column) == lowered {
			return c.Table
		}
	}
	switch {
	case strings.Contains(lowered, "precip"), strings.Contains(lowered, "temp"),
		strings.Contains(lowered, "weather"):
		return WeatherTable
	case strings.Contains(lowered, "station_name"), lowered == "name":
		return StationsTable
	}
	return FactTable
}
