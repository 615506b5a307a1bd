package engine

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/veloquery/veloquery/internal/schema"
)

// Plan is the immutable result of one translation: executable query text
// plus the positional parameter values bound to it, in emission order.
type Plan struct {
	SQL        string
	Params     []any
	Tables     []string
	Columns    []string
	Filters    []Filter
	Aggregates []Aggregate
}

// ErrUngroundedRanking guards grouped ranking plans: "most X" over an
// unbounded time span scans the whole fact table, so a date range is
// required.
var ErrUngroundedRanking = errors.New("ranking question needs a date range filter")

var tableAliases = map[string]string{
	FactTable:     "t",
	StationsTable: "s",
	WeatherTable:  "w",
	BikesTable:    "b",
}

const endStationAlias = "es"

var reToDestination = regexp.MustCompile(`\bto\s+([A-Z][\w']*(?:\s+[A-Z][\w']*)*)`)

// ChoosePrimaryTable picks the base table of the FROM clause. The fact
// table is the default candidate; the owner of the best timestamp column
// can displace it, but the fact table wins back whenever it is relevant at
// all. Explicit trip or bike-inventory vocabulary overrides scoring.
func ChoosePrimaryTable(question string, m *Mapping, slots Slots) string {
	set := tokenSet(question)

	primary := FactTable
	if c, ok := m.FindColumnOfKind("", schema.KindTimestamp); ok {
		primary = c.Table
	}
	if m.HasTable(FactTable) {
		primary = FactTable
	}
	if mentionsTrips(set) || set["departures"] || set["departure"] {
		primary = FactTable
	}
	if hasAnyToken(set, bikeWords) && (set["purchase"] || set["purchased"] || set["inventory"] || set["fleet"]) {
		primary = BikesTable
	}
	return primary
}

type planBuilder struct {
	question string
	set      map[string]bool
	m        *Mapping
	filters  []Filter
	aggs     []Aggregate
	slots    Slots

	primary   string
	isRanking bool
	joins     []string
	joined    map[string]bool
	params    []any
	columns   []string
}

// BuildPlan assembles the final SELECT statement in a single stateless
// pass: primary table, required joins, SELECT list, WHERE, GROUP BY and
// the ranking ORDER BY/LIMIT tail.
func BuildPlan(question string, m *Mapping, filters []Filter, aggs []Aggregate, slots Slots) (*Plan, error) {
	b := &planBuilder{
		question: question,
		set:      tokenSet(question),
		m:        m,
		filters:  filters,
		aggs:     aggs,
		slots:    slots,
		primary:  ChoosePrimaryTable(question, m, slots),
		joined:   map[string]bool{},
	}
	b.isRanking = slots.Archetype == ArchetypeRanking || mentionsRanking(b.set)

	b.analyzeJoins()

	groupCols := b.groupByColumns()
	selectList, orderAlias := b.selectList(groupCols)
	where := b.whereClause()

	if b.isRanking && len(groupCols) > 0 && !b.hasDateFilter() {
		return nil, ErrUngroundedRanking
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selectList, ", "))
	fmt.Fprintf(&sb, " FROM %s %s", b.primary, tableAliases[b.primary])
	for _, j := range b.joins {
		sb.WriteString(j)
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	if len(groupCols) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(groupCols, ", "))
	}
	if b.isRanking && orderAlias != "" {
		fmt.Fprintf(&sb, " ORDER BY %s DESC LIMIT %d", orderAlias, b.limit())
	}

	tables := []string{b.primary}
	for _, t := range []string{StationsTable, WeatherTable} {
		if b.joined[tableAliases[t]] {
			tables = append(tables, t)
		}
	}

	return &Plan{
		SQL:        sb.String(),
		Params:     b.params,
		Tables:     tables,
		Columns:    b.columns,
		Filters:    filters,
		Aggregates: aggs,
	}, nil
}

// analyzeJoins adds each dimension join at most once, and only when
// something in the plan actually needs it.
func (b *planBuilder) analyzeJoins() {
	if b.primary != FactTable {
		return
	}

	needStations := false
	needEndStations := false
	needWeather := b.slots.NeedsWeather || mentionsWeather(b.set)

	for _, f := range b.filters {
		if f.IsDimension() {
			switch f.Column {
			case "station":
				needStations = true
			case "end_station":
				needEndStations = true
			}
			continue
		}
		switch b.m.Owner(f.Column) {
		case StationsTable:
			needStations = true
		case WeatherTable:
			needWeather = true
		}
	}
	if mentionsRanking(b.set) && mentionsStations(b.set) {
		needStations = true
	}
	if reToDestination.MatchString(b.question) && mentionsStations(b.set) {
		needEndStations = true
	}

	startCol := b.factColumn("start_station", "start_station_id")
	if needStations {
		b.addJoin(tableAliases[StationsTable],
			fmt.Sprintf(" JOIN %s %s ON %s.station_id = t.%s",
				StationsTable, tableAliases[StationsTable], tableAliases[StationsTable], startCol))
	}
	if needEndStations {
		endCol := b.factColumn("end_station", "end_station_id")
		b.addJoin(endStationAlias,
			fmt.Sprintf(" JOIN %s %s ON %s.station_id = t.%s",
				StationsTable, endStationAlias, endStationAlias, endCol))
	}
	if needWeather {
		dateCol := b.weatherColumn("date", "weather_date")
		b.addJoin(tableAliases[WeatherTable],
			fmt.Sprintf(" JOIN %s %s ON %s.%s = DATE(t.%s)",
				WeatherTable, tableAliases[WeatherTable], tableAliases[WeatherTable], dateCol, b.startTimeColumn()))
	}
}

func (b *planBuilder) addJoin(alias, clause string) {
	if b.joined[alias] {
		return
	}
	b.joined[alias] = true
	b.joins = append(b.joins, clause)
}

func (b *planBuilder) factColumn(fragment, fallback string) string {
	if c, ok := b.m.FindColumn(FactTable, fragment); ok {
		return c.Column
	}
	return fallback
}

func (b *planBuilder) weatherColumn(fragment, fallback string) string {
	if c, ok := b.m.FindColumn(WeatherTable, fragment); ok {
		return c.Column
	}
	return fallback
}

func (b *planBuilder) startTimeColumn() string {
	if c, ok := b.m.FindColumn(FactTable, "start"); ok && c.Kind == schema.KindTimestamp {
		return c.Column
	}
	return "started_at"
}

func (b *planBuilder) endTimeColumn() string {
	if c, ok := b.m.FindColumn(FactTable, "end"); ok && c.Kind == schema.KindTimestamp {
		return c.Column
	}
	return "ended_at"
}

func (b *planBuilder) stationNameColumn() string {
	if c, ok := b.m.FindColumn(StationsTable, "name"); ok {
		return c.Column
	}
	return "station_name"
}

func (b *planBuilder) distanceColumn() string {
	if c, ok := b.m.FindColumn(FactTable, "kilomet", "km", "distance"); ok {
		return c.Column
	}
	return "distance_km"
}

// groupByColumns turns DIMENSION predicates into rendered grouping
// expressions. Without explicit dimensions, ranking queries over the fact
// table receive an inferred single grouping column; scalar aggregations
// never get a GROUP BY.
func (b *planBuilder) groupByColumns() []string {
	var cols []string
	for _, f := range b.filters {
		if !f.IsDimension() {
			continue
		}
		if expr, ok := b.dimensionExpr(f.Column); ok {
			cols = append(cols, expr)
		}
	}
	if len(cols) > 0 {
		return cols
	}

	if b.isRanking && b.primary == FactTable && len(b.aggs) > 0 {
		if mentionsStations(b.set) {
			b.addJoin(tableAliases[StationsTable],
				fmt.Sprintf(" JOIN %s %s ON %s.station_id = t.%s",
					StationsTable, tableAliases[StationsTable], tableAliases[StationsTable],
					b.factColumn("start_station", "start_station_id")))
			return []string{tableAliases[StationsTable] + "." + b.stationNameColumn()}
		}
		if b.aggs[0].Func == FuncCount && len(b.m.Columns) > 0 {
			c := b.m.Columns[0]
			return []string{b.qualifyOwned(c.Table, c.Column)}
		}
	}
	return nil
}

// dimensionExpr renders one grouping target. Every target is anchored to
// a specific alias; a target whose alias is absent from the FROM clause
// is dropped, the same way an unjoined WHERE predicate degrades instead
// of emitting a dangling qualifier.
func (b *planBuilder) dimensionExpr(target string) (string, bool) {
	switch target {
	case "station":
		alias := tableAliases[StationsTable]
		if !b.joined[alias] {
			return "", false
		}
		return alias + "." + b.stationNameColumn(), true
	case "end_station":
		if !b.joined[endStationAlias] {
			return "", false
		}
		return endStationAlias + "." + b.stationNameColumn(), true
	}

	if b.primary != FactTable {
		return "", false
	}
	switch target {
	case "day":
		return fmt.Sprintf("DATE(t.%s)", b.startTimeColumn()), true
	case "gender":
		return "t." + b.factColumn("gender", "gender"), true
	case "bike":
		return "t." + b.factColumn("bike", "bike_id"), true
	case "distance":
		return "t." + b.distanceColumn(), true
	}
	return "", false
}

func (b *planBuilder) qualifyOwned(table, column string) string {
	alias, ok := tableAliases[table]
	if !ok || (table != b.primary && !b.joined[alias]) {
		alias = tableAliases[b.primary]
	}
	return alias + "." + column
}

// selectList renders the projection. Ranking queries keep every
// aggregation and prepend the group label; scalar queries keep only the
// top aggregation, falling back to COUNT(*) when its source column never
// made it into the mapping.
func (b *planBuilder) selectList(groupCols []string) (exprs []string, orderAlias string) {
	if len(b.aggs) == 0 {
		return b.lookupColumns(), ""
	}

	aggs := b.aggs
	if !b.isRanking {
		top := aggs[0]
		if !b.aggSourceMapped(top) {
			top = Aggregate{Func: FuncCount, Column: "*", Alias: AliasTotalCount}
		}
		aggs = []Aggregate{top}
	}

	if len(groupCols) > 0 {
		exprs = append(exprs, groupCols...)
	}
	for _, a := range aggs {
		exprs = append(exprs, b.renderAggregate(a))
	}
	return exprs, aggs[0].Alias
}

func (b *planBuilder) aggSourceMapped(a Aggregate) bool {
	if a.Column == "" || a.Column == "*" {
		return true
	}
	for _, c := range b.m.Columns {
		if strings.EqualFold(c.Column, a.Column) {
			return true
		}
	}
	return false
}

func (b *planBuilder) renderAggregate(a Aggregate) string {
	switch {
	case a.Func == FuncSpeed:
		return fmt.Sprintf("SUM(t.%s) / NULLIF(SUM(EXTRACT(EPOCH FROM (t.%s - t.%s)) / 3600), 0) AS %s",
			b.distanceColumn(), b.endTimeColumn(), b.startTimeColumn(), a.Alias)
	case a.Func == FuncAvg && a.Column == "":
		return fmt.Sprintf("AVG(EXTRACT(EPOCH FROM (t.%s - t.%s)) / 60) AS %s",
			b.endTimeColumn(), b.startTimeColumn(), a.Alias)
	case a.Column == "*":
		return fmt.Sprintf("COUNT(*) AS %s", a.Alias)
	case a.MetersToKm:
		return fmt.Sprintf("SUM(%s) / 1000.0 AS %s", b.qualifyColumn(a.Column), a.Alias)
	default:
		return fmt.Sprintf("%s(%s) AS %s", a.Func, b.qualifyColumn(a.Column), a.Alias)
	}
}

// lookupColumns lists a capped number of the primary table's mapped
// columns for aggregation-free row lookups.
func (b *planBuilder) lookupColumns() []string {
	const maxLookupColumns = 6
	var exprs []string
	for _, c := range b.m.Columns {
		if c.Table != b.primary {
			continue
		}
		exprs = append(exprs, tableAliases[b.primary]+"."+c.Column)
		b.columns = append(b.columns, c.Column)
		if len(exprs) == maxLookupColumns {
			break
		}
	}
	if len(exprs) == 0 {
		exprs = []string{tableAliases[b.primary] + ".*"}
	}
	return exprs
}

// whereClause renders every non-dimension filter. A filter whose owning
// table was never joined degrades to an always-false condition instead of
// emitting a wrongly-qualified reference.
func (b *planBuilder) whereClause() string {
	var conds []string
	for _, f := range b.filters {
		if f.IsDimension() {
			continue
		}
		conds = append(conds, b.renderFilter(f))
	}
	return strings.Join(conds, " AND ")
}

func (b *planBuilder) renderFilter(f Filter) string {
	qualified, ok := b.qualifyFilterColumn(f.Column)
	if !ok {
		return "1 = 0"
	}
	b.columns = append(b.columns, f.Column)

	switch f.Op {
	case OpWeekend:
		return fmt.Sprintf("EXTRACT(DOW FROM %s) IN (0, 6)", qualified)
	case OpWeekday:
		return fmt.Sprintf("EXTRACT(DOW FROM %s) BETWEEN 1 AND 5", qualified)
	case OpIn:
		values, _ := f.Value.([]any)
		if len(values) == 0 {
			return "1 = 0"
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = b.bind(v)
		}
		return fmt.Sprintf("%s IN (%s)", qualified, strings.Join(placeholders, ", "))
	case OpILike:
		return fmt.Sprintf("%s ILIKE %s", qualified, b.bind(f.Value))
	default:
		return fmt.Sprintf("%s %s %s", qualified, f.Op, b.bind(f.Value))
	}
}

func (b *planBuilder) qualifyFilterColumn(column string) (string, bool) {
	owner := b.m.Owner(column)
	alias, known := tableAliases[owner]
	if !known {
		return "", false
	}
	if owner != b.primary && !b.joined[alias] {
		return "", false
	}
	return alias + "." + column, true
}

func (b *planBuilder) bind(v any) string {
	b.params = append(b.params, v)
	return fmt.Sprintf("$%d", len(b.params))
}

func (b *planBuilder) hasDateFilter() bool {
	for _, f := range b.filters {
		if f.Op != OpGTE && f.Op != OpLT {
			continue
		}
		if _, ok := f.Value.(time.Time); ok {
			return true
		}
	}
	return false
}

func (b *planBuilder) limit() int {
	if b.slots.TopK > 0 {
		return b.slots.TopK
	}
	if m := reTopK.FindStringSubmatch(strings.ToLower(b.question)); m != nil {
		var n int
		fmt.Sscanf(m[1], "%d", &n)
		if n > 0 {
			return n
		}
	}
	return 1
}

func (b *planBuilder) qualifyColumn(column string) string {
	return b.qualifyOwned(b.m.Owner(column), column)
}
