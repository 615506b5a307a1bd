package engine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/veloquery/veloquery/internal/schema"
)

// Archetype classifies the overall shape of a question.
type Archetype string

const (
	ArchetypeScalar  Archetype = "scalar_aggregation"
	ArchetypeRanking Archetype = "ranking_by_group"
	ArchetypeLookup  Archetype = "lookup"
	ArchetypeUnknown Archetype = "unknown"
)

// Slots is the structured intent extracted from a question. It is advisory
// only: the final plan must be derivable without it. Slot values influence
// tie-breaks, relevance boosts and join decisions, never identifiers in the
// emitted SQL directly.
type Slots struct {
	Archetype        Archetype `json:"query_type"`
	Intent           string    `json:"intent"`
	TimePhrase       string    `json:"time_phrase"`
	StationName      string    `json:"station_name"`
	GenderTerms      []string  `json:"gender_terms"`
	NeedsStationName bool      `json:"needs_station_name"`
	NeedsWeather     bool      `json:"needs_weather"`
	NeedsDistance    bool      `json:"needs_distance"`
	NeedsDuration    bool      `json:"needs_duration"`
	Aggregate        string    `json:"aggregate"`
	Measure          string    `json:"measure"`
	GroupBy          []string  `json:"group_by"`
	TopK             int       `json:"top_k"`
	SortOrder        string    `json:"sort_order"`
}

var (
	reTopK        = regexp.MustCompile(`\btop\s+(\d{1,3})\b`)
	reStationName = regexp.MustCompile(`\b(?:at|from)\s+((?:[A-Z][\w']*)(?:\s+[A-Z][\w']*)*)`)
)

var knownAggregates = map[string]bool{
	"AVG": true, "SUM": true, "COUNT": true, "MIN": true, "MAX": true,
}

var knownDimensions = map[string]bool{
	"station": true, "start_station": true, "end_station": true,
	"day": true, "date": true, "gender": true, "bike": true,
	"distance": true,
}

// HeuristicSlots produces a keyword-only slot estimate. It is the fallback
// whenever the advisory extraction call fails, and the baseline when no
// extractor is configured at all.
func HeuristicSlots(question string) Slots {
	set := tokenSet(question)
	s := Slots{Archetype: ArchetypeUnknown, Intent: strings.TrimSpace(question)}

	switch {
	case mentionsRanking(set), set["which"] && mentionsStations(set):
		s.Archetype = ArchetypeRanking
	case hasPhrase(question, "how many", "how much"),
		set["average"], set["total"], set["sum"], set["count"]:
		s.Archetype = ArchetypeScalar
	case set["list"], set["show"], set["display"]:
		s.Archetype = ArchetypeLookup
	}

	for _, w := range genderWords {
		if set[w] && w != "gender" {
			s.GenderTerms = append(s.GenderTerms, w)
		}
	}
	s.NeedsWeather = mentionsWeather(set)
	s.NeedsDistance = set["distance"] || set["km"] || set["kilometres"] ||
		set["kilometers"] || set["metres"] || set["meters"]
	s.NeedsDuration = hasPhrase(question, "ride time", "journey time", "travel time") ||
		set["duration"] || set["minutes"]
	s.NeedsStationName = mentionsStations(set)

	if m := reStationName.FindStringSubmatch(question); m != nil {
		s.StationName = m[1]
	}
	if m := reTopK.FindStringSubmatch(strings.ToLower(question)); m != nil {
		s.TopK, _ = strconv.Atoi(m[1])
	}

	switch {
	case set["average"] || set["mean"]:
		s.Aggregate = "AVG"
	case set["sum"] || set["total"]:
		s.Aggregate = "SUM"
	case hasPhrase(question, "how many") || set["count"]:
		s.Aggregate = "COUNT"
	case set["longest"] || set["maximum"]:
		s.Aggregate = "MAX"
	case set["shortest"] || set["minimum"]:
		s.Aggregate = "MIN"
	}

	if r, ok := ResolveDateRange(question, timeNowUTC()); ok {
		s.TimePhrase = r.Start.Format("2006-01-02") + ".." + r.End.Format("2006-01-02")
	}
	return s
}

// Sanitize validates an advisory slot record field by field. Values outside
// the known vocabulary or the cataloged schema are discarded rather than
// trusted.
func Sanitize(s Slots, cols []schema.Column) Slots {
	switch s.Archetype {
	case ArchetypeScalar, ArchetypeRanking, ArchetypeLookup:
	default:
		s.Archetype = ArchetypeUnknown
	}

	s.Aggregate = strings.ToUpper(strings.TrimSpace(s.Aggregate))
	if !knownAggregates[s.Aggregate] {
		s.Aggregate = ""
	}

	colNames := make(map[string]bool, len(cols))
	tableNames := make(map[string]bool)
	for _, c := range cols {
		colNames[strings.ToLower(c.Name)] = true
		tableNames[strings.ToLower(c.Table)] = true
	}

	if m := strings.ToLower(strings.TrimSpace(s.Measure)); m != "" && !colNames[m] {
		s.Measure = ""
	}

	var groupBy []string
	for _, g := range s.GroupBy {
		g = strings.ToLower(strings.TrimSpace(g))
		if knownDimensions[g] || colNames[g] {
			groupBy = append(groupBy, g)
		}
	}
	s.GroupBy = groupBy

	var genders []string
	for _, g := range s.GenderTerms {
		g = strings.ToLower(strings.TrimSpace(g))
		for _, w := range genderWords {
			if g == w {
				genders = append(genders, g)
				break
			}
		}
	}
	s.GenderTerms = genders

	if s.TopK < 0 {
		s.TopK = 0
	}
	if s.TopK > 100 {
		s.TopK = 100
	}
	if len(s.StationName) > 60 {
		s.StationName = ""
	}
	if s.SortOrder != "asc" && s.SortOrder != "desc" {
		s.SortOrder = ""
	}
	return s
}
