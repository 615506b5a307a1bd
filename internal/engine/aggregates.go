package engine

import (
	"strings"

	"github.com/veloquery/veloquery/internal/schema"
)

// Aggregate function names. FuncSpeed is synthetic: it needs both distance
// and duration and is rendered as a fixed expression by the plan assembler.
const (
	FuncAvg   = "AVG"
	FuncSum   = "SUM"
	FuncCount = "COUNT"
	FuncMin   = "MIN"
	FuncMax   = "MAX"
	FuncSpeed = "SPEED"
)

// Fixed aliases for the recurring aggregation shapes.
const (
	AliasAvgRideTime = "average_ride_time_minutes"
	AliasSpeed       = "average_speed_kmh"
	AliasDepartures  = "departure_count"
	AliasTotalCount  = "total_count"
)

// Aggregate is one aggregation request. Column may be "*" for COUNT, or
// empty when the function is computed from a fixed expression (ride
// duration, speed). MetersToKm marks a meter-named distance column for unit
// conversion at plan-assembly time.
type Aggregate struct {
	Func       string
	Column     string
	Alias      string
	MetersToKm bool
}

type aggRule struct {
	name  string
	apply func(ac *aggContext) ([]Aggregate, bool)
}

type aggContext struct {
	question string
	set      map[string]bool
	mapping  *Mapping
	slots    Slots
}

// The cascade is mutually exclusive: the first matching branch decides the
// aggregation. Speed is checked before the average-duration and distance
// branches because its vocabulary ("average speed", "km per hour") overlaps
// both and must not be overridden.
var aggRules = []aggRule{
	{"speed", aggSpeed},
	{"total-rides", aggTotalRides},
	{"daily-totals", aggDailyTotals},
	{"arrivals", aggArrivals},
	{"busiest-by-starts", aggBusiestByStarts},
	{"rainy-weekdays", aggRainyWeekdays},
	{"average-ride-time", aggAverageRideTime},
	{"distance", aggDistance},
	{"ranking-count", aggRankingCount},
	{"generic-count", aggGenericCount},
	{"bike-inventory", aggBikeInventory},
	{"fallback-average", aggFallbackAverage},
}

// AssembleAggregates walks the cascade and returns the aggregation requests
// for the question, or nil for row-list lookups.
func AssembleAggregates(question string, m *Mapping, slots Slots) []Aggregate {
	ac := &aggContext{
		question: strings.ToLower(question),
		set:      tokenSet(question),
		mapping:  m,
		slots:    slots,
	}
	for _, rule := range aggRules {
		if aggs, ok := rule.apply(ac); ok {
			return aggs
		}
	}
	return nil
}

func aggSpeed(ac *aggContext) ([]Aggregate, bool) {
	if hasAnyToken(ac.set, speedWords) || hasPhrase(ac.question, "km per hour", "km/h", "kilometres per hour", "kilometers per hour", "miles per hour") {
		return []Aggregate{{Func: FuncSpeed, Alias: AliasSpeed}}, true
	}
	return nil, false
}

func aggTotalRides(ac *aggContext) ([]Aggregate, bool) {
	if hasPhrase(ac.question, "total rides", "total trips", "total journeys") {
		return []Aggregate{{Func: FuncCount, Column: "*", Alias: "total_rides"}}, true
	}
	return nil, false
}

func aggDailyTotals(ac *aggContext) ([]Aggregate, bool) {
	if hasPhrase(ac.question, "daily totals", "rides per day", "trips per day") {
		return []Aggregate{{Func: FuncCount, Column: "*", Alias: "daily_total"}}, true
	}
	return nil, false
}

func aggArrivals(ac *aggContext) ([]Aggregate, bool) {
	if ac.set["arrivals"] || ac.set["arrival"] {
		return []Aggregate{{Func: FuncCount, Column: "*", Alias: "arrival_count"}}, true
	}
	return nil, false
}

func aggBusiestByStarts(ac *aggContext) ([]Aggregate, bool) {
	if ac.set["busiest"] && hasPhrase(ac.question, "by starts", "by start") {
		return []Aggregate{{Func: FuncCount, Column: "*", Alias: "start_count"}}, true
	}
	return nil, false
}

func aggRainyWeekdays(ac *aggContext) ([]Aggregate, bool) {
	if (ac.set["rainy"] || ac.set["rain"]) && (ac.set["weekday"] || ac.set["weekdays"]) {
		return []Aggregate{{Func: FuncCount, Column: "*", Alias: "rainy_weekday_count"}}, true
	}
	return nil, false
}

// aggAverageRideTime fires on "average" plus ride-time vocabulary and
// requests an AVG over the computed trip duration in minutes.
func aggAverageRideTime(ac *aggContext) ([]Aggregate, bool) {
	if !(ac.set["average"] || ac.set["mean"]) {
		return nil, false
	}
	if !hasAnyToken(ac.set, durationWords) && !hasPhrase(ac.question, "ride time", "journey time", "travel time") {
		return nil, false
	}
	return []Aggregate{{Func: FuncAvg, Alias: AliasAvgRideTime}}, true
}

// aggDistance sums the best-matching distance column. The alias follows the
// detected unit; meter-named columns are flagged for km conversion when the
// plan is assembled.
func aggDistance(ac *aggContext) ([]Aggregate, bool) {
	distanceVocab := ac.set["kilometres"] || ac.set["kilometers"] || ac.set["km"] ||
		ac.set["distance"] || ac.set["metres"] || ac.set["meters"] ||
		hasPhrase(ac.question, "how far")
	if !distanceVocab {
		return nil, false
	}

	if c, ok := ac.mapping.FindColumn(FactTable, "kilomet", "km"); ok {
		return []Aggregate{{Func: FuncSum, Column: c.Column, Alias: "total_kilometres"}}, true
	}
	if c, ok := ac.mapping.FindColumn(FactTable, "meter", "metre"); ok {
		return []Aggregate{{Func: FuncSum, Column: c.Column, Alias: "total_kilometres", MetersToKm: true}}, true
	}
	if c, ok := ac.mapping.FindColumn(FactTable, "distance"); ok {
		return []Aggregate{{Func: FuncSum, Column: c.Column, Alias: "total_distance"}}, true
	}
	return nil, false
}

func aggRankingCount(ac *aggContext) ([]Aggregate, bool) {
	ranking := mentionsRanking(ac.set) ||
		(ac.set["which"] && (mentionsStations(ac.set) || ac.set["departures"] || ac.set["dock"]))
	if !ranking {
		return nil, false
	}
	return []Aggregate{{Func: FuncCount, Column: "*", Alias: AliasDepartures}}, true
}

func aggGenericCount(ac *aggContext) ([]Aggregate, bool) {
	if hasPhrase(ac.question, "how many") || ac.set["count"] {
		return []Aggregate{{Func: FuncCount, Column: "*", Alias: AliasTotalCount}}, true
	}
	return nil, false
}

// aggBikeInventory recognises bike purchase and fleet questions as row-list
// lookups: the branch matches and produces no aggregation.
func aggBikeInventory(ac *aggContext) ([]Aggregate, bool) {
	if (ac.set["bike"] || ac.set["bikes"]) &&
		(ac.set["purchase"] || ac.set["purchased"] || ac.set["inventory"] || ac.set["fleet"] || ac.set["models"]) {
		return nil, true
	}
	return nil, false
}

// aggFallbackAverage averages the first plausible numeric column that does
// not look like an identifier; if none exists it degrades to COUNT(*).
func aggFallbackAverage(ac *aggContext) ([]Aggregate, bool) {
	if !(ac.set["average"] || ac.set["avg"] || ac.set["mean"]) {
		return nil, false
	}
	for _, c := range ac.mapping.Columns {
		if c.Kind != schema.KindNumeric {
			continue
		}
		if strings.Contains(strings.ToLower(c.Column), "id") {
			continue
		}
		return []Aggregate{{Func: FuncAvg, Column: c.Column, Alias: "average_" + c.Column}}, true
	}
	return []Aggregate{{Func: FuncCount, Column: "*", Alias: AliasTotalCount}}, true
}
