package engine

import "strings"

// Known tables of the bike-share dataset. The trips fact table owns the
// ride events; stations, weather and bikes are dimensions joined to it.
const (
	FactTable     = "trips"
	StationsTable = "stations"
	WeatherTable  = "weather"
	BikesTable    = "bikes"
)

// Vocabulary groups used by the mapper, filter and aggregation rules.
// Matching is token-based so that "male" does not fire on "female".
var (
	tripWords = []string{
		"trip", "trips", "ride", "rides", "rider", "riders", "ridden",
		"journey", "journeys", "biked", "cycled", "cycling",
	}
	stationWords = []string{
		"station", "stations", "dock", "docks", "docking", "departure",
		"departures", "arrival", "arrivals", "terminal", "point",
	}
	weatherWords = []string{
		"weather", "rain", "rainy", "raining", "wet", "dry", "temperature",
		"hot", "cold", "precipitation", "snow",
	}
	bikeWords = []string{
		"bike", "bikes", "bicycle", "bicycles", "model", "models",
		"purchase", "purchased", "inventory", "fleet",
	}
	rankingWords = []string{
		"most", "highest", "busiest", "top", "largest",
	}
	genderWords = []string{
		"women", "woman", "female", "females", "men", "man", "male",
		"males", "gender",
	}
	temporalWords = []string{
		"january", "february", "march", "april", "may", "june", "july",
		"august", "september", "october", "november", "december",
		"month", "months", "week", "weeks", "day", "days", "date", "dates",
		"year", "years", "daily", "during", "between", "weekend",
		"weekends", "weekday", "weekdays", "today", "yesterday",
	}
	quantityWords = []string{
		"many", "count", "total", "totals", "average", "sum", "number",
		"distance", "kilometres", "kilometers", "km", "metres", "meters",
		"minutes", "duration", "longest", "shortest", "most", "speed",
	}
	descriptiveWords = []string{
		"name", "named", "called", "where", "location", "place", "avenue",
		"street", "which",
	}
	durationWords = []string{
		"time", "duration", "minutes", "long",
	}
	speedWords = []string{
		"speed", "pace", "kmh", "mph",
	}
)

// tokenize lowercases the text and splits it on anything that is not a
// letter or digit.
func tokenize(text string) []string {
	lowered := strings.ToLower(text)
	return strings.FieldsFunc(lowered, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenize(text) {
		set[tok] = true
	}
	return set
}

func hasAnyToken(set map[string]bool, words []string) bool {
	for _, w := range words {
		if set[w] {
			return true
		}
	}
	return false
}

func hasPhrase(text string, phrases ...string) bool {
	lowered := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}

// mentionsTrips reports whether the question is explicitly about rides.
func mentionsTrips(set map[string]bool) bool {
	return hasAnyToken(set, tripWords)
}

func mentionsRanking(set map[string]bool) bool {
	return hasAnyToken(set, rankingWords)
}

func mentionsGender(set map[string]bool) bool {
	return hasAnyToken(set, genderWords)
}

func mentionsWeather(set map[string]bool) bool {
	return hasAnyToken(set, weatherWords)
}

func mentionsStations(set map[string]bool) bool {
	return hasAnyToken(set, stationWords)
}
