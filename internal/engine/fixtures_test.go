package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veloquery/veloquery/internal/schema"
)

// testNow is the fixed reference clock for date and age assertions.
var testNow = time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// testColumns mirrors the bike-share dataset the translator targets.
func testColumns() []schema.Column {
	stationNames := []string{
		"Congress Avenue", "Barton Springs", "South Lamar", "East 6th",
		"Rainey Street", "Guadalupe", "Zilker Park", "Mueller",
		"Riverside Drive", "Pfluger Bridge", "Dean Keeton", "Red River",
	}
	cols := []schema.Column{
		{Table: "trips", Name: "trip_id", DataType: "integer"},
		{Table: "trips", Name: "started_at", DataType: "timestamp without time zone"},
		{Table: "trips", Name: "ended_at", DataType: "timestamp without time zone"},
		{Table: "trips", Name: "start_station_id", DataType: "integer"},
		{Table: "trips", Name: "end_station_id", DataType: "integer"},
		{Table: "trips", Name: "bike_id", DataType: "integer"},
		{Table: "trips", Name: "gender", DataType: "text", Samples: []string{"male", "female"}},
		{Table: "trips", Name: "birth_year", DataType: "integer"},
		{Table: "trips", Name: "distance_km", DataType: "double precision"},
		{Table: "stations", Name: "station_id", DataType: "integer"},
		{Table: "stations", Name: "station_name", DataType: "text", Samples: stationNames},
		{Table: "stations", Name: "latitude", DataType: "double precision"},
		{Table: "stations", Name: "longitude", DataType: "double precision"},
		{Table: "weather", Name: "weather_date", DataType: "date"},
		{Table: "weather", Name: "precipitation_mm", DataType: "numeric"},
		{Table: "weather", Name: "temp_high_c", DataType: "numeric"},
		{Table: "weather", Name: "temp_low_c", DataType: "numeric"},
		{Table: "bikes", Name: "bike_id", DataType: "integer"},
		{Table: "bikes", Name: "model", DataType: "text", Samples: []string{"Classic", "Electric"}},
		{Table: "bikes", Name: "purchase_date", DataType: "date"},
	}
	for i := range cols {
		cols[i].Kind = schema.KindOf(cols[i].DataType)
	}
	return cols
}

func mustMap(t *testing.T, question string) *Mapping {
	t.Helper()
	m, err := MapColumns(question, testColumns())
	require.NoError(t, err)
	return m
}

// translateFixture runs the rule stages end to end without a database or
// an extraction endpoint.
func translateFixture(t *testing.T, question string) (*Plan, error) {
	t.Helper()
	m, err := MapColumns(question, testColumns())
	if err != nil {
		return nil, err
	}
	slots := HeuristicSlots(question)
	m.Boost(slots)
	filters := AssembleFilters(question, m, slots, testNow)
	aggs := AssembleAggregates(question, m, slots)
	return BuildPlan(question, m, filters, aggs, slots)
}
