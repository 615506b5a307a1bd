package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloquery/veloquery/internal/schema"
)

func assembleAggs(t *testing.T, question string) []Aggregate {
	t.Helper()
	m := mustMap(t, question)
	return AssembleAggregates(question, m, HeuristicSlots(question))
}

func TestSpeedWinsOverAverageAndDistance(t *testing.T) {
	// "average" and "km" would satisfy the ride-time and distance
	// branches; speed vocabulary must decide first.
	aggs := assembleAggs(t, "What was the average speed in km per hour of rides in June 2025?")
	require.Len(t, aggs, 1)
	assert.Equal(t, FuncSpeed, aggs[0].Func)
	assert.Equal(t, AliasSpeed, aggs[0].Alias)
}

func TestAverageRideTime(t *testing.T) {
	aggs := assembleAggs(t, "How long is the average ride from Congress Avenue?")
	require.Len(t, aggs, 1)
	assert.Equal(t, FuncAvg, aggs[0].Func)
	assert.Empty(t, aggs[0].Column)
	assert.Equal(t, AliasAvgRideTime, aggs[0].Alias)
}

func TestDistanceSum(t *testing.T) {
	aggs := assembleAggs(t, "Total kilometres ridden by women on rainy days in June 2025")
	require.Len(t, aggs, 1)
	assert.Equal(t, FuncSum, aggs[0].Func)
	assert.Equal(t, "distance_km", aggs[0].Column)
	assert.Equal(t, "total_kilometres", aggs[0].Alias)
	assert.False(t, aggs[0].MetersToKm)
}

func TestDistanceMeterColumnConverts(t *testing.T) {
	cols := []schema.Column{
		{Table: "trips", Name: "trip_id", DataType: "integer", Kind: schema.KindNumeric},
		{Table: "trips", Name: "started_at", DataType: "timestamp", Kind: schema.KindTimestamp},
		{Table: "trips", Name: "distance_meters", DataType: "numeric", Kind: schema.KindNumeric},
	}
	question := "Total distance ridden in June 2025"
	m, err := MapColumns(question, cols)
	require.NoError(t, err)

	aggs := AssembleAggregates(question, m, HeuristicSlots(question))
	require.Len(t, aggs, 1)
	assert.Equal(t, "distance_meters", aggs[0].Column)
	assert.Equal(t, "total_kilometres", aggs[0].Alias)
	assert.True(t, aggs[0].MetersToKm)
}

func TestRankingCount(t *testing.T) {
	aggs := assembleAggs(t, "Which station had the most departures last month?")
	require.Len(t, aggs, 1)
	assert.Equal(t, FuncCount, aggs[0].Func)
	assert.Equal(t, "*", aggs[0].Column)
	assert.Equal(t, AliasDepartures, aggs[0].Alias)
}

func TestFixedPhraseCounts(t *testing.T) {
	tests := []struct {
		question string
		alias    string
	}{
		{"Total rides in June 2025", "total_rides"},
		{"Show trips per day in June 2025", "daily_total"},
		{"How many arrivals at Congress Avenue in June 2025?", "arrival_count"},
		{"How many rides were there in June 2025?", AliasTotalCount},
	}
	for _, tt := range tests {
		aggs := assembleAggs(t, tt.question)
		require.Len(t, aggs, 1, "question: %s", tt.question)
		assert.Equal(t, FuncCount, aggs[0].Func)
		assert.Equal(t, tt.alias, aggs[0].Alias, "question: %s", tt.question)
	}
}

func TestBikeInventoryIsLookup(t *testing.T) {
	aggs := assembleAggs(t, "Show bikes purchased in 2024")
	assert.Nil(t, aggs)
}

func TestFallbackAverageSkipsIdentifierColumns(t *testing.T) {
	aggs := assembleAggs(t, "What is the average distance of rides in June 2025?")
	// Distance vocabulary resolves before the fallback here.
	require.Len(t, aggs, 1)
	assert.Equal(t, FuncSum, aggs[0].Func)

	cols := []schema.Column{
		{Table: "trips", Name: "trip_id", DataType: "integer", Kind: schema.KindNumeric},
		{Table: "trips", Name: "started_at", DataType: "timestamp", Kind: schema.KindTimestamp},
		{Table: "trips", Name: "birth_year", DataType: "integer", Kind: schema.KindNumeric},
	}
	question := "What is the average for rides in June 2025?"
	m, err := MapColumns(question, cols)
	require.NoError(t, err)
	aggs = AssembleAggregates(question, m, HeuristicSlots(question))
	require.Len(t, aggs, 1)
	assert.Equal(t, FuncAvg, aggs[0].Func)
	assert.Equal(t, "birth_year", aggs[0].Column)
}
