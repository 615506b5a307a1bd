package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloquery/veloquery/internal/schema"
)

func TestMapColumnsRejectsGibberish(t *testing.T) {
	_, err := MapColumns("asdf qwerty", testColumns())
	assert.ErrorIs(t, err, ErrNoRelevantTables)
}

func TestMapColumnsRanksStationNameForStationQuestions(t *testing.T) {
	m := mustMap(t, "Which station had the most departures last month?")

	require.NotEmpty(t, m.Columns)
	assert.Equal(t, "station_name", m.Columns[0].Column)
	assert.True(t, m.HasTable(StationsTable))
	assert.True(t, m.HasTable(FactTable))
	assert.LessOrEqual(t, len(m.Columns), 12)
	assert.LessOrEqual(t, len(m.Tables), 4)
}

func TestMapColumnsScoresAreOrdered(t *testing.T) {
	m := mustMap(t, "Total kilometres ridden by women on rainy days in June 2025")
	for i := 1; i < len(m.Columns); i++ {
		assert.GreaterOrEqual(t, m.Columns[i-1].Score, m.Columns[i].Score)
	}
	assert.Equal(t, FactTable, m.Tables[0].Table)
}

func TestBoostPromotesWeatherColumns(t *testing.T) {
	m := mustMap(t, "Total kilometres ridden by women on rainy days in June 2025")

	var before int
	for _, c := range m.Columns {
		if c.Table == WeatherTable {
			before = c.Score
			break
		}
	}
	require.NotZero(t, before)

	m.Boost(Slots{NeedsWeather: true})

	var after int
	for _, c := range m.Columns {
		if c.Table == WeatherTable {
			after = c.Score
			break
		}
	}
	assert.Equal(t, before+60, after)
}

func TestBoostNamedMeasure(t *testing.T) {
	m := mustMap(t, "How many rides were there in June 2025?")

	var before int
	for _, c := range m.Columns {
		if c.Column == "distance_km" {
			before = c.Score
		}
	}
	m.Boost(Slots{Measure: "distance_km"})
	var after int
	for _, c := range m.Columns {
		if c.Column == "distance_km" {
			after = c.Score
		}
	}
	assert.Equal(t, before+60, after)
}

func TestBoostStationName(t *testing.T) {
	m := mustMap(t, "How long is the average ride from Congress Avenue?")

	var before int
	for _, c := range m.Columns {
		if c.Column == "station_name" {
			before = c.Score
		}
	}
	require.NotZero(t, before)

	m.Boost(Slots{StationName: "Congress Avenue"})

	var after int
	for _, c := range m.Columns {
		if c.Column == "station_name" {
			after = c.Score
		}
	}
	assert.Equal(t, before+60, after)
}

func TestFindColumn(t *testing.T) {
	m := mustMap(t, "Which station had the most departures last month?")

	c, ok := m.FindColumn(StationsTable, "name")
	require.True(t, ok)
	assert.Equal(t, "station_name", c.Column)

	c, ok = m.FindColumnOfKind(FactTable, schema.KindTimestamp)
	require.True(t, ok)
	assert.Equal(t, "started_at", c.Column)

	_, ok = m.FindColumn(WeatherTable, "nonexistent")
	assert.False(t, ok)
}

func TestOwner(t *testing.T) {
	m := mustMap(t, "Which station had the most departures last month?")

	assert.Equal(t, StationsTable, m.Owner("station_name"))
	assert.Equal(t, FactTable, m.Owner("started_at"))

	// Canonical columns resolve by name heuristics even when the mapper
	// dropped them from the top slice.
	assert.Equal(t, WeatherTable, m.Owner("precipitation_mm"))
	assert.Equal(t, FactTable, m.Owner("birth_year"))
}
