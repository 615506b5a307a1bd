package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristicSlotsArchetypes(t *testing.T) {
	tests := []struct {
		question string
		want     Archetype
	}{
		{"Which station had the most departures last month?", ArchetypeRanking},
		{"Show the top 5 busiest stations last month", ArchetypeRanking},
		{"How many rides were there in June 2025?", ArchetypeScalar},
		{"Total kilometres ridden by women on rainy days in June 2025", ArchetypeScalar},
		{"Show bikes purchased in 2024", ArchetypeLookup},
		{"something entirely different", ArchetypeUnknown},
	}
	for _, tt := range tests {
		s := HeuristicSlots(tt.question)
		assert.Equal(t, tt.want, s.Archetype, "question: %s", tt.question)
	}
}

func TestHeuristicSlotsDetails(t *testing.T) {
	s := HeuristicSlots("Total kilometres ridden by women on rainy days in June 2025")
	assert.Equal(t, "SUM", s.Aggregate)
	assert.Equal(t, []string{"women"}, s.GenderTerms)
	assert.True(t, s.NeedsWeather)
	assert.True(t, s.NeedsDistance)
	assert.NotEmpty(t, s.TimePhrase)

	s = HeuristicSlots("How long is the average ride from Congress Avenue?")
	assert.Equal(t, "AVG", s.Aggregate)
	assert.Equal(t, "Congress Avenue", s.StationName)

	s = HeuristicSlots("Show the top 5 busiest stations last month")
	assert.Equal(t, 5, s.TopK)
}

func TestSanitizeDiscardsUnknownValues(t *testing.T) {
	cols := testColumns()

	s := Sanitize(Slots{
		Archetype:   Archetype("drop table"),
		Aggregate:   "median",
		Measure:     "no_such_column",
		GroupBy:     []string{"station", "nonsense", "distance_km"},
		GenderTerms: []string{"female", "attack"},
		TopK:        5000,
		SortOrder:   "sideways",
	}, cols)

	assert.Equal(t, ArchetypeUnknown, s.Archetype)
	assert.Empty(t, s.Aggregate)
	assert.Empty(t, s.Measure)
	assert.Equal(t, []string{"station", "distance_km"}, s.GroupBy)
	assert.Equal(t, []string{"female"}, s.GenderTerms)
	assert.Equal(t, 100, s.TopK)
	assert.Empty(t, s.SortOrder)
}

func TestSanitizeKeepsValidValues(t *testing.T) {
	cols := testColumns()

	s := Sanitize(Slots{
		Archetype: ArchetypeRanking,
		Aggregate: "count",
		Measure:   "distance_km",
		GroupBy:   []string{"Station"},
		TopK:      3,
		SortOrder: "desc",
	}, cols)

	assert.Equal(t, ArchetypeRanking, s.Archetype)
	assert.Equal(t, "COUNT", s.Aggregate)
	assert.Equal(t, "distance_km", s.Measure)
	assert.Equal(t, []string{"station"}, s.GroupBy)
	assert.Equal(t, 3, s.TopK)
	assert.Equal(t, "desc", s.SortOrder)
}
