package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloquery/veloquery/internal/schema"
)

type stubCatalog struct {
	cols []schema.Column
	err  error
}

func (s *stubCatalog) Columns(context.Context) ([]schema.Column, error) { return s.cols, s.err }
func (s *stubCatalog) Cached() []schema.Column                          { return s.cols }

type stubExtractor struct {
	slots Slots
	err   error
	calls int
}

func (s *stubExtractor) ExtractSlots(context.Context, string, string) (Slots, error) {
	s.calls++
	return s.slots, s.err
}

func fixedClock() time.Time { return testNow }

func TestTranslateWithoutExtractor(t *testing.T) {
	tr := NewTranslator(&stubCatalog{cols: testColumns()}, WithClock(fixedClock))

	plan, err := tr.Translate(context.Background(), "Which station had the most departures last month?")
	require.NoError(t, err)

	assert.Contains(t, plan.SQL, "GROUP BY s.station_name")
	assert.Contains(t, plan.SQL, "ORDER BY departure_count DESC LIMIT 1")
	assert.Equal(t, []any{date(2025, time.June, 1), date(2025, time.July, 1)}, plan.Params)
}

func TestTranslateExtractionFailureFallsBack(t *testing.T) {
	ext := &stubExtractor{err: errors.New("endpoint down")}
	tr := NewTranslator(&stubCatalog{cols: testColumns()},
		WithClock(fixedClock), WithSlotExtractor(ext))

	plan, err := tr.Translate(context.Background(), "Which station had the most departures last month?")
	require.NoError(t, err)
	assert.Equal(t, 1, ext.calls)
	assert.Contains(t, plan.SQL, "COUNT(*) AS departure_count")
}

func TestTranslateAppliesAdvisorySlots(t *testing.T) {
	ext := &stubExtractor{slots: Slots{
		Archetype: ArchetypeRanking,
		TopK:      2,
	}}
	tr := NewTranslator(&stubCatalog{cols: testColumns()},
		WithClock(fixedClock), WithSlotExtractor(ext))

	plan, err := tr.Translate(context.Background(), "Which station had the most departures last month?")
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, "LIMIT 2")
}

func TestTranslateSanitizesAdvisorySlots(t *testing.T) {
	// A hostile TopK is clamped, an unknown archetype discarded.
	ext := &stubExtractor{slots: Slots{
		Archetype: Archetype("'; DROP TABLE trips; --"),
		TopK:      -5,
	}}
	tr := NewTranslator(&stubCatalog{cols: testColumns()},
		WithClock(fixedClock), WithSlotExtractor(ext))

	plan, err := tr.Translate(context.Background(), "Which station had the most departures last month?")
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, "LIMIT 1")
	assert.NotContains(t, plan.SQL, "DROP")
}

func TestTranslateCatalogFailureIsFatal(t *testing.T) {
	tr := NewTranslator(&stubCatalog{err: errors.New("connection refused")},
		WithClock(fixedClock))

	_, err := tr.Translate(context.Background(), "How many rides were there in June 2025?")
	assert.Error(t, err)
}

func TestTranslateGibberish(t *testing.T) {
	tr := NewTranslator(&stubCatalog{cols: testColumns()}, WithClock(fixedClock))

	_, err := tr.Translate(context.Background(), "asdf qwerty")
	assert.ErrorIs(t, err, ErrNoRelevantTables)
}
