package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veloquery/veloquery/internal/schema"
)

var timeNowUTC = func() time.Time { return time.Now().UTC() }

// Catalog provides column metadata. Columns refreshes lazily when the
// cache is empty; Cached returns whatever is currently held without
// touching the database, which is what the advisory extraction prompt
// uses so the two external calls stay independent.
type Catalog interface {
	Columns(ctx context.Context) ([]schema.Column, error)
	Cached() []schema.Column
}

// SlotExtractor is the advisory natural-language understanding
// collaborator. Its output is never trusted as the final query; any
// failure falls back to keyword heuristics.
type SlotExtractor interface {
	ExtractSlots(ctx context.Context, question, schemaSummary string) (Slots, error)
}

// Translator turns a free-text question into an executable Plan.
type Translator struct {
	catalog   Catalog
	extractor SlotExtractor
	log       *zap.Logger
	now       func() time.Time
}

// Option configures a Translator.
type Option func(*Translator)

// WithSlotExtractor attaches the advisory extraction collaborator.
func WithSlotExtractor(e SlotExtractor) Option {
	return func(t *Translator) { t.extractor = e }
}

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(t *Translator) { t.log = log }
}

// WithClock overrides the reference clock used by relative date phrases
// and age filters.
func WithClock(now func() time.Time) Option {
	return func(t *Translator) { t.now = now }
}

// NewTranslator builds a Translator over the given catalog.
func NewTranslator(catalog Catalog, opts ...Option) *Translator {
	t := &Translator{
		catalog: catalog,
		log:     zap.NewNop(),
		now:     timeNowUTC,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate runs the full pipeline: catalog refresh and advisory slot
// extraction in parallel, then mapping, filter and aggregation assembly,
// then plan assembly. The only hard failure besides a catalog outage is
// ErrNoRelevantTables; extraction problems degrade to heuristics.
func (t *Translator) Translate(ctx context.Context, question string) (*Plan, error) {
	reqID := uuid.NewString()
	log := t.log.With(zap.String("request_id", reqID))
	started := t.now()

	var cols []schema.Column
	slots := HeuristicSlots(question)
	advisory := false

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cols, err = t.catalog.Columns(gctx)
		return err
	})
	if t.extractor != nil {
		g.Go(func() error {
			summary := schema.Describe(t.catalog.Cached())
			extracted, err := t.extractor.ExtractSlots(gctx, question, summary)
			if err != nil {
				log.Warn("slot extraction failed, using keyword fallback", zap.Error(err))
				return nil
			}
			slots = extracted
			advisory = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if advisory {
		slots = Sanitize(slots, cols)
	}

	mapping, err := MapColumns(question, cols)
	if err != nil {
		return nil, err
	}
	mapping.Boost(slots)

	filters := AssembleFilters(question, mapping, slots, t.now())
	aggs := AssembleAggregates(question, mapping, slots)

	plan, err := BuildPlan(question, mapping, filters, aggs, slots)
	if err != nil {
		return nil, err
	}

	log.Info("translated question",
		zap.String("question", question),
		zap.String("sql", plan.SQL),
		zap.Int("params", len(plan.Params)),
		zap.Bool("advisory_slots", advisory),
		zap.Duration("elapsed", t.now().Sub(started)),
	)
	return plan, nil
}
