package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/veloquery/veloquery/internal/schema"
)

// Catalog caches column metadata for the public schema, plus a sample of
// distinct stored values for text columns. The cache is read-mostly;
// refreshing redundantly is safe because the column slice is replaced
// wholesale under the lock.
type Catalog struct {
	db  *sql.DB
	log *zap.Logger

	mu   sync.RWMutex
	cols []schema.Column
}

// NewCatalog builds an empty catalog over the given connection.
func NewCatalog(db *sql.DB, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{db: db, log: log}
}

// Columns returns the cached descriptors, refreshing lazily when the
// cache is empty.
func (c *Catalog) Columns(ctx context.Context) ([]schema.Column, error) {
	c.mu.RLock()
	cached := c.cols
	c.mu.RUnlock()
	if len(cached) > 0 {
		return cached, nil
	}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	return c.Cached(), nil
}

// Cached returns whatever the catalog currently holds without touching
// the database. May be empty before the first refresh.
func (c *Catalog) Cached() []schema.Column {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cols
}

// Refresh harvests column metadata from information_schema and replaces
// the cache.
func (c *Catalog) Refresh(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public'
		ORDER BY table_name, ordinal_position
	`)
	if err != nil {
		return fmt.Errorf("harvest columns: %w", err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var col schema.Column
		if err := rows.Scan(&col.Table, &col.Name, &col.DataType); err != nil {
			return fmt.Errorf("scan column descriptor: %w", err)
		}
		col.Kind = schema.KindOf(col.DataType)
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate column descriptors: %w", err)
	}

	for i := range cols {
		if cols[i].Kind != schema.KindText {
			continue
		}
		samples, err := c.sampleValues(ctx, cols[i].Table, cols[i].Name)
		if err != nil {
			c.log.Debug("sampling skipped",
				zap.String("table", cols[i].Table),
				zap.String("column", cols[i].Name),
				zap.Error(err))
			continue
		}
		cols[i].Samples = samples
	}

	c.mu.Lock()
	c.cols = cols
	c.mu.Unlock()
	c.log.Info("schema catalog refreshed", zap.Int("columns", len(cols)))
	return nil
}

// sampleValues fetches up to MaxSampleValues distinct stored values.
// Identifiers come from information_schema, never from user input.
func (c *Catalog) sampleValues(ctx context.Context, table, column string) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL LIMIT %d",
		pq.QuoteIdentifier(column), pq.QuoteIdentifier(table), pq.QuoteIdentifier(column),
		schema.MaxSampleValues)

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		samples = append(samples, v)
	}
	return samples, rows.Err()
}
