// Package postgres holds the relational collaborators: the store that
// executes parameterized query text and the catalog that harvests column
// metadata. The translator never executes its own output; callers pass
// plans here explicitly.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Store wraps a Postgres connection for parameterized execution.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// DB exposes the underlying handle for the catalog harvester.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Result is a fully materialized row set with display-ready values.
type Result struct {
	Columns []string
	Rows    [][]string
	Elapsed time.Duration
}

// Query executes parameterized query text with positional values and
// materializes the rows as strings for presentation.
func (s *Store) Query(ctx context.Context, query string, params []any) (*Result, error) {
	started := time.Now()
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := &Result{Columns: cols}
	for rows.Next() {
		raw := make([]any, len(cols))
		for i := range raw {
			raw[i] = new(any)
		}
		if err := rows.Scan(raw...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make([]string, len(cols))
		for i, cell := range raw {
			row[i] = formatValue(*cell.(*any))
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	result.Elapsed = time.Since(started)
	s.log.Debug("query executed",
		zap.Int("rows", len(result.Rows)),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	case float64:
		return fmt.Sprintf("%.2f", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
