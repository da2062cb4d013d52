// Package postgres provides a PostgreSQL-backed recorder.Recorder for
// durable per-attempt request logs. It uses pgx/v5 for connection
// pooling and JSONB for the request/response payloads.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glmkit/glmkit/pkg/recorder"
)

// Recorder is a PostgreSQL-backed attempt log.
type Recorder struct {
	pool *pgxpool.Pool
}

// Ensure Recorder implements recorder.Recorder at compile time.
var _ recorder.Recorder = (*Recorder)(nil)

// New creates a new PostgreSQL recorder with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Recorder, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	r := &Recorder{pool: pool}

	if cfg.MigrateOnStart {
		if err := r.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return r, nil
}

// Record persists one attempt row.
func (r *Recorder) Record(ctx context.Context, a recorder.Attempt) error {
	var errText *string
	if a.Err != nil {
		s := a.Err.Error()
		errText = &s
	}

	var usageIn, usageOut *int
	if a.Usage != nil {
		usageIn = a.Usage.InputTokens
		usageOut = a.Usage.OutputTokens
	}

	startedAt := a.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO attempts (
			provider, model, attempt, streaming,
			request, response, error,
			usage_input_tokens, usage_output_tokens,
			latency_ms, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		a.Provider, a.Model, a.Number, a.Streaming,
		nullJSON(a.RequestBody), nullJSON(a.ResponseBody), errText,
		usageIn, usageOut,
		a.Latency.Milliseconds(), startedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting attempt: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Recorder) Close() {
	r.pool.Close()
}

// nullJSON maps empty or invalid payloads to NULL so the JSONB columns
// never reject a row; a backend can legitimately answer with non-JSON.
func nullJSON(b []byte) any {
	if len(b) == 0 || !json.Valid(b) {
		return nil
	}
	return b
}
