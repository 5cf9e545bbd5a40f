package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig configures the Postgres-backed journal.
type PostgresConfig struct {
	DSN             string
	MaxConnections  int32
	MinConnections  int32
	MaxConnLifetime time.Duration
	Table           string
}

const defaultEventTable = "control_plane_events"

// Postgres persists events to a Postgres table so they survive restarts and
// can be queried across control-plane nodes.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgres opens a pooled connection and ensures the event table exists.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = defaultEventTable
	}

	j := &Postgres{pool: pool, table: table}
	if err := j.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

func (j *Postgres) ensureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		occurred_at TIMESTAMPTZ NOT NULL,
		event_type TEXT NOT NULL,
		virtual_host TEXT NOT NULL DEFAULT '',
		application TEXT NOT NULL DEFAULT '',
		stream TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT ''
	)`, j.table)
	if _, err := j.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure journal schema: %w", err)
	}
	return nil
}

func (j *Postgres) Record(ctx context.Context, evt Event) error {
	if evt.Time.IsZero() {
		evt.Time = time.Now().UTC()
	}
	query := fmt.Sprintf(`INSERT INTO %s
		(occurred_at, event_type, virtual_host, application, stream, outcome, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, j.table)
	if _, err := j.pool.Exec(ctx, query,
		evt.Time, string(evt.Type), evt.VirtualHost, evt.Application, evt.Stream, evt.Outcome, evt.Detail); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

func (j *Postgres) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT occurred_at, event_type, virtual_host, application, stream, outcome, detail
		FROM %s ORDER BY id DESC LIMIT $1`, j.table)
	rows, err := j.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var evt Event
		var eventType string
		if err := rows.Scan(&evt.Time, &eventType, &evt.VirtualHost, &evt.Application, &evt.Stream, &evt.Outcome, &evt.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Type = EventType(eventType)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Close releases the pool, bounded by the context deadline.
func (j *Postgres) Close(ctx context.Context) error {
	if j == nil || j.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		j.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

var _ Journal = (*Postgres)(nil)
