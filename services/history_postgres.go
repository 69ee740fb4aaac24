package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rag-keeper/internal/models"
)

const eventSchema = `
CREATE TABLE IF NOT EXISTS keeper_process_events (
	id            UUID PRIMARY KEY,
	type          TEXT NOT NULL,
	name          TEXT NOT NULL,
	run_id        TEXT NOT NULL DEFAULT '',
	pid           INTEGER NOT NULL DEFAULT 0,
	exit_code     INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	restart_count INTEGER NOT NULL DEFAULT 0,
	reason        TEXT NOT NULL DEFAULT '',
	occurred_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS keeper_process_events_name_idx
	ON keeper_process_events (name, occurred_at DESC);
`

var _ EventArchive = (*PostgresSink)(nil)

/**
 * PostgresSink 把生命周期事件写入Postgres
 * @property {*pgxpool.Pool} pool - 连接池
 */
type PostgresSink struct {
	pool *pgxpool.Pool
}

/**
 * Connect to Postgres and make sure the event table exists
 * @param {context.Context} ctx - Context for connecting and creating the schema
 * @param {string} dsn - Connection string (history.postgres_dsn)
 * @returns {*PostgresSink} Ready sink
 * @returns {error} Connection or schema error
 */
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}
	s := &PostgresSink{pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, eventSchema); err != nil {
		return fmt.Errorf("failed to create keeper_process_events: %w", err)
	}
	return nil
}

func (s *PostgresSink) Send(ctx context.Context, e models.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO keeper_process_events
			(id, type, name, run_id, pid, exit_code, status, restart_count, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, string(e.Type), e.Name, e.RunID, e.Pid, e.ExitCode, string(e.Status), e.RestartCount, e.Reason, e.OccurredAt)
	return err
}

/**
 * Recent events of a process, oldest first
 * @param {context.Context} ctx - Query context
 * @param {string} name - Process name
 * @param {int} limit - Maximum number of rows
 * @returns {[]models.Event} Events
 * @returns {error} Query error
 */
func (s *PostgresSink) Recent(ctx context.Context, name string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, type, name, run_id, pid, exit_code, status, restart_count, reason, occurred_at
		FROM (
			SELECT * FROM keeper_process_events
			WHERE name = $1
			ORDER BY occurred_at DESC
			LIMIT $2
		) recent
		ORDER BY occurred_at ASC`, name, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Event, error) {
		var e models.Event
		var typ, status string
		err := row.Scan(&e.ID, &typ, &e.Name, &e.RunID, &e.Pid, &e.ExitCode, &status, &e.RestartCount, &e.Reason, &e.OccurredAt)
		e.Type = models.EventType(typ)
		e.Status = models.RunStatus(status)
		return e, err
	})
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
