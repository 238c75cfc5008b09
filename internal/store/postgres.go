package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/mida-project/mission-cli/internal/model"
)

// pgPool is the minimal pool surface used by PostgresStore. pgxpool.Pool
// satisfies it in production, pgxmock in tests.
type pgPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pgPool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool pgPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS missions (
	mission_id          TEXT PRIMARY KEY,
	name_key            TEXT NOT NULL,
	framework           TEXT,
	status              TEXT NOT NULL DEFAULT 'unknown',
	version             INTEGER NOT NULL,
	record              JSONB NOT NULL,
	last_reconciled_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS quarantine (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	source_id      TEXT NOT NULL,
	reason         TEXT NOT NULL,
	record         JSONB NOT NULL,
	quarantined_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	report      JSONB NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_missions_name_key ON missions(name_key);
CREATE INDEX IF NOT EXISTS idx_missions_status ON missions(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) LoadMissions(ctx context.Context) ([]*model.MissionRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT record FROM missions ORDER BY mission_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load missions")
	}
	defer rows.Close()

	var missions []*model.MissionRecord
	for rows.Next() {
		var recordJSON []byte
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan mission")
		}
		var m model.MissionRecord
		if err := json.Unmarshal(recordJSON, &m); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal mission")
		}
		missions = append(missions, &m)
	}
	return missions, eris.Wrap(rows.Err(), "postgres: load missions iterate")
}

func (s *PostgresStore) GetMission(ctx context.Context, missionID string) (*model.MissionRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT record FROM missions WHERE mission_id = $1`, missionID)

	var recordJSON []byte
	err := row.Scan(&recordJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get mission %s", missionID)
	}

	var m model.MissionRecord
	if err := json.Unmarshal(recordJSON, &m); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal mission")
	}
	return &m, nil
}

func (s *PostgresStore) CommitRun(ctx context.Context, report *model.ChangeReport, missions []*model.MissionRecord, quarantined []model.QuarantinedRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin commit run")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, m := range missions {
		recordJSON, err := json.Marshal(m)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal mission %s", m.MissionID)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO missions (mission_id, name_key, framework, status, version, record, last_reconciled_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (mission_id) DO UPDATE SET
				name_key = excluded.name_key,
				framework = excluded.framework,
				status = excluded.status,
				version = excluded.version,
				record = excluded.record,
				last_reconciled_at = excluded.last_reconciled_at
			WHERE excluded.version > missions.version`,
			m.MissionID, m.NameKey, string(m.Framework), string(m.Status),
			m.Version, recordJSON, m.LastReconciledAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert mission %s", m.MissionID)
		}
	}

	for _, q := range quarantined {
		recordJSON, err := json.Marshal(q)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal quarantine entry")
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO quarantine (id, name, source_id, reason, record, quarantined_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING`,
			q.ID, q.Name, q.SourceID, q.Reason, recordJSON, q.QuarantinedAt.UTC(),
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert quarantine entry")
		}
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal change report")
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO runs (id, status, report, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5)`,
		report.RunID, string(model.RunStatusComplete), reportJSON,
		report.StartedAt.UTC(), report.FinishedAt.UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert run")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit run")
}

func (s *PostgresStore) ListQuarantine(ctx context.Context) ([]model.QuarantinedRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record FROM quarantine ORDER BY quarantined_at DESC, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list quarantine")
	}
	defer rows.Close()

	var entries []model.QuarantinedRecord
	for rows.Next() {
		var recordJSON []byte
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan quarantine entry")
		}
		var q model.QuarantinedRecord
		if err := json.Unmarshal(recordJSON, &q); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal quarantine entry")
		}
		entries = append(entries, q)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list quarantine iterate")
}

func (s *PostgresStore) DeleteQuarantine(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quarantine WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete quarantine %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("quarantine entry not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.ChangeReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT report FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var reports []model.ChangeReport
	for rows.Next() {
		var reportJSON []byte
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		var r model.ChangeReport
		if err := json.Unmarshal(reportJSON, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal change report")
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
