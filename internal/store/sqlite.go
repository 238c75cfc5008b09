package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/mida-project/mission-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS missions (
	mission_id          TEXT PRIMARY KEY,
	name_key            TEXT NOT NULL,
	framework           TEXT,
	status              TEXT NOT NULL DEFAULT 'unknown',
	version             INTEGER NOT NULL,
	record              TEXT NOT NULL,
	last_reconciled_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS quarantine (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	source_id      TEXT NOT NULL,
	reason         TEXT NOT NULL,
	record         TEXT NOT NULL,
	quarantined_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	report      TEXT NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_missions_name_key ON missions(name_key);
CREATE INDEX IF NOT EXISTS idx_missions_status ON missions(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LoadMissions(ctx context.Context) ([]*model.MissionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM missions ORDER BY mission_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load missions")
	}
	defer rows.Close()

	var missions []*model.MissionRecord
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mission")
		}
		var m model.MissionRecord
		if err := json.Unmarshal([]byte(recordJSON), &m); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal mission")
		}
		missions = append(missions, &m)
	}
	return missions, eris.Wrap(rows.Err(), "sqlite: load missions iterate")
}

func (s *SQLiteStore) GetMission(ctx context.Context, missionID string) (*model.MissionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT record FROM missions WHERE mission_id = ?`, missionID)

	var recordJSON string
	err := row.Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get mission %s", missionID)
	}

	var m model.MissionRecord
	if err := json.Unmarshal([]byte(recordJSON), &m); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal mission")
	}
	return &m, nil
}

func (s *SQLiteStore) CommitRun(ctx context.Context, report *model.ChangeReport, missions []*model.MissionRecord, quarantined []model.QuarantinedRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin commit run")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, m := range missions {
		recordJSON, err := json.Marshal(m)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal mission %s", m.MissionID)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO missions (mission_id, name_key, framework, status, version, record, last_reconciled_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(mission_id) DO UPDATE SET
				name_key = excluded.name_key,
				framework = excluded.framework,
				status = excluded.status,
				version = excluded.version,
				record = excluded.record,
				last_reconciled_at = excluded.last_reconciled_at
			WHERE excluded.version > missions.version`,
			m.MissionID, m.NameKey, string(m.Framework), string(m.Status),
			m.Version, string(recordJSON), m.LastReconciledAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert mission %s", m.MissionID)
		}
	}

	for _, q := range quarantined {
		recordJSON, err := json.Marshal(q)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal quarantine entry")
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO quarantine (id, name, source_id, reason, record, quarantined_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			q.ID, q.Name, q.SourceID, q.Reason, string(recordJSON), q.QuarantinedAt.UTC(),
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert quarantine entry")
		}
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal change report")
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, status, report, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?)`,
		report.RunID, string(model.RunStatusComplete), string(reportJSON),
		report.StartedAt.UTC(), report.FinishedAt.UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert run")
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit run")
}

func (s *SQLiteStore) ListQuarantine(ctx context.Context) ([]model.QuarantinedRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM quarantine ORDER BY quarantined_at DESC, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list quarantine")
	}
	defer rows.Close()

	var entries []model.QuarantinedRecord
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan quarantine entry")
		}
		var q model.QuarantinedRecord
		if err := json.Unmarshal([]byte(recordJSON), &q); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal quarantine entry")
		}
		entries = append(entries, q)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list quarantine iterate")
}

func (s *SQLiteStore) DeleteQuarantine(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quarantine WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete quarantine %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("quarantine entry not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.ChangeReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT report FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var reports []model.ChangeReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		var r model.ChangeReport
		if err := json.Unmarshal([]byte(reportJSON), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal change report")
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
