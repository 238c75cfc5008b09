package store

import (
	"context"

	"github.com/mida-project/mission-cli/internal/model"
)

// Store defines persistence for the canonical mission dataset, the
// quarantine set and reconciliation run history.
//
// The dataset is a single-writer resource: the reconciliation pipeline
// holds it exclusively for the duration of a run and persists all of the
// run's effects through one CommitRun call, which succeeds completely or
// not at all.
type Store interface {
	// LoadMissions returns the full canonical dataset.
	LoadMissions(ctx context.Context) ([]*model.MissionRecord, error)
	// GetMission returns one record by id, or nil when absent.
	GetMission(ctx context.Context, missionID string) (*model.MissionRecord, error)

	// CommitRun atomically persists a reconciliation run: every touched
	// mission record, new quarantine entries, and the change report.
	CommitRun(ctx context.Context, report *model.ChangeReport, missions []*model.MissionRecord, quarantined []model.QuarantinedRecord) error

	// Quarantine review surface. Entries are only ever removed by an
	// operator, never by the pipeline or cleanup job.
	ListQuarantine(ctx context.Context) ([]model.QuarantinedRecord, error)
	DeleteQuarantine(ctx context.Context, id string) error

	// ListRuns returns the most recent change reports, newest first.
	ListRuns(ctx context.Context, limit int) ([]model.ChangeReport, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
