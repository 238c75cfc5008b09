package model

import "time"

// RunStatus tracks the lifecycle of one reconciliation run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// AmbiguousMatch describes an incoming record whose identity resolution
// ended in a near-tie between candidates. These are deferred to manual
// review, never auto-resolved.
type AmbiguousMatch struct {
	Name         string    `json:"name"`
	SourceID     string    `json:"source_id"`
	FetchedAt    time.Time `json:"fetched_at"`
	CandidateIDs []string  `json:"candidate_ids"`
	Scores       []float64 `json:"scores"`
}

// ChangeReport summarizes one reconciliation run for notification and
// operator review.
type ChangeReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	BatchSize   int `json:"batch_size"`
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	NoOps       int `json:"noops"`
	Quarantined int `json:"quarantined"`
	Skipped     int `json:"skipped"`

	CreatedIDs []string         `json:"created_ids,omitempty"`
	UpdatedIDs []string         `json:"updated_ids,omitempty"`
	Ambiguous  []AmbiguousMatch `json:"ambiguous,omitempty"`
}

// QuarantinedRecord is a normalized record held out of the canonical
// dataset pending manual review, with the reason it was held.
type QuarantinedRecord struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	SourceID      string    `json:"source_id"`
	FetchedAt     time.Time `json:"fetched_at"`
	Reason        string    `json:"reason"`
	CandidateIDs  []string  `json:"candidate_ids,omitempty"`
	Payload       []byte    `json:"payload,omitempty"`
	QuarantinedAt time.Time `json:"quarantined_at"`
}

const (
	QuarantineReasonAmbiguous    = "ambiguous_match"
	QuarantineReasonUnclassified = "no_framework_signal"
)
