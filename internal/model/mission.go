package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Framework is the top-level taxonomy axis: which organization sponsors a mission.
type Framework string

const (
	FrameworkEU        Framework = "EU"
	FrameworkNATO      Framework = "NATO"
	FrameworkUN        Framework = "UN"
	FrameworkBilateral Framework = "bilateral"
	FrameworkHybrid    Framework = "hybrid"
)

// Status describes whether a mission is still running.
type Status string

const (
	StatusActive    Status = "active"
	StatusConcluded Status = "concluded"
	StatusUnknown   Status = "unknown"
)

// Date is a calendar date that may be unknown or only approximately known
// (e.g. extracted from a "since 2013" phrase).
type Date struct {
	Time   time.Time `json:"time,omitzero"`
	Known  bool      `json:"known"`
	Approx bool      `json:"approx,omitempty"`
}

// NewDate returns a known exact date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Known: true}
}

// Equal reports whether two dates are the same, treating all unknown dates as equal.
func (d Date) Equal(o Date) bool {
	if !d.Known || !o.Known {
		return d.Known == o.Known
	}
	return d.Time.Equal(o.Time)
}

// FieldProvenance records which source set a field value and when.
type FieldProvenance struct {
	SourceID  string    `json:"source_id"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SourceEntry records one source's contribution to a mission record.
type SourceEntry struct {
	SourceID          string    `json:"source_id"`
	FetchedAt         time.Time `json:"fetched_at"`
	FieldsContributed []string  `json:"fields_contributed,omitempty"`
	DocumentRef       string    `json:"document_ref,omitempty"`
}

// MissionRecord is the canonical, long-lived representation of one mission.
// It is created by the merge engine and mutated only during reconciliation
// runs; missions are never deleted, only marked concluded.
type MissionRecord struct {
	MissionID     string    `json:"mission_id"`
	CanonicalName string    `json:"canonical_name"`
	NameKey       string    `json:"name_key"`
	Aliases       []string  `json:"aliases,omitempty"`
	StartDate     Date      `json:"start_date"`
	EndDate       Date      `json:"end_date"`
	Framework     Framework `json:"framework,omitempty"`
	Subcategory   string    `json:"subcategory,omitempty"`
	Countries     []string  `json:"countries,omitempty"`

	Personnel     *int             `json:"personnel_total,omitempty"`
	PersonnelProv *FieldProvenance `json:"personnel_provenance,omitempty"`
	Cost          *float64         `json:"cost_total,omitempty"`
	CostProv      *FieldProvenance `json:"cost_provenance,omitempty"`
	StartProv     *FieldProvenance `json:"start_provenance,omitempty"`
	EndProv       *FieldProvenance `json:"end_provenance,omitempty"`

	Status           Status        `json:"status"`
	Notes            []string      `json:"notes,omitempty"`
	Sources          []SourceEntry `json:"sources"`
	Validated        bool          `json:"validated"`
	Version          int           `json:"version"`
	LastReconciledAt time.Time     `json:"last_reconciled_at"`
}

// Validate checks the record's structural invariants.
func (m *MissionRecord) Validate() error {
	if m.MissionID == "" {
		return eris.New("mission: empty mission_id")
	}
	if m.CanonicalName == "" {
		return eris.New("mission: empty canonical_name")
	}
	if m.Version < 1 {
		return eris.Errorf("mission %s: version %d < 1", m.MissionID, m.Version)
	}
	if m.StartDate.Known && m.EndDate.Known && m.EndDate.Time.Before(m.StartDate.Time) {
		return eris.Errorf("mission %s: end_date before start_date", m.MissionID)
	}
	return nil
}

// HasAlias reports whether name is already a known alias.
func (m *MissionRecord) HasAlias(name string) bool {
	for _, a := range m.Aliases {
		if a == name {
			return true
		}
	}
	return false
}

// HasCountry reports whether the country code is already recorded.
func (m *MissionRecord) HasCountry(code string) bool {
	for _, c := range m.Countries {
		if c == code {
			return true
		}
	}
	return false
}
