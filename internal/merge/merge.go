package merge

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mida-project/mission-cli/internal/model"
)

// Outcome describes what a merge call did to the canonical dataset.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeUpdated
	OutcomeNoOp
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	default:
		return "noop"
	}
}

// Merge combines an incoming normalized record into the canonical dataset.
// With existing == nil it creates a new MissionRecord at version 1.
// Otherwise it applies the field-level conflict policy and increments the
// version by exactly 1, whether or not any field value changed. Merge is
// monotonic in provenance: aliases, countries, notes and sources only grow.
func Merge(existing *model.MissionRecord, incoming *model.NormalizedRecord, now time.Time) (*model.MissionRecord, Outcome) {
	if existing == nil {
		return create(incoming, now), OutcomeCreated
	}

	changed := false
	var contributed []string

	// Identity: the canonical name is kept; every newly observed spelling
	// joins the alias set.
	if !existing.HasAlias(incoming.Name) {
		existing.Aliases = append(existing.Aliases, incoming.Name)
		changed = true
	}

	prov := &model.FieldProvenance{SourceID: incoming.SourceID, FetchedAt: incoming.FetchedAt}

	if mergeDate("start_date", &existing.StartDate, &existing.StartProv, incoming.StartDate, prov, existing) {
		contributed = append(contributed, "start_date")
		changed = true
	}
	if mergeDate("end_date", &existing.EndDate, &existing.EndProv, incoming.EndDate, prov, existing) {
		contributed = append(contributed, "end_date")
		changed = true
	}

	if incoming.Personnel != nil {
		cur := (*float64)(nil)
		if existing.Personnel != nil {
			f := float64(*existing.Personnel)
			cur = &f
		}
		inc := float64(*incoming.Personnel)
		if v, ok := mergeNumeric("personnel_total", cur, &existing.PersonnelProv, inc, prov, existing); ok {
			n := int(v)
			existing.Personnel = &n
			contributed = append(contributed, "personnel_total")
			changed = true
		}
	}
	if incoming.Cost != nil {
		if v, ok := mergeNumeric("cost_total", existing.Cost, &existing.CostProv, *incoming.Cost, prov, existing); ok {
			existing.Cost = &v
			contributed = append(contributed, "cost_total")
			changed = true
		}
	}

	for _, c := range incoming.Countries {
		if !existing.HasCountry(c) {
			existing.Countries = append(existing.Countries, c)
			contributed = append(contributed, "countries")
			changed = true
		}
	}

	for _, note := range incoming.Notes {
		if appendNote(existing, note) {
			changed = true
		}
	}

	if !existing.Validated && incoming.Validated {
		existing.Validated = true
		changed = true
	}

	// An adapter-declared framework fills the gap for unclassified records;
	// it never overrides an assigned framework.
	if existing.Framework == "" && incoming.FrameworkHint != "" {
		existing.Framework = incoming.FrameworkHint
		changed = true
	}

	// Provenance always grows, even on a no-op merge.
	existing.Sources = append(existing.Sources, model.SourceEntry{
		SourceID:          incoming.SourceID,
		FetchedAt:         incoming.FetchedAt,
		FieldsContributed: contributed,
		DocumentRef:       incoming.DocumentRef,
	})
	existing.Version++
	existing.LastReconciledAt = now

	if changed {
		return existing, OutcomeUpdated
	}
	return existing, OutcomeNoOp
}

// create builds a fresh canonical record from a normalized one.
func create(incoming *model.NormalizedRecord, now time.Time) *model.MissionRecord {
	prov := &model.FieldProvenance{SourceID: incoming.SourceID, FetchedAt: incoming.FetchedAt}

	// Aliases hold every observed spelling, canonical name included.
	m := &model.MissionRecord{
		MissionID:        uuid.New().String(),
		CanonicalName:    incoming.Name,
		NameKey:          incoming.NameKey,
		Aliases:          []string{incoming.Name},
		StartDate:        incoming.StartDate,
		EndDate:          incoming.EndDate,
		Countries:        append([]string(nil), incoming.Countries...),
		Framework:        incoming.FrameworkHint,
		Status:           model.StatusUnknown,
		Notes:            append([]string(nil), incoming.Notes...),
		Validated:        incoming.Validated,
		Version:          1,
		LastReconciledAt: now,
	}

	contributed := []string{"canonical_name"}
	if incoming.StartDate.Known {
		m.StartProv = prov
		contributed = append(contributed, "start_date")
	}
	if incoming.EndDate.Known {
		m.EndProv = prov
		contributed = append(contributed, "end_date")
	}
	if incoming.Personnel != nil {
		n := *incoming.Personnel
		m.Personnel = &n
		m.PersonnelProv = prov
		contributed = append(contributed, "personnel_total")
	}
	if incoming.Cost != nil {
		c := *incoming.Cost
		m.Cost = &c
		m.CostProv = prov
		contributed = append(contributed, "cost_total")
	}
	if len(incoming.Countries) > 0 {
		contributed = append(contributed, "countries")
	}

	m.Sources = []model.SourceEntry{{
		SourceID:          incoming.SourceID,
		FetchedAt:         incoming.FetchedAt,
		FieldsContributed: contributed,
		DocumentRef:       incoming.DocumentRef,
	}}
	return m
}

// mergeDate applies the freshest-wins policy to a date field. Returns true
// when the stored value changed. A dropped incoming value is recorded in
// notes, never silently lost.
func mergeDate(field string, cur *model.Date, curProv **model.FieldProvenance, inc model.Date, prov *model.FieldProvenance, m *model.MissionRecord) bool {
	if !inc.Known {
		return false
	}
	if !cur.Known {
		*cur = inc
		*curProv = prov
		return true
	}
	if cur.Equal(inc) {
		return false
	}
	if *curProv == nil || prov.FetchedAt.After((*curProv).FetchedAt) {
		appendNote(m, fmt.Sprintf("superseded %s %s by %s (%s, %s)",
			field, cur.Time.Format("2006-01-02"), inc.Time.Format("2006-01-02"),
			prov.SourceID, prov.FetchedAt.Format("2006-01-02")))
		*cur = inc
		*curProv = prov
		return true
	}
	appendNote(m, fmt.Sprintf("kept %s %s, dropped %s from older source (%s, %s)",
		field, cur.Time.Format("2006-01-02"), inc.Time.Format("2006-01-02"),
		prov.SourceID, prov.FetchedAt.Format("2006-01-02")))
	return false
}

// mergeNumeric applies the freshest-wins policy to a numeric field.
// Equal-timestamp conflicts keep the larger value as a conservative
// default, flagged for review. Returns the value to store and whether the
// stored value changed.
func mergeNumeric(field string, cur *float64, curProv **model.FieldProvenance, inc float64, prov *model.FieldProvenance, m *model.MissionRecord) (float64, bool) {
	if cur == nil {
		*curProv = prov
		return inc, true
	}
	if *cur == inc {
		// Same value: refresh provenance if the source is newer, no change
		// report entry needed.
		if *curProv == nil || prov.FetchedAt.After((*curProv).FetchedAt) {
			*curProv = prov
		}
		return 0, false
	}

	switch {
	case *curProv == nil || prov.FetchedAt.After((*curProv).FetchedAt):
		appendNote(m, fmt.Sprintf("superseded %s %v by %v (%s, %s)",
			field, *cur, inc, prov.SourceID, prov.FetchedAt.Format("2006-01-02")))
		*curProv = prov
		return inc, true
	case prov.FetchedAt.Equal((*curProv).FetchedAt):
		// Simultaneous provenance: keep the larger value, flag for review.
		if inc > *cur {
			appendNote(m, fmt.Sprintf("review: %s conflict at equal provenance, kept larger %v over %v (%s)",
				field, inc, *cur, prov.SourceID))
			*curProv = prov
			return inc, true
		}
		appendNote(m, fmt.Sprintf("review: %s conflict at equal provenance, kept larger %v over %v (%s)",
			field, *cur, inc, prov.SourceID))
		return 0, false
	default:
		appendNote(m, fmt.Sprintf("kept %s %v, dropped %v from older source (%s, %s)",
			field, *cur, inc, prov.SourceID, prov.FetchedAt.Format("2006-01-02")))
		return 0, false
	}
}

// appendNote adds a note unless it is already present. Notes are
// append-only across merges.
func appendNote(m *model.MissionRecord, note string) bool {
	for _, n := range m.Notes {
		if n == note {
			return false
		}
	}
	m.Notes = append(m.Notes, note)
	return true
}
