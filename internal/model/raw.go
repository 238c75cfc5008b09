package model

import "time"

// RawRecord is a source-tagged field bag as handed over by a scraper or
// extractor. It is ephemeral: after normalization only the provenance
// survives, attached to the canonical record.
type RawRecord struct {
	SourceID    string            `json:"source_id"`
	FetchedAt   time.Time         `json:"fetched_at"`
	Name        string            `json:"name"`
	Fields      map[string]string `json:"fields,omitempty"`
	DocumentRef string            `json:"document_ref,omitempty"`
}

// NormalizedRecord is a RawRecord mapped into the canonical schema, ready
// for identity resolution and merging.
type NormalizedRecord struct {
	SourceID    string
	FetchedAt   time.Time
	DocumentRef string

	Name    string // cleaned display name
	NameKey string // matching key: case-folded, accent-folded, boilerplate stripped

	StartDate Date
	EndDate   Date
	Countries []string
	Personnel *int
	Cost      *float64

	// FrameworkHint carries an explicit framework tag from the source
	// adapter (e.g. records scraped off the EEAS site are EU by origin).
	FrameworkHint Framework

	// Notes collects free text that could not be structured, such as a
	// non-numeric cost field retained verbatim.
	Notes []string

	// Validated is false when required fields (country, start date) were
	// missing from the source and degraded to unknown.
	Validated bool
}
