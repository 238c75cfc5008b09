package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/mida-project/mission-cli/internal/model"
)

// NormalizationError marks a raw record that cannot be normalized at all.
// It is raised only when the record lacks a usable name: without a name
// there is no identity to resolve. Every other missing field degrades to
// unknown or empty.
type NormalizationError struct {
	SourceID string
	Reason   string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize: unusable record from %s: %s", e.SourceID, e.Reason)
}

// boilerplatePrefixes are source-specific lead-ins stripped from mission
// names before matching ("Missione EUTM Mali" and "EUTM Mali" must key
// identically).
var boilerplatePrefixes = []string{
	"MISSIONE ", "OPERAZIONE ", "MISSION ", "OPERATION ",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalizer maps raw extracted records into the canonical schema using
// per-source adapters.
type Normalizer struct {
	registry *Registry
}

// New creates a Normalizer over the given adapter registry.
func New(registry *Registry) *Normalizer {
	return &Normalizer{registry: registry}
}

// Normalize converts a RawRecord into a NormalizedRecord. It returns a
// *NormalizationError only when no usable name can be found.
func (n *Normalizer) Normalize(raw model.RawRecord) (*model.NormalizedRecord, error) {
	adapter := n.registry.ForSource(raw.SourceID)

	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = strings.TrimSpace(n.registry.lookup(adapter, raw.Fields, FieldName))
	}
	if name == "" {
		return nil, &NormalizationError{SourceID: raw.SourceID, Reason: "no mission name"}
	}

	rec := &model.NormalizedRecord{
		SourceID:    raw.SourceID,
		FetchedAt:   raw.FetchedAt,
		DocumentRef: raw.DocumentRef,
		Name:        CleanName(name),
	}
	rec.NameKey = NameKey(rec.Name)
	if rec.NameKey == "" {
		return nil, &NormalizationError{SourceID: raw.SourceID, Reason: "name reduces to empty key"}
	}

	rec.StartDate = ParseDate(n.registry.lookup(adapter, raw.Fields, FieldStartDate), adapter.DateLayouts)
	rec.EndDate = ParseDate(n.registry.lookup(adapter, raw.Fields, FieldEndDate), adapter.DateLayouts)
	if rec.StartDate.Known && rec.EndDate.Known && rec.EndDate.Time.Before(rec.StartDate.Time) {
		// Inverted ranges are a source artifact; keep the start, drop the end.
		rec.Notes = append(rec.Notes, fmt.Sprintf(
			"end_date %s before start_date, discarded (%s)",
			rec.EndDate.Time.Format("2006-01-02"), raw.SourceID))
		rec.EndDate = model.Date{}
	}

	rec.Countries = ParseCountries(n.registry.lookup(adapter, raw.Fields, FieldCountry))

	if v := n.registry.lookup(adapter, raw.Fields, FieldPersonnel); v != "" {
		if p, ok := ParsePersonnel(v); ok {
			rec.Personnel = &p
		} else {
			rec.Notes = append(rec.Notes, fmt.Sprintf("personnel_total (%s): %q", raw.SourceID, v))
		}
	}
	if v := n.registry.lookup(adapter, raw.Fields, FieldCost); v != "" {
		if c, ok := ParseAmount(v); ok {
			rec.Cost = &c
		} else {
			rec.Notes = append(rec.Notes, fmt.Sprintf("cost_total (%s): %q", raw.SourceID, v))
		}
	}

	if adapter.Framework != "" {
		rec.FrameworkHint = model.Framework(adapter.Framework)
	}

	rec.Validated = len(rec.Countries) > 0 && rec.StartDate.Known

	return rec, nil
}

// CleanName trims and collapses whitespace and drops boilerplate prefixes,
// preserving the original casing for display.
func CleanName(name string) string {
	name = multiSpaceRe.ReplaceAllString(strings.TrimSpace(name), " ")
	upper := strings.ToUpper(name)
	for _, prefix := range boilerplatePrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = strings.TrimSpace(name[len(prefix):])
			break
		}
	}
	return name
}

// NameKey standardizes a mission name for matching by:
//  1. Stripping boilerplate prefixes ("Missione ", "Operation ", ...)
//  2. Folding accents (EULEX Kosovo / EULEX Kosovò)
//  3. Converting to uppercase
//  4. Stripping punctuation
//  5. Collapsing multiple spaces into single spaces
func NameKey(name string) string {
	name = CleanName(name)
	if folded, _, err := transform.String(accentFolder, name); err == nil {
		name = folded
	}
	name = strings.ToUpper(name)

	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"(", " ",
		")", " ",
		"&", "AND",
		"-", " ",
		"/", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// ParseCountries splits a country field on common separators and uppercases
// the entries for set comparison.
func ParseCountries(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	split := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '/'
	})
	var out []string
	seen := make(map[string]bool, len(split))
	for _, c := range split {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// ParsePersonnel parses a headcount, tolerating thousands separators and
// surrounding text like "circa 200 militari" as long as exactly one number
// is present.
func ParsePersonnel(s string) (int, bool) {
	digits := regexp.MustCompile(`\d[\d.,]*`).FindAllString(s, -1)
	if len(digits) != 1 {
		return 0, false
	}
	cleaned := strings.NewReplacer(".", "", ",", "").Replace(digits[0])
	n, err := strconv.Atoi(cleaned)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ParseAmount parses a monetary amount, stripping currency symbols and
// resolving both Italian ("1.234,56") and English ("1,234.56") separator
// conventions by treating the last separator as the decimal point.
func ParseAmount(s string) (float64, bool) {
	s = strings.NewReplacer("€", "", "$", "", "EUR", "", "USD", "", " ", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' && r != '-' {
			return 0, false
		}
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastComma > lastDot: // Italian: dots group thousands, comma is decimal
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1: // dots as thousands separators only
		s = strings.ReplaceAll(s, ".", "")
	default: // English or no separators: commas group thousands
		s = strings.ReplaceAll(s, ",", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
