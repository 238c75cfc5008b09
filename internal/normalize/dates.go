package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/mida-project/mission-cli/internal/model"
)

// dateLayouts are tried in order. Institutional sources are day-first; ISO
// dates come from the master spreadsheet exports.
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"2006-01-02",
	"2 January 2006",
	"January 2006",
	"2006-01-02T15:04:05",
}

// italianMonths maps Italian month names to their English equivalents so a
// single set of layouts covers both languages.
var italianMonths = map[string]string{
	"gennaio":   "January",
	"febbraio":  "February",
	"marzo":     "March",
	"aprile":    "April",
	"maggio":    "May",
	"giugno":    "June",
	"luglio":    "July",
	"agosto":    "August",
	"settembre": "September",
	"ottobre":   "October",
	"novembre":  "November",
	"dicembre":  "December",
}

// ParseDate parses a heterogeneous date string into a model.Date. An
// unparseable or empty value yields an unknown date, never an error: a bad
// date must not reject an otherwise usable record.
func ParseDate(s string, extraLayouts []string) model.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.Date{}
	}

	lowered := strings.ToLower(s)
	for it, en := range italianMonths {
		if strings.Contains(lowered, it) {
			lowered = strings.ReplaceAll(lowered, it, strings.ToLower(en))
		}
	}
	// time.Parse month names are case-sensitive.
	s = titleMonths(lowered)

	for _, layout := range extraLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Date{Time: t.UTC(), Known: true}
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := model.Date{Time: t.UTC(), Known: true}
			if layout == "January 2006" {
				d.Approx = true
			}
			return d
		}
	}

	// Year-only mentions ("dal 2013", "2013") degrade to an approximate
	// January 1st of that year.
	if y := extractYear(s); y != 0 {
		return model.Date{
			Time:   time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC),
			Known:  true,
			Approx: true,
		}
	}

	return model.Date{}
}

// titleMonths uppercases the first letter of each alphabetic word so that
// lowercased month names match Go layouts.
func titleMonths(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if isLetter && !prevLetter && r >= 'a' && r <= 'z' {
			r = r - 'a' + 'A'
		}
		prevLetter = isLetter
		b.WriteRune(r)
	}
	return b.String()
}

// extractYear finds a plausible 4-digit year in the string, or 0.
func extractYear(s string) int {
	for i := 0; i+4 <= len(s); i++ {
		if i > 0 && isDigit(s[i-1]) {
			continue
		}
		if i+4 < len(s) && isDigit(s[i+4]) {
			continue
		}
		if isDigit(s[i]) && isDigit(s[i+1]) && isDigit(s[i+2]) && isDigit(s[i+3]) {
			y, _ := strconv.Atoi(s[i : i+4])
			if y >= 1900 && y <= 2100 {
				return y
			}
		}
	}
	return 0
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
