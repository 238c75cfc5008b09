package resolve

import (
	"strings"
	"time"

	"github.com/mida-project/mission-cli/internal/model"
)

// NameSimilarity scores two normalized name keys in [0,1]. It is token-set
// based and order-insensitive, with an acronym equivalence rule so that
// "EUTM MALI" and "EU TRAINING MISSION MALI" score as the same mission.
func NameSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ta, tb := strings.Fields(a), strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared, restA, restB := partitionTokens(ta, tb)
	if len(restA) == 0 && len(restB) == 0 {
		return 1.0
	}

	// Acronym rule: the distinctive remainder of one name may be the
	// acronym of the other's ("EUTM" vs "EU TRAINING MISSION").
	if acronymEqual(restA, restB) {
		return 1.0
	}

	union := float64(len(shared) + len(restA) + len(restB))
	return float64(len(shared)) / union
}

// partitionTokens splits two token lists into shared tokens and the
// per-side remainders, preserving order and multiplicity.
func partitionTokens(ta, tb []string) (shared, restA, restB []string) {
	remaining := make(map[string]int, len(tb))
	for _, t := range tb {
		remaining[t]++
	}
	for _, t := range ta {
		if remaining[t] > 0 {
			remaining[t]--
			shared = append(shared, t)
		} else {
			restA = append(restA, t)
		}
	}
	for _, t := range tb {
		if remaining[t] > 0 {
			remaining[t]--
			restB = append(restB, t)
		}
	}
	return shared, restA, restB
}

// acronymEqual reports whether one remainder collapses to the other as an
// acronym. Tried variants: plain initials ("ETM") and first token kept
// whole plus initials of the rest ("EUTM").
func acronymEqual(restA, restB []string) bool {
	if len(restA) == 0 || len(restB) == 0 {
		return false
	}
	return matchesAcronym(restA, restB) || matchesAcronym(restB, restA)
}

func matchesAcronym(short, long []string) bool {
	if len(short) != 1 || len(long) < 2 {
		return false
	}
	target := short[0]

	var initials, headPlus strings.Builder
	for i, t := range long {
		initials.WriteByte(t[0])
		if i == 0 {
			headPlus.WriteString(t)
		} else {
			headPlus.WriteByte(t[0])
		}
	}
	return target == initials.String() || target == headPlus.String()
}

// DateOverlap scores the temporal overlap of two mission date ranges.
// Ranges with an unknown end are treated as open-ended. When either start
// is unknown the score is neutral: dates then neither support nor refute
// the match.
func DateOverlap(aStart, aEnd, bStart, bEnd model.Date) float64 {
	if !aStart.Known || !bStart.Known {
		return 0.5
	}

	aLo, aHi := aStart.Time, maxTime
	if aEnd.Known {
		aHi = aEnd.Time
	}
	bLo, bHi := bStart.Time, maxTime
	if bEnd.Known {
		bHi = bEnd.Time
	}

	if aHi.Before(bLo) || bHi.Before(aLo) {
		return 0.0 // disjoint
	}
	// Full overlap: one range contains the other.
	if !aLo.After(bLo) && !aHi.Before(bHi) {
		return 1.0
	}
	if !bLo.After(aLo) && !bHi.Before(aHi) {
		return 1.0
	}
	return 0.6 // partial overlap
}

// CountryOverlap scores the overlap of two country sets. Neutral when
// either side has no country data.
func CountryOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.5
	}
	set := make(map[string]bool, len(a))
	for _, c := range a {
		set[c] = true
	}
	inter := 0
	for _, c := range b {
		if set[c] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// maxTime stands in for the upper bound of an open-ended mission range.
var maxTime = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)
