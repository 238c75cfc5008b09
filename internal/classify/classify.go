package classify

import (
	"fmt"
	"strings"
	"time"

	"github.com/mida-project/mission-cli/internal/model"
	"github.com/mida-project/mission-cli/internal/normalize"
)

// ClassificationGap marks a record with no framework signal at all. The
// caller quarantines the record; it is never forced into a default
// category.
type ClassificationGap struct {
	MissionID string
	Name      string
}

func (e *ClassificationGap) Error() string {
	return fmt.Sprintf("classify: no framework signal for %q (%s)", e.Name, e.MissionID)
}

// Framework signal vocabulary. Strong tokens are trusted anywhere in the
// record; short ambiguous tokens ("UN", "EU") are only trusted in names,
// aliases and source ids, where an Italian article or stray abbreviation
// cannot occur.
var strongTokens = []struct {
	token string
	fw    model.Framework
}{
	{"EUTM", model.FrameworkEU},
	{"EUNAVFOR", model.FrameworkEU},
	{"EULEX", model.FrameworkEU},
	{"EUAM", model.FrameworkEU},
	{"EUMM", model.FrameworkEU},
	{"EUBAM", model.FrameworkEU},
	{"EUPOL", model.FrameworkEU},
	{"EUCAP", model.FrameworkEU},
	{"EUFOR", model.FrameworkEU},
	{"CSDP", model.FrameworkEU},
	{"NATO", model.FrameworkNATO},
	{"KFOR", model.FrameworkNATO},
	{"SFOR", model.FrameworkNATO},
	{"ISAF", model.FrameworkNATO},
	{"UNIFIL", model.FrameworkUN},
	{"UNMISS", model.FrameworkUN},
	{"MINUSMA", model.FrameworkUN},
	{"MINURSO", model.FrameworkUN},
	{"UNTSO", model.FrameworkUN},
	{"PEACEKEEPING", model.FrameworkUN},
	{"ONU", model.FrameworkUN},
	{"BILATERAL", model.FrameworkBilateral},
	{"BILATERALE", model.FrameworkBilateral},
	{"MIBIL", model.FrameworkBilateral},
	{"MIASIT", model.FrameworkBilateral},
}

var weakTokens = []struct {
	token string
	fw    model.Framework
}{
	{"EU", model.FrameworkEU},
	{"UE", model.FrameworkEU},
	{"UN", model.FrameworkUN},
}

// sourceSignals maps well-known source ids to the framework their records
// inherently belong to.
var sourceSignals = map[string]model.Framework{
	"eeas": model.FrameworkEU,
	"nato": model.FrameworkNATO,
	"un":   model.FrameworkUN,
}

// Classify assigns framework, subcategory and status to a canonical
// record. It returns a *ClassificationGap when no framework signal exists;
// the record is then left untouched apart from status.
func Classify(m *model.MissionRecord, now time.Time) error {
	m.Status = deriveStatus(m, now)

	found := detectFrameworks(m)
	if len(found) == 0 {
		if m.Framework != "" {
			// Already classified in a previous run; signals can only be
			// added, never removed, so keep the existing tag.
			return nil
		}
		return &ClassificationGap{MissionID: m.MissionID, Name: m.CanonicalName}
	}

	var fw model.Framework
	if len(found) == 1 {
		fw = found[0]
	} else {
		fw = model.FrameworkHybrid
	}

	if m.Framework != "" && m.Framework != fw {
		appendNote(m, fmt.Sprintf("framework %s -> %s (signals: %s)",
			m.Framework, fw, joinFrameworks(found)))
	} else if fw == model.FrameworkHybrid {
		appendNote(m, fmt.Sprintf("hybrid framework (signals: %s)", joinFrameworks(found)))
	}

	m.Framework = fw
	m.Subcategory = subcategory(fw, m)
	return nil
}

// detectFrameworks scans names, aliases, notes and source ids for framework
// signals, returning the distinct frameworks in a fixed order.
func detectFrameworks(m *model.MissionRecord) []model.Framework {
	strong := m.NameKey
	for _, a := range m.Aliases {
		strong += " " + normalize.NameKey(a)
	}
	strongSet := tokenSet(strong)

	weak := strings.ToUpper(strings.Join(m.Notes, " "))
	weakSet := tokenSet(weak)

	present := make(map[model.Framework]bool)
	for _, sig := range strongTokens {
		if strongSet[sig.token] || weakSet[sig.token] {
			present[sig.fw] = true
		}
	}
	for _, sig := range weakTokens {
		if strongSet[sig.token] {
			present[sig.fw] = true
		}
	}
	for _, src := range m.Sources {
		if fw, ok := sourceSignals[strings.ToLower(src.SourceID)]; ok {
			present[fw] = true
		}
	}

	// Fixed output order keeps classification deterministic.
	order := []model.Framework{model.FrameworkEU, model.FrameworkNATO, model.FrameworkUN, model.FrameworkBilateral}
	var out []model.Framework
	for _, fw := range order {
		if present[fw] {
			out = append(out, fw)
		}
	}
	return out
}

// deriveStatus derives the mission status from its dates.
func deriveStatus(m *model.MissionRecord, now time.Time) model.Status {
	switch {
	case m.EndDate.Known && m.EndDate.Time.Before(now):
		return model.StatusConcluded
	case m.StartDate.Known || m.EndDate.Known:
		return model.StatusActive
	default:
		return model.StatusUnknown
	}
}

// civilianOps are EU operation prefixes that denote civilian CSDP missions;
// the remaining EU operations are military.
var civilianOps = []string{"EULEX", "EUAM", "EUMM", "EUBAM", "EUPOL", "EUCAP"}
var militaryOps = []string{"EUTM", "EUNAVFOR", "EUFOR"}

func subcategory(fw model.Framework, m *model.MissionRecord) string {
	tokens := tokenSet(m.NameKey)
	for _, a := range m.Aliases {
		for t := range tokenSet(normalize.NameKey(a)) {
			tokens[t] = true
		}
	}

	switch fw {
	case model.FrameworkEU:
		for _, op := range civilianOps {
			if tokens[op] {
				return "civilian CSDP"
			}
		}
		for _, op := range militaryOps {
			if tokens[op] {
				return "military CSDP"
			}
		}
		return "CSDP"
	case model.FrameworkNATO:
		if tokens["TRAINING"] {
			return "training"
		}
		return "operation"
	case model.FrameworkUN:
		if tokens["UNIFIL"] || tokens["UNMISS"] || tokens["MINUSMA"] || tokens["MINURSO"] || tokens["PEACEKEEPING"] {
			return "peacekeeping"
		}
		return "political"
	case model.FrameworkBilateral:
		if tokens["TRAINING"] {
			return "training"
		}
		return "assistance"
	default: // hybrid
		return "joint"
	}
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		set[t] = true
	}
	return set
}

func appendNote(m *model.MissionRecord, note string) {
	for _, n := range m.Notes {
		if n == note {
			return
		}
	}
	m.Notes = append(m.Notes, note)
}

func joinFrameworks(fws []model.Framework) string {
	parts := make([]string, len(fws))
	for i, fw := range fws {
		parts[i] = string(fw)
	}
	return strings.Join(parts, ", ")
}
