package resolve

import (
	"sort"
	"strings"

	"github.com/mida-project/mission-cli/internal/model"
	"github.com/mida-project/mission-cli/internal/normalize"
)

// Scoring weights. Name similarity dominates; dates and countries act as
// corroborating evidence. When a record carries no date or country data the
// missing component is left out and the remaining weights are renormalized,
// so a sparse record with an exact name can still clear the threshold.
const (
	weightName    = 0.5
	weightDate    = 0.3
	weightCountry = 0.2
)

// Config tunes the match decision.
type Config struct {
	// MatchThreshold is the minimum combined score for a confident match.
	MatchThreshold float64
	// AmbiguityMargin: if a second candidate scores within this margin of
	// the best one, the decision is deferred to manual review.
	AmbiguityMargin float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{MatchThreshold: 0.82, AmbiguityMargin: 0.05}
}

// Kind is the outcome of an identity resolution.
type Kind int

const (
	KindNoMatch Kind = iota
	KindMatch
	KindAmbiguous
)

// Candidate is one scored canonical record.
type Candidate struct {
	MissionID string
	Score     float64
}

// Decision is the result of resolving one normalized record against the
// candidate set.
type Decision struct {
	Kind       Kind
	MissionID  string      // set when Kind == KindMatch
	Score      float64     // score of the best candidate
	Candidates []Candidate // near-ties when Kind == KindAmbiguous
}

// Index holds canonical records bucketed by blocking keys so resolution
// never scans the full dataset. Records are bucketed under every name-key
// token and every country code, so acronym variants that differ in their
// first token still land in a shared bucket.
type Index struct {
	byKey map[string][]*model.MissionRecord
	byID  map[string]*model.MissionRecord
}

// NewIndex builds an index over the given records.
func NewIndex(records []*model.MissionRecord) *Index {
	idx := &Index{
		byKey: make(map[string][]*model.MissionRecord),
		byID:  make(map[string]*model.MissionRecord, len(records)),
	}
	for _, r := range records {
		idx.Add(r)
	}
	return idx
}

// Add inserts a record into the blocking buckets. Called for every loaded
// record and again for records created mid-run, so later batch entries can
// match newly created missions.
func (x *Index) Add(rec *model.MissionRecord) {
	x.byID[rec.MissionID] = rec
	for _, tok := range strings.Fields(rec.NameKey) {
		x.byKey["t:"+tok] = append(x.byKey["t:"+tok], rec)
	}
	for _, c := range rec.Countries {
		x.byKey["c:"+c] = append(x.byKey["c:"+c], rec)
	}
}

// Get returns the indexed record by mission id, or nil.
func (x *Index) Get(missionID string) *model.MissionRecord {
	return x.byID[missionID]
}

// Len returns the number of indexed records.
func (x *Index) Len() int { return len(x.byID) }

// candidates returns the deduplicated union of all blocking buckets the
// record touches, sorted by mission id for deterministic iteration.
func (x *Index) candidates(rec *model.NormalizedRecord) []*model.MissionRecord {
	seen := make(map[string]*model.MissionRecord)
	for _, tok := range strings.Fields(rec.NameKey) {
		for _, r := range x.byKey["t:"+tok] {
			seen[r.MissionID] = r
		}
	}
	for _, c := range rec.Countries {
		for _, r := range x.byKey["c:"+c] {
			seen[r.MissionID] = r
		}
	}

	out := make([]*model.MissionRecord, 0, len(seen))
	for _, r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MissionID < out[j].MissionID })
	return out
}

// Resolve decides whether the normalized record denotes a mission already
// present in the index. The decision is deterministic: identical inputs
// and candidate sets always produce the identical result.
func Resolve(rec *model.NormalizedRecord, idx *Index, cfg Config) Decision {
	cands := idx.candidates(rec)
	if len(cands) == 0 {
		return Decision{Kind: KindNoMatch}
	}

	scored := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		scored = append(scored, Candidate{MissionID: c.MissionID, Score: combinedScore(rec, c)})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].MissionID < scored[j].MissionID
	})

	best := scored[0]
	if best.Score < cfg.MatchThreshold {
		return Decision{Kind: KindNoMatch, Score: best.Score}
	}

	// Near-ties between distinct candidates go to manual review instead of
	// guessing.
	var ties []Candidate
	for _, c := range scored {
		if best.Score-c.Score <= cfg.AmbiguityMargin {
			ties = append(ties, c)
		}
	}
	if len(ties) > 1 {
		return Decision{Kind: KindAmbiguous, Score: best.Score, Candidates: ties}
	}

	return Decision{Kind: KindMatch, MissionID: best.MissionID, Score: best.Score}
}

// combinedScore weighs name, date and country evidence. Components where
// either side has no data carry no signal and are dropped from the weighted
// average instead of diluting it.
func combinedScore(rec *model.NormalizedRecord, c *model.MissionRecord) float64 {
	sum := weightName * nameScore(rec, c)
	total := weightName
	if rec.StartDate.Known && c.StartDate.Known {
		sum += weightDate * DateOverlap(rec.StartDate, rec.EndDate, c.StartDate, c.EndDate)
		total += weightDate
	}
	if len(rec.Countries) > 0 && len(c.Countries) > 0 {
		sum += weightCountry * CountryOverlap(rec.Countries, c.Countries)
		total += weightCountry
	}
	return sum / total
}

// nameScore compares the record's name key against the canonical name key
// and every known alias, keeping the best score.
func nameScore(rec *model.NormalizedRecord, m *model.MissionRecord) float64 {
	best := NameSimilarity(rec.NameKey, m.NameKey)
	for _, alias := range m.Aliases {
		if s := NameSimilarity(rec.NameKey, normalize.NameKey(alias)); s > best {
			best = s
		}
	}
	return best
}
