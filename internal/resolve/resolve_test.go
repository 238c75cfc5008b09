package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mida-project/mission-cli/internal/model"
)

func mission(id, nameKey string, countries ...string) *model.MissionRecord {
	return &model.MissionRecord{
		MissionID:     id,
		CanonicalName: nameKey,
		NameKey:       nameKey,
		StartDate:     model.NewDate(2013, 2, 18),
		Countries:     countries,
		Version:       1,
	}
}

func normRec(nameKey string, countries ...string) *model.NormalizedRecord {
	return &model.NormalizedRecord{
		Name:      nameKey,
		NameKey:   nameKey,
		StartDate: model.NewDate(2013, 2, 18),
		Countries: countries,
	}
}

func TestResolve_EmptyIndex(t *testing.T) {
	idx := NewIndex(nil)
	dec := Resolve(normRec("EUTM MALI"), idx, DefaultConfig())
	assert.Equal(t, KindNoMatch, dec.Kind)
}

func TestResolve_ExactMatch(t *testing.T) {
	idx := NewIndex([]*model.MissionRecord{mission("m1", "EUTM MALI", "MALI")})
	dec := Resolve(normRec("EUTM MALI", "MALI"), idx, DefaultConfig())
	require.Equal(t, KindMatch, dec.Kind)
	assert.Equal(t, "m1", dec.MissionID)
	assert.InDelta(t, 1.0, dec.Score, 0.001)
}

func TestResolve_AcronymVariantMatches(t *testing.T) {
	idx := NewIndex([]*model.MissionRecord{mission("m1", "EUTM MALI")})
	dec := Resolve(normRec("EU TRAINING MISSION MALI"), idx, DefaultConfig())
	require.Equal(t, KindMatch, dec.Kind)
	assert.Equal(t, "m1", dec.MissionID)
	// Neither side has countries, so only name and dates are weighed.
	assert.InDelta(t, 1.0, dec.Score, 0.001)
}

func TestResolve_NameOnlyRecordMatches(t *testing.T) {
	// A record carrying nothing but a name must still match a mission it
	// names exactly: with no date or country evidence the name stands alone.
	existing := &model.MissionRecord{
		MissionID:     "m1",
		CanonicalName: "OPERAZIONE KFOR",
		NameKey:       "OPERAZIONE KFOR",
		Version:       1,
	}
	idx := NewIndex([]*model.MissionRecord{existing})

	rec := &model.NormalizedRecord{Name: "Operazione KFOR", NameKey: "OPERAZIONE KFOR"}
	dec := Resolve(rec, idx, DefaultConfig())
	require.Equal(t, KindMatch, dec.Kind)
	assert.Equal(t, "m1", dec.MissionID)
	assert.InDelta(t, 1.0, dec.Score, 0.001)
}

func TestResolve_NameOnlyAgainstFullCandidate(t *testing.T) {
	idx := NewIndex([]*model.MissionRecord{mission("m1", "EUTM MALI", "MALI")})
	dec := Resolve(&model.NormalizedRecord{Name: "EUTM Mali", NameKey: "EUTM MALI"}, idx, DefaultConfig())
	require.Equal(t, KindMatch, dec.Kind)
	assert.Equal(t, "m1", dec.MissionID)
}

func TestResolve_AliasMatches(t *testing.T) {
	m := mission("m1", "EUTM MALI", "MALI")
	m.Aliases = []string{"EUTM Mali", "EU Training Mission Mali"}
	idx := NewIndex([]*model.MissionRecord{m})

	dec := Resolve(normRec("EU TRAINING MISSION MALI", "MALI"), idx, DefaultConfig())
	require.Equal(t, KindMatch, dec.Kind)
	assert.Equal(t, "m1", dec.MissionID)
}

func TestResolve_BelowThreshold(t *testing.T) {
	idx := NewIndex([]*model.MissionRecord{mission("m1", "EUTM MALI", "MALI")})
	// Shares only the country bucket; name disjoint.
	dec := Resolve(normRec("MINUSMA", "MALI"), idx, DefaultConfig())
	assert.Equal(t, KindNoMatch, dec.Kind)
}

func TestResolve_AmbiguousNearTie(t *testing.T) {
	a := mission("m1", "EUTM MALI", "MALI")
	b := mission("m2", "EUTM MALI", "MALI")
	idx := NewIndex([]*model.MissionRecord{a, b})

	dec := Resolve(normRec("EUTM MALI", "MALI"), idx, DefaultConfig())
	require.Equal(t, KindAmbiguous, dec.Kind)
	require.Len(t, dec.Candidates, 2)
	assert.Equal(t, "m1", dec.Candidates[0].MissionID)
	assert.Equal(t, "m2", dec.Candidates[1].MissionID)
}

func TestResolve_Deterministic(t *testing.T) {
	records := []*model.MissionRecord{
		mission("m3", "EUTM MALI", "MALI"),
		mission("m1", "EUTM SOMALIA", "SOMALIA"),
		mission("m2", "EUCAP SAHEL MALI", "MALI"),
	}
	rec := normRec("EUTM MALI", "MALI")

	first := Resolve(rec, NewIndex(records), DefaultConfig())
	for i := 0; i < 10; i++ {
		again := Resolve(rec, NewIndex(records), DefaultConfig())
		assert.Equal(t, first, again)
	}
}

func TestIndex_AddMidRun(t *testing.T) {
	idx := NewIndex(nil)
	created := mission("m1", "EUTM MALI", "MALI")
	idx.Add(created)

	// A later record in the same batch must see the newly created mission
	// even though its first token differs.
	dec := Resolve(normRec("EU TRAINING MISSION MALI"), idx, DefaultConfig())
	require.Equal(t, KindMatch, dec.Kind)
	assert.Equal(t, "m1", dec.MissionID)
	assert.Equal(t, 1, idx.Len())
}
