package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mida-project/mission-cli/internal/model"
	"github.com/mida-project/mission-cli/internal/normalize"
	"github.com/mida-project/mission-cli/internal/resolve"
	"github.com/mida-project/mission-cli/internal/store"
)

var runTime = time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)

func newTestReconciler(t *testing.T) (*Reconciler, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "missions.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	normalizer := normalize.New(normalize.NewRegistry(nil))
	r := New(st, normalizer, resolve.DefaultConfig()).
		WithClock(func() time.Time { return runTime })
	return r, st
}

func raw(sourceID, name string, fields map[string]string) model.RawRecord {
	if fields == nil {
		fields = map[string]string{}
	}
	fields["name"] = name
	return model.RawRecord{
		SourceID:  sourceID,
		FetchedAt: runTime.Add(-24 * time.Hour),
		Fields:    fields,
	}
}

func TestReconcile_SameMissionAcrossSources(t *testing.T) {
	r, st := newTestReconciler(t)
	ctx := context.Background()

	batch := []model.RawRecord{
		raw("camera", "Missione EUTM Mali", map[string]string{
			"paese":            "Mali",
			"data_inizio":      "18/02/2013",
			"personale_totale": "200",
		}),
		raw("eeas", "EU Training Mission Mali", map[string]string{
			"country": "Mali",
		}),
	}

	report, err := r.Reconcile(ctx, batch)
	require.NoError(t, err)

	// Both records resolve to one mission created in this run.
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 0, report.Quarantined)
	assert.Equal(t, 2, report.BatchSize)

	missions, err := st.LoadMissions(ctx)
	require.NoError(t, err)
	require.Len(t, missions, 1)

	m := missions[0]
	assert.Equal(t, 1, m.Version)
	assert.Equal(t, model.FrameworkEU, m.Framework)
	assert.Contains(t, m.Aliases, "EUTM Mali")
	assert.Contains(t, m.Aliases, "EU Training Mission Mali")
	require.NotNil(t, m.Personnel)
	assert.Equal(t, 200, *m.Personnel)
	assert.Equal(t, []string{"MALI"}, m.Countries)
	assert.True(t, m.StartDate.Known)
	assert.True(t, m.StartDate.Time.Equal(time.Date(2013, time.February, 18, 0, 0, 0, 0, time.UTC)))
	assert.Len(t, m.Sources, 2)
}

func TestReconcile_SkipsUnnamedRecords(t *testing.T) {
	r, _ := newTestReconciler(t)

	batch := []model.RawRecord{
		{SourceID: "camera", FetchedAt: runTime, Fields: map[string]string{"paese": "Mali"}},
		raw("camera", "Operazione KFOR", map[string]string{"paese": "Kosovo"}),
	}

	report, err := r.Reconcile(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Created)
}

func TestReconcile_QuarantinesUnclassifiable(t *testing.T) {
	r, st := newTestReconciler(t)
	ctx := context.Background()

	batch := []model.RawRecord{
		raw("camera", "Osservatori Confine", map[string]string{"paese": "Libano"}),
	}

	report, err := r.Reconcile(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Quarantined)

	missions, err := st.LoadMissions(ctx)
	require.NoError(t, err)
	assert.Empty(t, missions)

	entries, err := st.ListQuarantine(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.QuarantineReasonUnclassified, entries[0].Reason)
	assert.Equal(t, "Osservatori Confine", entries[0].Name)
	assert.NotEmpty(t, entries[0].Payload)
}

func TestReconcile_QuarantinesAmbiguousMatch(t *testing.T) {
	r, st := newTestReconciler(t)
	ctx := context.Background()

	// Two canonical records with the same matching key force a near-tie.
	seed := func(id string) *model.MissionRecord {
		return &model.MissionRecord{
			MissionID:        id,
			CanonicalName:    "EUTM Mali",
			NameKey:          "EUTM MALI",
			Aliases:          []string{"EUTM Mali"},
			Framework:        model.FrameworkEU,
			Status:           model.StatusActive,
			Countries:        []string{"MALI"},
			Version:          1,
			LastReconciledAt: runTime.Add(-48 * time.Hour),
			Sources:          []model.SourceEntry{{SourceID: "camera", FetchedAt: runTime.Add(-48 * time.Hour)}},
		}
	}
	seedReport := &model.ChangeReport{RunID: "seed", StartedAt: runTime.Add(-48 * time.Hour), FinishedAt: runTime.Add(-48 * time.Hour)}
	require.NoError(t, st.CommitRun(ctx, seedReport, []*model.MissionRecord{seed("m1"), seed("m2")}, nil))

	report, err := r.Reconcile(ctx, []model.RawRecord{
		raw("eeas", "EUTM Mali", map[string]string{"country": "Mali"}),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Quarantined)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 0, report.Updated)
	require.Len(t, report.Ambiguous, 1)
	assert.ElementsMatch(t, []string{"m1", "m2"}, report.Ambiguous[0].CandidateIDs)

	entries, err := st.ListQuarantine(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.QuarantineReasonAmbiguous, entries[0].Reason)
	assert.ElementsMatch(t, []string{"m1", "m2"}, entries[0].CandidateIDs)
}

func TestReconcile_UpdatesExistingMission(t *testing.T) {
	r, st := newTestReconciler(t)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, []model.RawRecord{
		raw("camera", "Missione EUTM Mali", map[string]string{
			"paese":            "Mali",
			"data_inizio":      "18/02/2013",
			"personale_totale": "200",
		}),
	})
	require.NoError(t, err)

	// A fresher source revises personnel.
	fresher := raw("eeas", "EUTM Mali", map[string]string{
		"country":   "Mali",
		"personnel": "350",
	})
	fresher.FetchedAt = runTime.Add(-1 * time.Hour)

	report, err := r.Reconcile(ctx, []model.RawRecord{fresher})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Updated)

	missions, err := st.LoadMissions(ctx)
	require.NoError(t, err)
	require.Len(t, missions, 1)
	require.NotNil(t, missions[0].Personnel)
	assert.Equal(t, 350, *missions[0].Personnel)
	assert.Equal(t, 2, missions[0].Version)
}

func TestReconcile_Idempotent(t *testing.T) {
	r, st := newTestReconciler(t)
	ctx := context.Background()

	batch := []model.RawRecord{
		raw("camera", "Missione EUTM Mali", map[string]string{
			"paese":            "Mali",
			"data_inizio":      "18/02/2013",
			"personale_totale": "200",
		}),
	}

	_, err := r.Reconcile(ctx, batch)
	require.NoError(t, err)
	first, err := st.GetMission(ctx, mustOnlyMissionID(t, st))
	require.NoError(t, err)

	report, err := r.Reconcile(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 1, report.NoOps)

	second, err := st.GetMission(ctx, first.MissionID)
	require.NoError(t, err)
	assert.Equal(t, first.CanonicalName, second.CanonicalName)
	assert.Equal(t, first.Personnel, second.Personnel)
	assert.Equal(t, first.Countries, second.Countries)
	assert.Equal(t, first.StartDate, second.StartDate)
	assert.Equal(t, first.Aliases, second.Aliases)
}

func TestReconcile_NameOnlyRecordIdempotent(t *testing.T) {
	r, st := newTestReconciler(t)
	ctx := context.Background()

	// No dates, no countries: the name is the only identity evidence, and
	// replaying the batch must still fold onto the mission it created. The
	// duplicate inside the first batch must fold the same way.
	batch := []model.RawRecord{
		raw("camera", "Operazione KFOR", nil),
		raw("camera", "Operazione KFOR", nil),
	}

	first, err := r.Reconcile(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)
	assert.Equal(t, 0, first.Updated)

	second, err := r.Reconcile(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 2, second.NoOps)

	missions, err := st.LoadMissions(ctx)
	require.NoError(t, err)
	assert.Len(t, missions, 1)
}

func TestReconcile_RecordsRun(t *testing.T) {
	r, st := newTestReconciler(t)
	ctx := context.Background()

	report, err := r.Reconcile(ctx, []model.RawRecord{
		raw("camera", "Operazione UNIFIL", map[string]string{"paese": "Libano"}),
	})
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)

	runs, err := st.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].RunID)
	assert.Equal(t, 1, runs[0].Created)
}

func mustOnlyMissionID(t *testing.T, st store.Store) string {
	t.Helper()
	missions, err := st.LoadMissions(context.Background())
	require.NoError(t, err)
	require.Len(t, missions, 1)
	return missions[0].MissionID
}
