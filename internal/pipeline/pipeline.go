package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mida-project/mission-cli/internal/classify"
	"github.com/mida-project/mission-cli/internal/merge"
	"github.com/mida-project/mission-cli/internal/model"
	"github.com/mida-project/mission-cli/internal/normalize"
	"github.com/mida-project/mission-cli/internal/resolve"
	"github.com/mida-project/mission-cli/internal/store"
)

// Reconciler runs the normalize/resolve/merge/classify pipeline over a raw
// batch and commits the outcome as one atomic run.
type Reconciler struct {
	store      store.Store
	normalizer *normalize.Normalizer
	cfg        resolve.Config
	now        func() time.Time
}

// New creates a Reconciler.
func New(st store.Store, normalizer *normalize.Normalizer, cfg resolve.Config) *Reconciler {
	return &Reconciler{
		store:      st,
		normalizer: normalizer,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the reconciler's clock. Used by tests.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Reconcile processes one raw batch against the canonical dataset. Records
// that fail normalization are skipped, ambiguous matches and unclassifiable
// records are quarantined, and everything else is created or merged. The
// whole run commits in a single store transaction: either every change
// lands or none does.
func (r *Reconciler) Reconcile(ctx context.Context, batch []model.RawRecord) (*model.ChangeReport, error) {
	log := zap.L().With(zap.String("component", "pipeline"))

	report := &model.ChangeReport{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
		BatchSize: len(batch),
	}
	log.Info("reconciliation run started",
		zap.String("run_id", report.RunID),
		zap.Int("batch_size", len(batch)))

	missions, err := r.store.LoadMissions(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load canonical dataset")
	}
	idx := resolve.NewIndex(missions)

	// dirty holds every canonical record touched this run, keyed by id so a
	// record matched twice in one batch is committed once.
	dirty := make(map[string]*model.MissionRecord)
	// createdThisRun tracks missions that do not exist in the store yet:
	// merges into them stay at version 1 until the run commits.
	createdThisRun := make(map[string]bool)
	var quarantined []model.QuarantinedRecord

	for _, raw := range batch {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "pipeline: run cancelled")
		}

		norm, err := r.normalizer.Normalize(raw)
		if err != nil {
			var nerr *normalize.NormalizationError
			if errors.As(err, &nerr) {
				report.Skipped++
				log.Warn("skipping raw record",
					zap.String("source", raw.SourceID),
					zap.String("reason", nerr.Reason))
				continue
			}
			return nil, eris.Wrap(err, "pipeline: normalize")
		}

		dec := resolve.Resolve(norm, idx, r.cfg)
		switch dec.Kind {
		case resolve.KindAmbiguous:
			q := r.quarantine(norm, model.QuarantineReasonAmbiguous, candidateIDs(dec))
			quarantined = append(quarantined, q)
			report.Quarantined++
			report.Ambiguous = append(report.Ambiguous, ambiguousMatch(norm, dec))
			log.Warn("ambiguous identity, quarantined",
				zap.String("name", norm.Name),
				zap.Strings("candidates", q.CandidateIDs))

		case resolve.KindMatch:
			existing := idx.Get(dec.MissionID)
			merged, outcome := merge.Merge(existing, norm, r.now())
			if err := classify.Classify(merged, r.now()); err != nil {
				// The canonical record carries no framework and the merge
				// added no signal. Hold the incoming record; the in-memory
				// merge is discarded by not marking the record dirty.
				quarantined = append(quarantined, r.quarantine(norm, model.QuarantineReasonUnclassified, nil))
				report.Quarantined++
				log.Warn("merge left record unclassifiable, quarantined",
					zap.String("mission_id", merged.MissionID),
					zap.String("name", norm.Name))
				continue
			}
			if createdThisRun[merged.MissionID] {
				// Folded into a record created earlier in this run: still one
				// creation from the report's point of view, still version 1.
				merged.Version = 1
				dirty[merged.MissionID] = merged
				continue
			}
			dirty[merged.MissionID] = merged
			if outcome == merge.OutcomeUpdated {
				report.Updated++
				report.UpdatedIDs = append(report.UpdatedIDs, merged.MissionID)
			} else {
				report.NoOps++
			}

		case resolve.KindNoMatch:
			created, _ := merge.Merge(nil, norm, r.now())
			if err := classify.Classify(created, r.now()); err != nil {
				quarantined = append(quarantined, r.quarantine(norm, model.QuarantineReasonUnclassified, nil))
				report.Quarantined++
				log.Warn("no framework signal, quarantined",
					zap.String("name", norm.Name))
				continue
			}
			idx.Add(created)
			createdThisRun[created.MissionID] = true
			dirty[created.MissionID] = created
			report.Created++
			report.CreatedIDs = append(report.CreatedIDs, created.MissionID)
		}
	}

	report.FinishedAt = r.now()

	touched := make([]*model.MissionRecord, 0, len(dirty))
	for _, m := range dirty {
		touched = append(touched, m)
	}
	sort.Slice(touched, func(i, j int) bool { return touched[i].MissionID < touched[j].MissionID })

	if err := r.store.CommitRun(ctx, report, touched, quarantined); err != nil {
		return nil, eris.Wrap(err, "pipeline: commit run")
	}

	log.Info("reconciliation run complete",
		zap.String("run_id", report.RunID),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("noops", report.NoOps),
		zap.Int("quarantined", report.Quarantined),
		zap.Int("skipped", report.Skipped))

	return report, nil
}

func (r *Reconciler) quarantine(norm *model.NormalizedRecord, reason string, candidates []string) model.QuarantinedRecord {
	q := model.QuarantinedRecord{
		ID:            uuid.NewString(),
		Name:          norm.Name,
		SourceID:      norm.SourceID,
		FetchedAt:     norm.FetchedAt,
		Reason:        reason,
		CandidateIDs:  candidates,
		QuarantinedAt: r.now(),
	}
	q.Payload, _ = json.Marshal(norm)
	return q
}

func candidateIDs(dec resolve.Decision) []string {
	ids := make([]string, 0, len(dec.Candidates))
	for _, c := range dec.Candidates {
		ids = append(ids, c.MissionID)
	}
	return ids
}

func ambiguousMatch(norm *model.NormalizedRecord, dec resolve.Decision) model.AmbiguousMatch {
	am := model.AmbiguousMatch{
		Name:      norm.Name,
		SourceID:  norm.SourceID,
		FetchedAt: norm.FetchedAt,
	}
	for _, c := range dec.Candidates {
		am.CandidateIDs = append(am.CandidateIDs, c.MissionID)
		am.Scores = append(am.Scores, c.Score)
	}
	return am
}
