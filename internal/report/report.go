package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/mida-project/mission-cli/internal/model"
)

// Format generates a human-readable change report for one reconciliation
// run.
func Format(r *model.ChangeReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Reconciliation Report: %s\n", r.RunID)
	fmt.Fprintf(&b, "Started: %s\n", r.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Finished: %s\n\n", r.FinishedAt.Format("2006-01-02 15:04:05 MST"))

	// Summary.
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Batch size: %d\n", r.BatchSize)
	fmt.Fprintf(&b, "- Created: %d\n", r.Created)
	fmt.Fprintf(&b, "- Updated: %d\n", r.Updated)
	fmt.Fprintf(&b, "- Unchanged: %d\n", r.NoOps)
	fmt.Fprintf(&b, "- Quarantined: %d\n", r.Quarantined)
	fmt.Fprintf(&b, "- Skipped: %d\n\n", r.Skipped)

	if len(r.CreatedIDs) > 0 {
		b.WriteString("## New Missions\n")
		for _, id := range r.CreatedIDs {
			fmt.Fprintf(&b, "- %s\n", id)
		}
		b.WriteString("\n")
	}

	if len(r.UpdatedIDs) > 0 {
		b.WriteString("## Updated Missions\n")
		for _, id := range r.UpdatedIDs {
			fmt.Fprintf(&b, "- %s\n", id)
		}
		b.WriteString("\n")
	}

	if len(r.Ambiguous) > 0 {
		b.WriteString("## Pending Manual Review\n")
		for _, am := range r.Ambiguous {
			fmt.Fprintf(&b, "- **%s** (%s): candidates %s\n",
				am.Name, am.SourceID, strings.Join(am.CandidateIDs, ", "))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// Write renders the report to <outputDir>/report-<run-id>.md and returns
// the file path.
func Write(outputDir string, r *model.ChangeReport) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", eris.Wrap(err, "report: create output dir")
	}
	path := filepath.Join(outputDir, "report-"+r.RunID+".md")
	if err := os.WriteFile(path, []byte(Format(r)), 0o644); err != nil {
		return "", eris.Wrap(err, "report: write file")
	}
	return path, nil
}
