package simclient

import (
	"fmt"

	"github.com/okian/skinmate/internal/domain/model"
)

// stageTrace checks one job's progress records as they arrive.
type stageTrace struct {
	jobID      string
	last       model.ProgressRecord
	seen       int
	violations []string
}

func newStageTrace(jobID string) *stageTrace {
	return &stageTrace{jobID: jobID}
}

// observe records rec and notes any ordering violation.
func (t *stageTrace) observe(rec model.ProgressRecord) {
	if rec.JobID != t.jobID {
		t.violate("record for job %q on the stream of %q", rec.JobID, t.jobID)
	}
	if rec.Progress < 0 || rec.Progress > 100 {
		t.violate("progress %d out of range", rec.Progress)
	}
	if t.seen > 0 {
		prev := t.last
		switch {
		case prev.Stage.Terminal() && rec.Stage != prev.Stage:
			t.violate("stage %s after terminal %s", rec.Stage, prev.Stage)
		case rec.Stage.Before(prev.Stage):
			t.violate("stage regressed from %s to %s", prev.Stage, rec.Stage)
		case rec.UpdatedAt.Before(prev.UpdatedAt):
			t.violate("update time went backwards at stage %s", rec.Stage)
		}
	}
	t.last = rec
	t.seen++
}

func (t *stageTrace) violate(format string, args ...any) {
	t.violations = append(t.violations, fmt.Sprintf(format, args...))
}

// verifyReport checks that a completed job's report is consistent.
func verifyReport(jobID string, r model.Report) error {
	if r.JobID != jobID {
		return fmt.Errorf("report for %q carries job id %q", jobID, r.JobID)
	}
	if r.SkinScore < 0 || r.SkinScore > 100 {
		return fmt.Errorf("report %q skin score %.1f out of range", jobID, r.SkinScore)
	}
	if r.PrimaryConcern == "" {
		return fmt.Errorf("report %q has no primary concern", jobID)
	}
	if _, ok := r.Scores[r.PrimaryConcern]; !ok {
		return fmt.Errorf("report %q primary concern %q missing from scores", jobID, r.PrimaryConcern)
	}
	return nil
}
