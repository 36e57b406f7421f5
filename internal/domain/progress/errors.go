package progress

import (
	"errors"
	"fmt"

	"github.com/okian/skinmate/internal/domain/failure"
	"github.com/okian/skinmate/internal/domain/model"
)

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = failure.Wrap(failure.KindServer, errors.New("progress channel closed"))

func errUnknownStage(stage model.Stage) error {
	return failure.Validationf("Unknown stage %q. Use one of connecting, uploading, analyzing, scoring, complete or error.", stage)
}

func errRegression(jobID string, from, to model.Stage) error {
	return failure.Validationf("Job %s is already at stage %s and cannot move back to %s.", jobID, from, to)
}

func errFinished(jobID string, stage model.Stage) error {
	return failure.Validationf("Job %s already finished with stage %s.", jobID, stage)
}

// errStore tags a backing store failure so it crosses the boundary classified.
func errStore(op string, err error) error {
	return failure.Wrap(failure.KindServer, fmt.Errorf("progress store %s: %w", op, err))
}
