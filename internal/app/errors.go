package service

import (
	"github.com/okian/skinmate/internal/domain/failure"
)

// ErrNotStarted is returned by Start once the service has been stopped.
var ErrNotStarted = failure.New(failure.KindServer, "The analysis service is not running.")

func errDuplicateJob(jobID string) error {
	return failure.Validationf("Job %s was already submitted.", jobID)
}
