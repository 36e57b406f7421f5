package queue

import "github.com/okian/skinmate/internal/domain/failure"

// ErrBackpressure is returned to submitters when the queue cannot take a job.
var ErrBackpressure = failure.New(failure.KindServer,
	"The analysis service is busy. Please try again in a moment.")
