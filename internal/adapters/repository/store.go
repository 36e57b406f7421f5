// Package repository holds mentor candidates and finished analysis reports.
package repository

import (
	"context"

	"github.com/okian/skinmate/internal/domain/model"
)

// MentorStore provides read access to the mentor candidate pool.
type MentorStore interface {
	// TopCandidate returns the active candidate for concern with the highest
	// skin score strictly above minScore. found is false when none qualifies.
	TopCandidate(ctx context.Context, concern string, minScore float64) (c model.MentorCandidate, found bool, err error)

	// Count returns the number of stored candidates, active or not.
	Count(ctx context.Context) (int, error)
}

// ReportStore keeps finished analysis reports by job id.
type ReportStore interface {
	Save(ctx context.Context, r model.Report) error
	// Get returns ErrNotFound for unknown job ids.
	Get(ctx context.Context, jobID string) (model.Report, error)
	Count(ctx context.Context) int
}
