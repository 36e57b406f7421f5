package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound         = errors.New("record not found")
	ErrInvalidCandidate = errors.New("invalid mentor candidate")
	ErrInvalidReport    = errors.New("invalid report")
)
