package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrTooLarge       = errors.New("request body too large")
	ErrInvalidPayload = errors.New("invalid request: malformed JSON body")
)
