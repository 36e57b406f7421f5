// Package types contains wire shapes shared by the HTTP API and its clients.
package types

import "github.com/okian/skinmate/internal/domain/model"

// MentorMatch is the presentation payload for a successful match.
// MatchConfidence and Satisfaction are cosmetic and never used for ranking.
type MentorMatch struct {
	ID                   string  `json:"id"`
	UserID               string  `json:"user_id"`
	Age                  *int    `json:"age,omitempty"`
	Gender               *string `json:"gender,omitempty"`
	MatchConfidence      int     `json:"match_confidence"`
	Satisfaction         int     `json:"satisfaction"`
	SkinScore            float64 `json:"skin_score"`
	PrimaryConcern       string  `json:"primary_concern"`
	ProcedureName        *string `json:"procedure_name,omitempty"`
	Comment              string  `json:"comment"`
	BeforeImageURL       *string `json:"before_image_url,omitempty"`
	AfterImageURL        *string `json:"after_image_url,omitempty"`
	IsVerified           bool    `json:"is_verified"`
	VisitCount           int     `json:"visit_count"`
	VerifiedFacilityName *string `json:"verified_facility_name,omitempty"`
}

// MatchResult is either a populated match or an explicit "no match".
type MatchResult struct {
	Found  bool         `json:"found"`
	Mentor *MentorMatch `json:"mentor,omitempty"`
}

// SubmitResponse acknowledges an accepted analysis job.
type SubmitResponse struct {
	JobID   string                   `json:"job_id"`
	Quality model.ImageQualityResult `json:"quality"`
}

// QualityResponse is returned by the quality-only endpoint.
type QualityResponse struct {
	Width   int                      `json:"width"`
	Height  int                      `json:"height"`
	Bytes   int                      `json:"bytes"`
	Quality model.ImageQualityResult `json:"quality"`
}

// ProgressUpdate is the producer-facing sink payload.
type ProgressUpdate struct {
	JobID    string `json:"job_id"`
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// SubmitRequest is one upload for analysis. Image is the raw request body.
type SubmitRequest struct {
	JobID    string `json:"job_id,omitempty"` // generated when empty
	UserID   string `json:"user_id,omitempty"`
	Override bool   `json:"override,omitempty"` // accept an image that failed the quality gate
	Image    []byte `json:"-"`
}
