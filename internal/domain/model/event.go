// Package model contains domain models passed between layers.
package model

import "time"

// AnalysisJob is one submitted photo waiting for analysis.
type AnalysisJob struct {
	JobID       string             // caller-supplied or generated, unique per job
	UserID      string             // owner of the photo, may be empty
	Image       []byte             // preprocessed bytes, exactly what the gate measured
	Quality     ImageQualityResult // verdict attached at submission
	Override    bool               // submitted despite a failing verdict
	SubmittedAt time.Time
}

// Report is the finished skin-condition analysis for a job.
type Report struct {
	JobID          string             `json:"job_id"`
	UserID         string             `json:"user_id,omitempty"`
	Scores         map[string]float64 `json:"scores"`
	SkinScore      float64            `json:"skin_score"`
	PrimaryConcern string             `json:"primary_concern"`
	Confidence     float64            `json:"confidence"`
	Uncertainty    float64            `json:"uncertainty"`
	CompletedAt    time.Time          `json:"completed_at"`
}
