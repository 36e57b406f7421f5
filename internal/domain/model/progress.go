package model

import (
	"fmt"
	"time"
)

// Stage is one named phase of an analysis job.
type Stage string

// Job stages in their only legal order. StageError may follow any of them.
const (
	StageConnecting Stage = "connecting"
	StageUploading  Stage = "uploading"
	StageAnalyzing  Stage = "analyzing"
	StageScoring    Stage = "scoring"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

var stageOrder = map[Stage]int{
	StageConnecting: 0,
	StageUploading:  1,
	StageAnalyzing:  2,
	StageScoring:    3,
	StageComplete:   4,
	StageError:      4,
}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if _, ok := stageOrder[st]; !ok {
		return "", fmt.Errorf("unknown stage %q", s)
	}
	return st, nil
}

// Terminal reports whether no further stage may follow.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// Before reports whether s comes strictly earlier than other.
func (s Stage) Before(other Stage) bool {
	return stageOrder[s] < stageOrder[other]
}

// ProgressRecord is the latest known state of one job.
type ProgressRecord struct {
	JobID     string    `json:"job_id"`
	Stage     Stage     `json:"stage"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClampProgress bounds p to [0,100].
func ClampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
