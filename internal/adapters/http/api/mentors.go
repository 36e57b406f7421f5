package api

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/skinmate/internal/domain/failure"
	"github.com/okian/skinmate/internal/domain/matcher"
)

// MentorHandler handles GET /v1/mentors/match.
type MentorHandler struct {
	deps Dependencies
}

// NewMentorHandler creates a new mentor handler.
func NewMentorHandler(deps Dependencies) *MentorHandler {
	return &MentorHandler{deps: deps}
}

// HandleMatch reads concern and score from the query string.
func (h *MentorHandler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := matcher.MatchRequest{Concern: strings.TrimSpace(q.Get("concern"))}
	if raw := strings.TrimSpace(q.Get("score")); raw != "" {
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(score) || math.IsInf(score, 0) {
			writeError(w, failure.Validationf("score must be a finite number, got %q.", raw))
			return
		}
		req.MyScore = &score
	}

	res, err := h.deps.MatchMentor(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
