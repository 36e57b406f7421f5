package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/skinmate/internal/domain/failure"
	"github.com/okian/skinmate/internal/domain/model"
	"github.com/okian/skinmate/internal/domain/quality"
	"github.com/okian/skinmate/internal/domain/types"
)

// QualityHandler handles POST /v1/quality.
type QualityHandler struct {
	deps           Dependencies
	maxUploadBytes int
}

// NewQualityHandler creates a new quality handler.
func NewQualityHandler(deps Dependencies, maxUploadBytes int) *QualityHandler {
	return &QualityHandler{deps: deps, maxUploadBytes: maxUploadBytes}
}

// HandleCheck scores the uploaded image without submitting it.
func (h *QualityHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, h.maxUploadBytes)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.deps.CheckQuality(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AnalysisHandler handles POST /v1/analyses.
type AnalysisHandler struct {
	deps           Dependencies
	maxUploadBytes int
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(deps Dependencies, maxUploadBytes int) *AnalysisHandler {
	return &AnalysisHandler{deps: deps, maxUploadBytes: maxUploadBytes}
}

// rejectionResponse is the 422 body for an image that failed the gate.
type rejectionResponse struct {
	types.ErrorResponse
	Quality model.ImageQualityResult `json:"quality"`
}

// HandleSubmit accepts a raw image body. Query parameters: job_id, user_id
// and override.
func (h *AnalysisHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := types.SubmitRequest{
		JobID:  strings.TrimSpace(q.Get("job_id")),
		UserID: strings.TrimSpace(q.Get("user_id")),
	}
	if raw := q.Get("override"); raw != "" {
		override, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, failure.Validationf("override must be true or false, got %q.", raw))
			return
		}
		req.Override = override
	}

	body, err := readBody(w, r, h.maxUploadBytes)
	if err != nil {
		writeError(w, err)
		return
	}
	req.Image = body

	resp, err := h.deps.Submit(r.Context(), req)
	var rejected *quality.RejectedError
	switch {
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusUnprocessableEntity, rejectionResponse{
			ErrorResponse: types.ErrorResponse{
				Code:    string(failure.KindValidation),
				Message: rejectionMessage(rejected.Result),
			},
			Quality: rejected.Result,
		})
	case err != nil:
		writeError(w, err)
	default:
		writeJSON(w, http.StatusAccepted, resp)
	}
}

func rejectionMessage(res model.ImageQualityResult) string {
	return "The photo did not pass the quality check: " + strings.Join(res.Reasons, "; ") +
		". Retake it in good light or submit again with override=true."
}
