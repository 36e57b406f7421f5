package api

import (
	"net/http"

	"github.com/okian/skinmate/internal/domain/types"
)

// ReportHandler handles GET /v1/reports/{job_id}.
type ReportHandler struct {
	deps Dependencies
}

// NewReportHandler creates a new report handler.
func NewReportHandler(deps Dependencies) *ReportHandler {
	return &ReportHandler{deps: deps}
}

// HandleGet returns the finished report or 404 while the job is running.
func (h *ReportHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	report, found, err := h.deps.Report(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, types.ErrorResponse{
			Code:    "not_found",
			Message: "No report exists for job " + jobID + " yet.",
		})
		return
	}
	writeJSON(w, http.StatusOK, report)
}
