package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/skinmate/internal/domain/model"
	"github.com/okian/skinmate/internal/domain/types"
	"github.com/okian/skinmate/pkg/logger"
)

// SSE event names.
const (
	eventProgress = "progress"
	eventEnd      = "end"
)

const (
	maxProgressBody = 64 << 10
	sseWriteTimeout = 10 * time.Second
	sseContentType  = "text/event-stream"
)

// ProgressHandler serves the progress sink and the SSE stream.
type ProgressHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(deps Dependencies, log logger.Logger) *ProgressHandler {
	return &ProgressHandler{deps: deps, log: log.Named("sse")}
}

type publishAck struct {
	OK     bool                 `json:"ok"`
	Record model.ProgressRecord `json:"record"`
}

// HandlePublish accepts {job_id, stage, progress, message} from a producer.
func (h *ProgressHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, maxProgressBody)
	if err != nil {
		writeError(w, err)
		return
	}
	var u types.ProgressUpdate
	if err := json.Unmarshal(body, &u); err != nil {
		writeError(w, fmt.Errorf("%w: %w", ErrInvalidPayload, err))
		return
	}
	rec, err := h.deps.PublishProgress(r.Context(), u)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, publishAck{OK: true, Record: rec})
}

// HandleStream writes one "progress" event per subscriber tick and a final
// "end" event for the terminal record. A client disconnect ends the
// subscription without touching the stored record.
func (h *ProgressHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := r.PathValue("job_id")

	sub, err := h.deps.Subscribe(ctx, jobID)
	if err != nil {
		writeError(w, err)
		return
	}

	rc := http.NewResponseController(w)
	hdr := w.Header()
	hdr.Set("Content-Type", sseContentType)
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for rec := range sub {
		if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			h.log.Warn(ctx, "failed to set write deadline", logger.Error(err))
		}
		name := eventProgress
		if rec.Stage.Terminal() {
			name = eventEnd
		}
		if err := writeEvent(w, name, rec); err != nil {
			h.log.Debug(ctx, "client went away", logger.String("job_id", jobID), logger.Error(err))
			return
		}
		if err := rc.Flush(); err != nil {
			h.log.Warn(ctx, "flush failed", logger.String("job_id", jobID), logger.Error(err))
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, rec model.ProgressRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
