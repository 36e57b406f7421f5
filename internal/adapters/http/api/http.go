// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/skinmate/internal/adapters/mq/queue"
	"github.com/okian/skinmate/internal/domain/failure"
	"github.com/okian/skinmate/internal/domain/matcher"
	"github.com/okian/skinmate/internal/domain/model"
	"github.com/okian/skinmate/internal/domain/types"
	"github.com/okian/skinmate/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CheckQuality(ctx context.Context, raw []byte) (types.QualityResponse, error)
	Submit(ctx context.Context, req types.SubmitRequest) (types.SubmitResponse, error)

	PublishProgress(ctx context.Context, u types.ProgressUpdate) (model.ProgressRecord, error)
	Subscribe(ctx context.Context, jobID string) (<-chan model.ProgressRecord, error)

	// Report returns found=false until the job has completed.
	Report(ctx context.Context, jobID string) (model.Report, bool, error)
	MatchMentor(ctx context.Context, req matcher.MatchRequest) (types.MatchResult, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	qualityHandler  *QualityHandler
	analysisHandler *AnalysisHandler
	progressHandler *ProgressHandler
	reportHandler   *ReportHandler
	mentorHandler   *MentorHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := newConfig(opts)
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		qualityHandler:  NewQualityHandler(deps, cfg.maxUploadBytes),
		analysisHandler: NewAnalysisHandler(deps, cfg.maxUploadBytes),
		progressHandler: NewProgressHandler(deps, cfg.log),
		reportHandler:   NewReportHandler(deps),
		mentorHandler:   NewMentorHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /v1/quality", MetricsMiddleware(s.qualityHandler.HandleCheck, "quality"))
	mux.HandleFunc("POST /v1/analyses", MetricsMiddleware(s.analysisHandler.HandleSubmit, "analyses"))
	mux.HandleFunc("POST /v1/progress", MetricsMiddleware(s.progressHandler.HandlePublish, "progress_publish"))
	mux.HandleFunc("GET /v1/progress/{job_id}", MetricsMiddleware(s.progressHandler.HandleStream, "progress_stream"))
	mux.HandleFunc("GET /v1/reports/{job_id}", MetricsMiddleware(s.reportHandler.HandleGet, "reports"))
	mux.HandleFunc("GET /v1/mentors/match", MetricsMiddleware(s.mentorHandler.HandleMatch, "mentor_match"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError classifies err and writes the uniform error body.
func writeError(w http.ResponseWriter, err error) {
	ce := failure.Classify(err)
	writeJSON(w, statusFor(err, ce), types.ErrorResponse{
		Code:      string(ce.Kind),
		Message:   ce.Message,
		Retryable: ce.Retryable,
	})
}

func statusFor(err error, ce *failure.ClassifiedError) int {
	if errors.Is(err, queue.ErrBackpressure) {
		return http.StatusTooManyRequests
	}
	switch ce.Kind {
	case failure.KindValidation:
		return http.StatusBadRequest
	case failure.KindAuth:
		return http.StatusUnauthorized
	case failure.KindNetwork:
		return http.StatusServiceUnavailable
	case failure.KindModel:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// readBody reads at most limit bytes. A larger body is a validation failure
// carrying the size remediation.
func readBody(w http.ResponseWriter, r *http.Request, limit int) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(limit)))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, failure.Wrap(failure.KindValidation, ErrTooLarge)
		}
		return nil, failure.Wrap(failure.KindNetwork, err)
	}
	return body, nil
}

// Option configures the Server.
type Option func(*serverConfig)

type serverConfig struct {
	maxUploadBytes int
	log            logger.Logger
}

func newConfig(opts []Option) serverConfig {
	cfg := serverConfig{maxUploadBytes: failure.DefaultMaxUploadBytes, log: logger.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithMaxUploadBytes caps request bodies on the upload endpoints.
func WithMaxUploadBytes(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxUploadBytes = n
		}
	}
}

// WithLogger sets the logger used by streaming handlers.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.log = l
		}
	}
}
