package simclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/skinmate/internal/domain/failure"
	"github.com/okian/skinmate/internal/domain/model"
	"github.com/okian/skinmate/internal/domain/quality"
	"github.com/okian/skinmate/internal/domain/retry"
	"github.com/okian/skinmate/internal/domain/types"
	"github.com/okian/skinmate/pkg/logger"
)

const maxErrorBody = 64 << 10

// Client talks to the analysis API. Every call is retried per the
// configured policy; only retryable classified failures are repeated.
type Client struct {
	base      string
	http      *http.Client
	stream    *http.Client
	retryOpts []retry.Option
	log       logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRetry sets the retry policy for every call.
func WithRetry(opts ...retry.Option) ClientOption {
	return func(c *Client) { c.retryOpts = append(c.retryOpts, opts...) }
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates a client for baseURL. timeout bounds each request
// except progress streams, which last as long as the job.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		base:   baseURL,
		http:   &http.Client{Timeout: timeout},
		stream: &http.Client{},
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) retryOptions(name string) []retry.Option {
	return append([]retry.Option{retry.WithName(name), retry.WithLogger(c.log)}, c.retryOpts...)
}

// Health checks that the service answers its metrics endpoint.
func (c *Client) Health(ctx context.Context) error {
	return retry.Do(ctx, func(ctx context.Context) error {
		resp, err := c.do(ctx, c.http, http.MethodGet, "/healthz", nil, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errorFromResponse(resp)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}, c.retryOptions("health")...)
}

// CheckQuality asks the service to score an image.
func (c *Client) CheckQuality(ctx context.Context, img []byte) (types.QualityResponse, error) {
	return retry.DoValue(ctx, func(ctx context.Context) (types.QualityResponse, error) {
		var out types.QualityResponse
		err := c.doJSON(ctx, http.MethodPost, "/v1/quality", nil, img, http.StatusOK, &out)
		return out, err
	}, c.retryOptions("check_quality")...)
}

// Submit uploads an image. A gate rejection wraps *quality.RejectedError.
func (c *Client) Submit(ctx context.Context, req types.SubmitRequest) (types.SubmitResponse, error) {
	q := url.Values{}
	if req.JobID != "" {
		q.Set("job_id", req.JobID)
	}
	if req.UserID != "" {
		q.Set("user_id", req.UserID)
	}
	if req.Override {
		q.Set("override", "true")
	}
	return retry.DoValue(ctx, func(ctx context.Context) (types.SubmitResponse, error) {
		var out types.SubmitResponse
		err := c.doJSON(ctx, http.MethodPost, "/v1/analyses", q, req.Image, http.StatusAccepted, &out)
		return out, err
	}, c.retryOptions("submit")...)
}

// Watch follows the job's progress stream until the terminal record and
// returns it. A dropped stream is reopened; the server re-emits the current
// state on every connection so nothing is lost.
func (c *Client) Watch(ctx context.Context, jobID string, onRecord func(model.ProgressRecord)) (model.ProgressRecord, error) {
	return retry.DoValue(ctx, func(ctx context.Context) (model.ProgressRecord, error) {
		resp, err := c.do(ctx, c.stream, http.MethodGet, "/v1/progress/"+url.PathEscape(jobID), nil, nil)
		if err != nil {
			return model.ProgressRecord{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return model.ProgressRecord{}, errorFromResponse(resp)
		}
		return readStream(resp.Body, onRecord)
	}, c.retryOptions("watch")...)
}

// Report fetches the finished report. found is false while the job runs.
func (c *Client) Report(ctx context.Context, jobID string) (model.Report, bool, error) {
	type result struct {
		report model.Report
		found  bool
	}
	res, err := retry.DoValue(ctx, func(ctx context.Context) (result, error) {
		resp, err := c.do(ctx, c.http, http.MethodGet, "/v1/reports/"+url.PathEscape(jobID), nil, nil)
		if err != nil {
			return result{}, err
		}
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusOK:
			var r model.Report
			if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
				return result{}, failure.Wrap(failure.KindServer, err)
			}
			return result{report: r, found: true}, nil
		case http.StatusNotFound:
			return result{}, nil
		default:
			return result{}, errorFromResponse(resp)
		}
	}, c.retryOptions("report")...)
	return res.report, res.found, err
}

// MatchMentor asks for the best mentor for concern given the user's score.
func (c *Client) MatchMentor(ctx context.Context, concern string, score float64) (types.MatchResult, error) {
	q := url.Values{}
	q.Set("concern", concern)
	q.Set("score", strconv.FormatFloat(score, 'f', -1, 64))
	return retry.DoValue(ctx, func(ctx context.Context) (types.MatchResult, error) {
		var out types.MatchResult
		err := c.doJSON(ctx, http.MethodGet, "/v1/mentors/match", q, nil, http.StatusOK, &out)
		return out, err
	}, c.retryOptions("match_mentor")...)
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, q url.Values, body []byte) (*http.Response, error) {
	target := c.base + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	var rd io.Reader = http.NoBody
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, failure.Wrap(failure.KindValidation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	// Transport errors are left raw so the classifier sees net.Error.
	return hc.Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, body []byte, want int, out any) error {
	resp, err := c.do(ctx, c.http, method, path, q, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		return errorFromResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return failure.Wrap(failure.KindServer, fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

// errorFromResponse rebuilds the server's classified error. The server's
// retry verdict is kept as sent.
func errorFromResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode == http.StatusUnprocessableEntity {
		var rej struct {
			Quality model.ImageQualityResult `json:"quality"`
		}
		if err := json.Unmarshal(raw, &rej); err == nil {
			return failure.Wrap(failure.KindValidation, &quality.RejectedError{Result: rej.Quality})
		}
	}

	var body types.ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil || body.Code == "" {
		// Not one of ours, e.g. a proxy page. Let the classifier read it.
		return fmt.Errorf("HTTP %d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), bytes.TrimSpace(raw))
	}
	return &failure.ClassifiedError{
		Kind:      failure.Kind(body.Code),
		Message:   body.Message,
		Retryable: body.Retryable,
		Cause:     fmt.Errorf("HTTP %d: %s", resp.StatusCode, body.Message),
	}
}
