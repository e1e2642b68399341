// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fallback is the client for the slow retrieval service that sits
// behind the institutional VPN. Jobs take minutes: a job is submitted with
// the identifier and optional title and authors, polled until it finishes,
// and the retrieved file is downloaded once.
package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/internal/httputil"
	"github.com/pdiddy/fulltext/internal/logging"
	"github.com/pdiddy/fulltext/internal/segment"
	"github.com/pdiddy/fulltext/pkg/types"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultJobTimeout   = 10 * time.Minute
	maxFileBytes        = 256 << 20
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is the response of a job poll.
type Job struct {
	ID     string `json:"job_id"`
	Status Status `json:"status"`
	File   string `json:"file,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Request identifies the document to retrieve.
type Request struct {
	Identifier string
	Title      string
	Authors    []string
}

// Client talks to the fallback service.
type Client struct {
	BaseURL      string
	Token        string
	UserAgent    string
	PollInterval time.Duration
	JobTimeout   time.Duration
	Client       *http.Client
	Log          *zap.Logger
}

// New returns a client for cfg.URL. An empty URL is a configuration error.
func New(cfg types.FallbackConfig, log *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, failure.Newf(failure.Configuration, "fallback.url is not set")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		BaseURL:      strings.TrimRight(cfg.URL, "/"),
		Token:        cfg.Token,
		UserAgent:    cfg.UserAgent,
		PollInterval: cfg.PollInterval,
		JobTimeout:   cfg.JobTimeout,
		Client:       &http.Client{Timeout: timeout},
		Log:          logging.OrNop(log),
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}
	return c, nil
}

// Health returns nil when the service answers and reports itself healthy.
// Off the VPN the service is unreachable and the error is marked
// failure.Unavailable.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return errors.Wrap(err, "fallback service health")
	}
	if out.Status != "" && out.Status != "ok" && out.Status != "healthy" {
		return failure.Newf(failure.Unavailable, "fallback service reports %q", out.Status)
	}
	return nil
}

// Submit starts a job and returns its id. timeout is forwarded as the
// job's own deadline.
func (c *Client) Submit(ctx context.Context, r Request, timeout time.Duration) (string, error) {
	if r.Identifier == "" {
		return "", errors.New("fallback submit: identifier is required")
	}
	if timeout <= 0 {
		timeout = c.JobTimeout
	}
	payload, err := json.Marshal(struct {
		Identifier string   `json:"identifier"`
		Title      string   `json:"title,omitempty"`
		Authors    []string `json:"authors,omitempty"`
		Timeout    int      `json:"timeout_seconds"`
	}{r.Identifier, r.Title, r.Authors, int(timeout.Seconds())})
	if err != nil {
		return "", errors.Wrap(err, "marshaling fallback job")
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/jobs", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out Job
	if err := c.doJSON(req, &out); err != nil {
		return "", errors.Wrap(err, "submitting fallback job")
	}
	if out.ID == "" {
		return "", errors.New("fallback service returned no job id")
	}
	c.log().Info("fallback job submitted", zap.String("job", out.ID), zap.String("identifier", r.Identifier))
	return out.ID, nil
}

// Poll returns the job's current state.
func (c *Client) Poll(ctx context.Context, id string) (Job, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil)
	if err != nil {
		return Job{}, err
	}
	var j Job
	if err := c.doJSON(req, &j); err != nil {
		return Job{}, errors.Wrapf(err, "polling fallback job %s", id)
	}
	if j.ID == "" {
		j.ID = id
	}
	return j, nil
}

// Wait polls job id until it completes or fails. Transient poll errors
// are retried until timeout.
func (c *Client) Wait(ctx context.Context, id string, timeout time.Duration) (Job, error) {
	if timeout <= 0 {
		timeout = c.JobTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		j, err := c.Poll(ctx, id)
		switch {
		case err != nil && !failure.Is(err, failure.Transient):
			return Job{}, err
		case err == nil && j.Status == StatusCompleted:
			return j, nil
		case err == nil && j.Status == StatusFailed:
			return j, failure.Newf(failure.Permanent, "fallback job %s failed: %s", id, j.Error)
		}
		if err := httputil.Sleep(ctx, c.PollInterval); err != nil {
			return Job{}, failure.Mark(errors.Wrapf(err, "waiting for fallback job %s", id), failure.Transient)
		}
	}
}

// Download returns the file a completed job retrieved.
func (c *Client) Download(ctx context.Context, id string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id)+"/file", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return nil, httputil.Classify(errors.Wrapf(err, "downloading fallback job %s", id))
	}
	defer resp.Body.Close()
	if err := httputil.CheckStatus(resp, "fallback service"); err != nil {
		return nil, errors.Wrapf(err, "downloading fallback job %s", id)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes))
	if err != nil {
		return nil, httputil.Classify(errors.Wrapf(err, "reading fallback job %s", id))
	}
	return data, nil
}

// Fetch runs a whole job: submit, wait, download. Bytes that are not a PDF
// are rejected.
func (c *Client) Fetch(ctx context.Context, r Request, timeout time.Duration) ([]byte, error) {
	id, err := c.Submit(ctx, r, timeout)
	if err != nil {
		return nil, err
	}
	if _, err := c.Wait(ctx, id, timeout); err != nil {
		return nil, err
	}
	data, err := c.Download(ctx, id)
	if err != nil {
		return nil, err
	}
	if !segment.IsPDF(data) {
		return nil, failure.Newf(failure.ContentInvalid, "fallback job %s returned %d bytes that are not a PDF", id, len(data))
	}
	c.log().Info("fallback job retrieved document", zap.String("job", id), zap.Int("bytes", len(data)))
	return data, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "creating fallback request")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	return req, nil
}

func (c *Client) doJSON(req *http.Request, v any) error {
	resp, err := c.client().Do(req)
	if err != nil {
		return httputil.Classify(err)
	}
	defer resp.Body.Close()
	if err := httputil.CheckStatus(resp, "fallback service"); err != nil {
		return err
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(v), "parsing fallback response")
}

func (c *Client) client() *http.Client {
	if c.Client == nil {
		return http.DefaultClient
	}
	return c.Client
}

func (c *Client) log() *zap.Logger { return logging.OrNop(c.Log) }
