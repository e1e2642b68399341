// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/internal/httputil"
	"github.com/pdiddy/fulltext/internal/logging"
	"github.com/pdiddy/fulltext/pkg/types"
)

// JobState is the lifecycle state of a conversion job.
type JobState string

const (
	JobPending    JobState = "pending"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// Done reports whether the job reached a terminal state.
func (s JobState) Done() bool { return s == JobCompleted || s == JobFailed }

// JobStatus is the response of a job poll.
type JobStatus struct {
	ID       string   `json:"job_id"`
	State    JobState `json:"status"`
	Markdown string   `json:"markdown,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Health is the conversion service's self-report.
type Health struct {
	Available  bool `json:"available"`
	QueueDepth int  `json:"queue_depth"`
}

const (
	defaultPollInterval   = 5 * time.Second
	defaultConvertTimeout = 30 * time.Minute
)

// Service is a client for the GPU-backed document-conversion service. Jobs
// are submitted as multipart uploads and polled until they finish.
type Service struct {
	BaseURL      string
	UserAgent    string
	PollInterval time.Duration
	Timeout      time.Duration
	Client       *http.Client
	Log          *zap.Logger
}

// NewService returns a client for cfg.URL. An empty URL is a configuration error.
func NewService(cfg types.ConversionConfig, log *zap.Logger) (*Service, error) {
	if cfg.URL == "" {
		return nil, failure.Newf(failure.Configuration, "conversion.url is not set")
	}
	s := &Service{
		BaseURL:      strings.TrimRight(cfg.URL, "/"),
		UserAgent:    cfg.UserAgent,
		PollInterval: cfg.PollInterval,
		Timeout:      cfg.Timeout,
		Client:       &http.Client{Timeout: 5 * time.Minute},
		Log:          logging.OrNop(log),
	}
	if s.PollInterval <= 0 {
		s.PollInterval = defaultPollInterval
	}
	if s.Timeout <= 0 {
		s.Timeout = defaultConvertTimeout
	}
	return s, nil
}

// Submit uploads the PDF at pdfPath and returns the job id.
func (s *Service) Submit(ctx context.Context, pdfPath string, opts Options) (string, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", pdfPath)
	}
	return s.SubmitBytes(ctx, filepath.Base(pdfPath), data, opts)
}

// SubmitBytes uploads data under filename and returns the job id.
func (s *Service) SubmitBytes(ctx context.Context, filename string, data []byte, opts Options) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", errors.Wrap(err, "creating multipart form")
	}
	if _, err := fw.Write(data); err != nil {
		return "", errors.Wrap(err, "writing multipart form")
	}
	if opts.Quality != "" {
		_ = mw.WriteField("quality", string(opts.Quality))
	}
	if len(opts.Languages) > 0 {
		_ = mw.WriteField("languages", strings.Join(opts.Languages, ","))
	}
	if err := mw.Close(); err != nil {
		return "", errors.Wrap(err, "closing multipart form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/convert", &body)
	if err != nil {
		return "", errors.Wrap(err, "creating convert request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	s.setHeaders(req)

	var out struct {
		ID string `json:"job_id"`
	}
	if err := s.do(req, &out); err != nil {
		return "", errors.Wrap(err, "submitting conversion job")
	}
	if out.ID == "" {
		return "", errors.New("conversion service returned no job id")
	}
	s.log().Debug("conversion job submitted", zap.String("job", out.ID), zap.Int("bytes", len(data)))
	return out.ID, nil
}

// Poll returns the current status of job id.
func (s *Service) Poll(ctx context.Context, id string) (JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/jobs/"+url.PathEscape(id), nil)
	if err != nil {
		return JobStatus{}, errors.Wrap(err, "creating poll request")
	}
	s.setHeaders(req)
	var st JobStatus
	if err := s.do(req, &st); err != nil {
		return JobStatus{}, errors.Wrapf(err, "polling conversion job %s", id)
	}
	if st.ID == "" {
		st.ID = id
	}
	return st, nil
}

// Health queries the service. A connection failure reports unavailable
// without an error.
func (s *Service) Health(ctx context.Context) (Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/health", nil)
	if err != nil {
		return Health{}, errors.Wrap(err, "creating health request")
	}
	s.setHeaders(req)
	var h struct {
		Status     string `json:"status"`
		QueueDepth int    `json:"queue_depth"`
	}
	if err := s.do(req, &h); err != nil {
		if failure.Is(err, failure.Unavailable) {
			return Health{}, nil
		}
		return Health{}, err
	}
	return Health{Available: h.Status == "" || h.Status == "ok" || h.Status == "healthy", QueueDepth: h.QueueDepth}, nil
}

// Wait polls job id until it completes, fails, or the timeout elapses.
func (s *Service) Wait(ctx context.Context, id string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = s.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		st, err := s.Poll(ctx, id)
		if err != nil && !failure.Is(err, failure.Transient) {
			return "", err
		}
		if err == nil {
			switch st.State {
			case JobCompleted:
				if strings.TrimSpace(st.Markdown) == "" {
					return "", failure.Newf(failure.ContentInvalid, "conversion job %s produced empty output", id)
				}
				return st.Markdown, nil
			case JobFailed:
				return "", failure.Newf(failure.Permanent, "conversion job %s failed: %s", id, st.Error)
			}
		}
		if err := httputil.Sleep(ctx, s.PollInterval); err != nil {
			return "", failure.Mark(errors.Wrapf(err, "waiting for conversion job %s", id), failure.Transient)
		}
	}
}

// ConvertBytes submits data and waits for the markdown.
func (s *Service) ConvertBytes(ctx context.Context, data []byte, opts Options) (string, error) {
	id, err := s.SubmitBytes(ctx, "document.pdf", data, opts)
	if err != nil {
		return "", err
	}
	return s.Wait(ctx, id, opts.Timeout)
}

// Convert submits the PDF at pdfPath and waits for the markdown.
func (s *Service) Convert(ctx context.Context, pdfPath string, opts Options) (string, error) {
	id, err := s.Submit(ctx, pdfPath, opts)
	if err != nil {
		return "", err
	}
	return s.Wait(ctx, id, opts.Timeout)
}

func (s *Service) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
}

func (s *Service) do(req *http.Request, v any) error {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return httputil.Classify(err)
	}
	defer resp.Body.Close()
	if err := httputil.CheckStatus(resp, "conversion service"); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrap(err, "parsing conversion service response")
	}
	return nil
}

func (s *Service) log() *zap.Logger { return logging.OrNop(s.Log) }
