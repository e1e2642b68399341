// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download fetches documents over HTTP. PDF fetches are validated
// by magic bytes, and files are written through a temporary file that is
// renamed into place only when the body arrived completely.
package download

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/internal/httputil"
	"github.com/pdiddy/fulltext/internal/logging"
	"github.com/pdiddy/fulltext/internal/segment"
	"github.com/pdiddy/fulltext/pkg/types"
)

// MaxBytes caps a single download.
const MaxBytes = 256 << 20

// Downloader fetches documents with a shared client and User-Agent.
type Downloader struct {
	Client     *http.Client
	UserAgent  string
	MaxRetries int
	Log        *zap.Logger
}

// New returns a Downloader configured from cfg.
func New(cfg types.HTTPConfig, log *zap.Logger) *Downloader {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Downloader{
		Client:     &http.Client{Timeout: timeout},
		UserAgent:  cfg.UserAgent,
		MaxRetries: 2,
		Log:        logging.OrNop(log),
	}
}

// Bytes fetches url and returns the body.
func (d *Downloader) Bytes(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}
	req.Header.Set("Accept", "application/pdf, */*;q=0.8")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, d.MaxRetries)
	if err != nil {
		return nil, httputil.Classify(errors.Wrapf(err, "downloading %s", url))
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp, "download"); err != nil {
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			return nil, failure.Mark(errors.Wrapf(err, "downloading %s", url), failure.Permanent)
		}
		return nil, errors.Wrapf(err, "downloading %s", url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBytes+1))
	if err != nil {
		return nil, httputil.Classify(errors.Wrapf(err, "reading %s", url))
	}
	if len(data) > MaxBytes {
		return nil, failure.Newf(failure.ContentInvalid, "download from %s exceeds %d bytes", url, MaxBytes)
	}
	d.log().Debug("downloaded", zap.String("url", url), zap.Int("bytes", len(data)))
	return data, nil
}

// PDF fetches url and rejects bodies that are not PDFs.
func (d *Downloader) PDF(ctx context.Context, url string) ([]byte, error) {
	data, err := d.Bytes(ctx, url)
	if err != nil {
		return nil, err
	}
	if !segment.IsPDF(data) {
		return nil, failure.Newf(failure.ContentInvalid, "content at %s is not a PDF (%d bytes)", url, len(data))
	}
	return data, nil
}

// PDFToFile fetches a PDF from url and writes it to destPath.
func (d *Downloader) PDFToFile(ctx context.Context, url, destPath string) error {
	data, err := d.PDF(ctx, url)
	if err != nil {
		return err
	}
	return WriteFile(destPath, data)
}

func (d *Downloader) log() *zap.Logger { return logging.OrNop(d.Log) }

// WriteFile writes data to destPath via a temporary file in the same
// directory, so readers never observe a partial file.
func WriteFile(destPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", destPath)
	}
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".download-*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return errors.Wrap(writeErr, "writing download")
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return errors.Wrap(closeErr, "closing temp file")
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "renaming temp file")
	}
	return nil
}
