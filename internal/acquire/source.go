// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/fulltext/internal/convert"
	"github.com/pdiddy/fulltext/internal/download"
	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/internal/fallback"
	"github.com/pdiddy/fulltext/internal/logging"
	"github.com/pdiddy/fulltext/internal/reference"
	"github.com/pdiddy/fulltext/internal/segment"
	"github.com/pdiddy/fulltext/pkg/types"
)

// Item sources label what they produce.
const (
	SourceOpenAccess  = "open_access"
	SourceWeb         = "web"
	SourceFallbackJob = "fallback_job"
)

// ErrNotOpenAccess reports that no open-access copy was found. The
// pipeline hands such requests to its JobSource.
var ErrNotOpenAccess = failure.Mark(errors.New("no open-access copy"), failure.Permanent)

// Source acquires a document immediately or reports that it cannot.
type Source interface {
	Acquire(ctx context.Context, req types.AcquisitionRequest) (*types.AcquisitionItem, error)
}

// JobSource acquires documents through long-running jobs. Submit returns
// quickly; Wait blocks until the job's document is available.
type JobSource interface {
	Health(ctx context.Context) error
	Submit(ctx context.Context, req types.AcquisitionRequest) (string, error)
	Wait(ctx context.Context, req types.AcquisitionRequest, jobID string) (*types.AcquisitionItem, error)
}

// Resolver finds open-access locations for a DOI.
type Resolver interface {
	Resolve(ctx context.Context, doi string) (link string, isPDF bool, err error)
}

// PDFFetcher downloads a PDF and rejects anything else.
type PDFFetcher interface {
	PDF(ctx context.Context, url string) ([]byte, error)
}

// Retriever fetches a page as markdown through the scrape and classify path.
type Retriever interface {
	GetURL(ctx context.Context, ref string, opts types.RetrievalOptions) (*types.RetrievalResult, error)
}

// OpenAccessSource resolves references to open-access copies. PDFs are
// downloaded into the work directory and need conversion; web pages come
// back from the retriever as markdown.
type OpenAccessSource struct {
	resolver  Resolver
	fetcher   PDFFetcher
	retriever Retriever
	workDir   string
	opts      types.RetrievalOptions
	log       *zap.Logger
}

// NewOpenAccessSource returns a source writing downloads under workDir.
// resolver and retriever may be nil.
func NewOpenAccessSource(resolver Resolver, fetcher PDFFetcher, retriever Retriever, workDir string, opts types.RetrievalOptions, log *zap.Logger) *OpenAccessSource {
	// The slow fallback belongs to the pipeline's JobSource.
	opts.EnableFallback = false
	return &OpenAccessSource{
		resolver:  resolver,
		fetcher:   fetcher,
		retriever: retriever,
		workDir:   workDir,
		opts:      opts,
		log:       logging.OrNop(log),
	}
}

// Acquire implements Source.
func (s *OpenAccessSource) Acquire(ctx context.Context, req types.AcquisitionRequest) (*types.AcquisitionItem, error) {
	idType, norm := Classify(req.Reference)
	log := s.log.With(zap.String("id", req.ID), zap.Stringer("type", idType))

	switch idType {
	case TypeUnknown:
		return nil, failure.Newf(failure.Permanent, "%s: %q is not a DOI, arXiv ID, or URL", req.ID, req.Reference)

	case TypeArxiv:
		return s.download(ctx, req, PDFURL(idType, norm))

	case TypeDOI:
		if link, ok := s.resolvePDF(ctx, norm); ok {
			item, err := s.download(ctx, req, link)
			if err == nil {
				return item, nil
			}
			log.Info("open-access PDF unusable, trying web", zap.String("url", link), zap.Error(err))
		}

	case TypeURL:
		if link := PDFURL(idType, norm); link != "" {
			return s.download(ctx, req, link)
		}
	}

	if s.retriever == nil {
		return nil, errors.Wrapf(ErrNotOpenAccess, "%s", req.ID)
	}
	return s.web(ctx, req)
}

func (s *OpenAccessSource) resolvePDF(ctx context.Context, doi string) (string, bool) {
	if s.resolver == nil {
		return "", false
	}
	ctx, cancel := withTimeout(ctx, s.opts.LookupTimeout)
	defer cancel()
	link, isPDF, err := s.resolver.Resolve(ctx, doi)
	if err != nil {
		s.log.Debug("open-access lookup failed", zap.String("doi", doi), zap.Error(err))
		return "", false
	}
	return link, isPDF && link != ""
}

func (s *OpenAccessSource) download(ctx context.Context, req types.AcquisitionRequest, link string) (*types.AcquisitionItem, error) {
	data, err := s.fetcher.PDF(ctx, link)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: downloading %s", req.ID, link)
	}
	path, err := writeWorkFile(s.workDir, req.ID, data)
	if err != nil {
		return nil, err
	}
	s.log.Info("open-access PDF acquired", zap.String("id", req.ID), zap.String("url", link), zap.Int("bytes", len(data)))
	return &types.AcquisitionItem{ID: req.ID, Path: path, Request: req, Source: SourceOpenAccess}, nil
}

func (s *OpenAccessSource) web(ctx context.Context, req types.AcquisitionRequest) (*types.AcquisitionItem, error) {
	res, err := s.retriever.GetURL(ctx, req.Reference, s.opts)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "%s", req.ID), ErrNotOpenAccess)
	}
	if res.Classification != nil && res.Classification.Class == types.ClassPaywall {
		return nil, errors.Wrapf(ErrNotOpenAccess, "%s: paywalled", req.ID)
	}
	return &types.AcquisitionItem{ID: req.ID, Markdown: res.Markdown, Textual: true, Request: req, Source: SourceWeb}, nil
}

// FallbackJobs is a JobSource backed by the slow fallback service.
type FallbackJobs struct {
	client  *fallback.Client
	workDir string
	timeout time.Duration
}

// NewFallbackJobs returns a JobSource writing retrieved files under workDir.
// timeout bounds each job; zero uses the client's default.
func NewFallbackJobs(client *fallback.Client, workDir string, timeout time.Duration) *FallbackJobs {
	return &FallbackJobs{client: client, workDir: workDir, timeout: timeout}
}

// Health implements JobSource.
func (f *FallbackJobs) Health(ctx context.Context) error { return f.client.Health(ctx) }

// Submit implements JobSource. The service needs a DOI.
func (f *FallbackJobs) Submit(ctx context.Context, req types.AcquisitionRequest) (string, error) {
	info, ok := reference.Detect(req.Reference)
	if !ok {
		return "", failure.Newf(failure.Permanent, "%s: no DOI to submit to the fallback service", req.ID)
	}
	return f.client.Submit(ctx, fallback.Request{Identifier: info.DOI, Title: req.Title, Authors: req.Authors}, f.timeout)
}

// Wait implements JobSource.
func (f *FallbackJobs) Wait(ctx context.Context, req types.AcquisitionRequest, jobID string) (*types.AcquisitionItem, error) {
	if _, err := f.client.Wait(ctx, jobID, f.timeout); err != nil {
		return nil, err
	}
	data, err := f.client.Download(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !segment.IsPDF(data) {
		return nil, failure.Newf(failure.ContentInvalid, "%s: fallback job %s returned no PDF", req.ID, jobID)
	}
	path, err := writeWorkFile(f.workDir, req.ID, data)
	if err != nil {
		return nil, err
	}
	return &types.AcquisitionItem{ID: req.ID, Path: path, Request: req, Source: SourceFallbackJob}, nil
}

func writeWorkFile(dir, id string, data []byte) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, convert.Slug(id)+".pdf")
	if err := download.WriteFile(path, data); err != nil {
		return "", errors.Wrapf(err, "%s: saving download", id)
	}
	return path, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
