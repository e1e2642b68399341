// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieve turns a single reference (DOI, resolver URL, publisher
// URL, or PDF link) into markdown. GetURL walks identifier detection,
// open-access resolution, direct PDF conversion, scraping, classification
// and the slow fallback service, recording every branch it takes in the
// result's audit trail.
package retrieve

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/fulltext/internal/classify"
	"github.com/pdiddy/fulltext/internal/convert"
	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/internal/fallback"
	"github.com/pdiddy/fulltext/internal/logging"
	"github.com/pdiddy/fulltext/internal/reference"
	"github.com/pdiddy/fulltext/pkg/types"
)

// Audit trail labels.
const (
	LabelDOIDetected           = "doi_detected"
	LabelOAResolved            = "oa_resolved"
	LabelDOIURLFallback        = "doi_url_fallback"
	LabelPDFDirect             = "pdf_direct"
	LabelPDFDirectFailed       = "pdf_direct_failed"
	LabelScraperService        = "scraper_service"
	LabelScrapeFailed          = "scrape_failed"
	LabelDOIFromContent        = "doi_from_content"
	LabelClassifiedPrefix      = "classified:"
	LabelPDFFromAbstract       = "pdf_from_abstract"
	LabelPDFFromAbstractFailed = "pdf_from_abstract_failed"
	LabelPaywallDetected       = "paywall_detected"
	LabelDOIFromTitle          = "doi_from_title"
	LabelFallbackService       = "fallback_service"
)

// Resolver looks up open-access locations and identifiers.
type Resolver interface {
	Resolve(ctx context.Context, doi string) (link string, isPDF bool, err error)
	FindDOI(ctx context.Context, title string, authors []string) (string, bool, error)
}

// Scraper fetches a web page as markdown.
type Scraper interface {
	Scrape(ctx context.Context, pageURL string, timeout time.Duration) (types.ScrapeResult, error)
}

// Classifier classifies scraped content. It never fails.
type Classifier interface {
	Classify(ctx context.Context, item classify.Item) types.ClassificationResult
}

// PDFFetcher downloads a PDF and rejects anything else.
type PDFFetcher interface {
	PDF(ctx context.Context, url string) ([]byte, error)
}

// Converter converts PDF bytes to markdown.
type Converter interface {
	ConvertBytes(ctx context.Context, data []byte, opts convert.Options) (string, error)
}

// Fallback is the slow retrieval service.
type Fallback interface {
	Health(ctx context.Context) error
	Fetch(ctx context.Context, r fallback.Request, timeout time.Duration) ([]byte, error)
}

// Error reports a total failure. It carries the trail so the caller can
// see every path that was tried.
type Error struct {
	Reference string
	Trail     []string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("retrieving %s failed after [%s]: %v", e.Reference, strings.Join(e.Trail, ", "), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Orchestrator runs GetURL. Only the scraper is required; the other
// collaborators are optional and their branches are skipped when unset.
type Orchestrator struct {
	scraper    Scraper
	resolver   Resolver
	classifier Classifier
	fetcher    PDFFetcher
	converter  Converter
	fallback   Fallback
	log        *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithResolver sets the open-access resolver.
func WithResolver(r Resolver) Option { return func(o *Orchestrator) { o.resolver = r } }

// WithClassifier sets the content classifier.
func WithClassifier(c Classifier) Option { return func(o *Orchestrator) { o.classifier = c } }

// WithPDF sets the PDF download and conversion path.
func WithPDF(f PDFFetcher, c Converter) Option {
	return func(o *Orchestrator) { o.fetcher, o.converter = f, c }
}

// WithFallback sets the slow fallback service.
func WithFallback(f Fallback) Option { return func(o *Orchestrator) { o.fallback = f } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(o *Orchestrator) { o.log = logging.OrNop(l) } }

// New returns an orchestrator around scraper.
func New(scraper Scraper, opts ...Option) *Orchestrator {
	o := &Orchestrator{scraper: scraper, log: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// retrieval is the state of one GetURL call.
type retrieval struct {
	res  *types.RetrievalResult
	opts types.RetrievalOptions
	doi  string
}

func (r *retrieval) add(label string) { r.res.Trail = append(r.res.Trail, label) }

// GetURL retrieves reference as markdown. On total failure it returns the
// partial result together with an *Error; both carry the trail.
func (o *Orchestrator) GetURL(ctx context.Context, ref string, opts types.RetrievalOptions) (*types.RetrievalResult, error) {
	r := &retrieval{res: &types.RetrievalResult{Reference: ref, Trail: []string{}}, opts: opts}
	ref = strings.TrimSpace(ref)
	target := ref
	targetIsPDF := false

	if info, ok := reference.Detect(ref); ok {
		r.doi = info.DOI
		r.res.DOI = info.DOI
		r.add(LabelDOIDetected)
		target = info.URL
		if link, isPDF, ok := o.resolve(ctx, r); ok {
			target, targetIsPDF = link, isPDF
			r.add(LabelOAResolved)
		} else {
			r.add(LabelDOIURLFallback)
		}
	}
	r.res.URL = target

	if !isHTTPURL(target) {
		return r.res, o.fail(r, failure.Newf(failure.Permanent, "%q is neither a DOI nor an http(s) URL", ref))
	}

	if targetIsPDF || looksLikePDF(target) {
		r.add(LabelPDFDirect)
		md, err := o.fetchAndConvert(ctx, target, opts)
		if err == nil {
			return o.succeed(r, md, types.SourcePDFDirect), nil
		}
		o.log.Info("direct PDF failed", zap.String("url", target), zap.Error(err))
		r.add(LabelPDFDirectFailed)
		return o.slowFallback(ctx, r, "", nil, err)
	}

	r.add(LabelScraperService)
	sr, err := o.scrape(ctx, target, opts)
	if err != nil {
		o.log.Info("scrape failed", zap.String("url", target), zap.Error(err))
		r.add(LabelScrapeFailed)
		return o.slowFallback(ctx, r, "", nil, err)
	}
	if sr.URL != "" {
		r.res.URL = sr.URL
	}

	if r.doi == "" {
		if doi, ok := reference.FromContent(sr.Markdown); ok {
			r.doi = doi
			r.res.DOI = doi
			r.add(LabelDOIFromContent)
		}
	}

	if !opts.EnableClassification || o.classifier == nil {
		return o.succeed(r, sr.Markdown, types.SourceScraped), nil
	}

	cls := o.classifier.Classify(ctx, classify.Item{
		ID:       ref,
		URL:      r.res.URL,
		Markdown: sr.Markdown,
		Links:    sr.Links,
		DOI:      r.doi,
	})
	r.res.Classification = &cls
	r.add(LabelClassifiedPrefix + string(cls.Class))

	switch cls.Class {
	case types.ClassAbstractWithPDF:
		if cls.PDFURL == "" {
			r.add(LabelPDFFromAbstractFailed)
			return o.slowFallback(ctx, r, cls.Title, cls.Authors, errors.New("abstract page without a usable PDF link"))
		}
		r.add(LabelPDFFromAbstract)
		md, err := o.fetchAndConvert(ctx, cls.PDFURL, opts)
		if err == nil {
			r.res.URL = cls.PDFURL
			return o.succeed(r, md, types.SourcePDFFromAbstract), nil
		}
		o.log.Info("PDF linked from abstract failed", zap.String("pdf_url", cls.PDFURL), zap.Error(err))
		r.add(LabelPDFFromAbstractFailed)
		return o.slowFallback(ctx, r, cls.Title, cls.Authors, err)

	case types.ClassPaywall:
		r.add(LabelPaywallDetected)
		if r.doi == "" && cls.Title != "" && o.resolver != nil {
			o.findDOI(ctx, r, cls.Title, cls.Authors)
		}
		return o.slowFallback(ctx, r, cls.Title, cls.Authors, errors.Newf("paywalled content at %s", r.res.URL))
	}
	return o.succeed(r, sr.Markdown, types.SourceScraped), nil
}

func (o *Orchestrator) resolve(ctx context.Context, r *retrieval) (string, bool, bool) {
	if o.resolver == nil {
		return "", false, false
	}
	ctx, cancel := withTimeout(ctx, r.opts.LookupTimeout)
	defer cancel()
	link, isPDF, err := o.resolver.Resolve(ctx, r.doi)
	if err != nil {
		o.log.Info("open-access lookup failed", zap.String("doi", r.doi), zap.Error(err))
		return "", false, false
	}
	return link, isPDF, link != ""
}

func (o *Orchestrator) findDOI(ctx context.Context, r *retrieval, title string, authors []string) {
	ctx, cancel := withTimeout(ctx, r.opts.LookupTimeout)
	defer cancel()
	doi, ok, err := o.resolver.FindDOI(ctx, title, authors)
	if err != nil {
		o.log.Info("identifier lookup by title failed", zap.String("title", title), zap.Error(err))
		return
	}
	if ok {
		r.doi = doi
		r.res.DOI = doi
		r.add(LabelDOIFromTitle)
	}
}

func (o *Orchestrator) scrape(ctx context.Context, target string, opts types.RetrievalOptions) (types.ScrapeResult, error) {
	if o.scraper == nil {
		return types.ScrapeResult{}, failure.Newf(failure.Configuration, "no scraper configured")
	}
	return o.scraper.Scrape(ctx, target, opts.ScrapeTimeout)
}

func (o *Orchestrator) fetchAndConvert(ctx context.Context, pdfURL string, opts types.RetrievalOptions) (string, error) {
	if o.fetcher == nil || o.converter == nil {
		return "", failure.Newf(failure.Configuration, "no PDF conversion path configured")
	}
	data, err := o.fetcher.PDF(ctx, pdfURL)
	if err != nil {
		return "", err
	}
	return o.converter.ConvertBytes(ctx, data, convert.OptionsFrom(opts))
}

// slowFallback is the last resort. It runs only with a known identifier,
// fallback enabled, and a healthy service; an unhealthy service adds no
// trail label. cause is the failure that led here.
func (o *Orchestrator) slowFallback(ctx context.Context, r *retrieval, title string, authors []string, cause error) (*types.RetrievalResult, error) {
	switch {
	case r.doi == "":
		return r.res, o.fail(r, errors.Wrap(cause, "no identifier for the fallback service"))
	case !r.opts.EnableFallback || o.fallback == nil:
		return r.res, o.fail(r, cause)
	}

	if err := o.fallback.Health(ctx); err != nil {
		o.log.Info("fallback service unavailable", zap.String("doi", r.doi), zap.Error(err))
		return r.res, o.fail(r, errors.CombineErrors(cause, err))
	}

	r.add(LabelFallbackService)
	data, err := o.fallback.Fetch(ctx, fallback.Request{Identifier: r.doi, Title: title, Authors: authors}, r.opts.FallbackTimeout)
	if err != nil {
		return r.res, o.fail(r, errors.Wrap(err, "fallback service"))
	}
	if o.converter == nil {
		return r.res, o.fail(r, failure.Newf(failure.Configuration, "no PDF converter configured"))
	}
	md, err := o.converter.ConvertBytes(ctx, data, convert.OptionsFrom(r.opts))
	if err != nil {
		return r.res, o.fail(r, errors.Wrap(err, "converting fallback document"))
	}
	return o.succeed(r, md, types.SourceSlowFallback), nil
}

func (o *Orchestrator) succeed(r *retrieval, md string, src types.ContentSource) *types.RetrievalResult {
	r.res.Markdown = md
	r.res.Source = src
	o.log.Debug("retrieval succeeded",
		zap.String("reference", r.res.Reference),
		zap.String("source", string(src)),
		zap.Strings("trail", r.res.Trail),
	)
	return r.res
}

func (o *Orchestrator) fail(r *retrieval, cause error) error {
	if cause == nil {
		cause = errors.New("no retrieval path succeeded")
	}
	o.log.Warn("retrieval failed",
		zap.String("reference", r.res.Reference),
		zap.Strings("trail", r.res.Trail),
		zap.Error(cause),
	)
	return &Error{Reference: r.res.Reference, Trail: append([]string(nil), r.res.Trail...), Err: cause}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// looksLikePDF reports whether the URL path names a PDF file.
func looksLikePDF(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}
