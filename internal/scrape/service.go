// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scrape fetches web pages as markdown through an ordered cascade
// of providers: a self-hosted scrape API, the cloud API behind a stealth
// proxy, and a headless browser. Interstitial pages fall through to the
// next stage, transient local failures are retried, and domains the
// stealth stage is refused on go straight to the browser afterwards.
package scrape

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/fulltext/internal/cache"
	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/internal/httputil"
	"github.com/pdiddy/fulltext/internal/logging"
	"github.com/pdiddy/fulltext/pkg/types"
)

// Stage names, also used as ScrapeResult.Provider.
const (
	StageLocal        = "local"
	StageCloudStealth = "cloud-stealth"
	StageBrowser      = "browser"
)

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 2 * time.Second
	cacheNamespace      = "scrape"
)

// Provider fetches one page.
type Provider interface {
	Scrape(ctx context.Context, pageURL string) (types.ScrapeResult, error)
}

// Stage is one entry of the cascade priority list.
type Stage struct {
	Name     string
	Provider Provider
}

// Attempt records one stage's failure.
type Attempt struct {
	Stage  string
	Reason string
	Err    error
}

// CascadeError reports that every stage failed for a URL.
type CascadeError struct {
	URL      string
	Attempts []Attempt
}

func (e *CascadeError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("scraping %s: no stage available", e.URL)
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Stage + ": " + a.Reason
	}
	return fmt.Sprintf("scraping %s failed: %s", e.URL, strings.Join(parts, "; "))
}

// Service runs the cascade. It owns a Blocklist for its whole lifetime.
type Service struct {
	stages      []Stage
	blocklist   *Blocklist
	cache       cache.Cache
	cacheTTL    time.Duration
	maxAttempts int
	backoff     time.Duration
	navigator   Navigator
	pdf         PDFConverter
	log         *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithNavigator sets the headless browser used by the browser stage.
func WithNavigator(n Navigator) Option { return func(s *Service) { s.navigator = n } }

// WithPDFConverter sets the converter for downloads captured by the browser.
func WithPDFConverter(p PDFConverter) Option { return func(s *Service) { s.pdf = p } }

// WithCache enables result caching.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) { s.cache, s.cacheTTL = c, ttl }
}

// WithBlocklist shares a blocklist instead of creating a fresh one.
func WithBlocklist(b *Blocklist) Option { return func(s *Service) { s.blocklist = b } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = logging.OrNop(l) } }

// WithStages replaces the configured priority list.
func WithStages(stages ...Stage) Option { return func(s *Service) { s.stages = stages } }

// New builds the cascade from configuration. Stages without a URL are left
// out; a cloud URL without an API key or an empty cascade is a
// configuration error.
func New(cfg types.ScraperConfig, opts ...Option) (*Service, error) {
	s := &Service{
		blocklist:   NewBlocklist(),
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.RetryBackoff,
		log:         zap.NewNop(),
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.backoff <= 0 {
		s.backoff = defaultRetryBackoff
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	// The HTTP client waits a little longer than the provider's own page timeout.
	client := &http.Client{Timeout: timeout + 15*time.Second}

	if cfg.LocalURL != "" && !cfg.SkipLocal {
		s.stages = append(s.stages, Stage{Name: StageLocal, Provider: &Firecrawl{
			BaseURL: cfg.LocalURL, UserAgent: cfg.UserAgent, Timeout: timeout, Client: client,
		}})
	}
	if cfg.CloudURL != "" {
		if cfg.APIKey == "" {
			return nil, failure.Newf(failure.Configuration, "scraper.cloud_url is set but scraper.api_key is empty")
		}
		s.stages = append(s.stages, Stage{Name: StageCloudStealth, Provider: &Firecrawl{
			BaseURL: cfg.CloudURL, APIKey: cfg.APIKey, UserAgent: cfg.UserAgent, Stealth: true, Timeout: timeout, Client: client,
		}})
	}

	for _, o := range opts {
		o(s)
	}

	hasStages := len(s.stages) > 0
	if cfg.Browser || s.navigator != nil {
		if s.navigator == nil {
			s.navigator = NewRodNavigator(cfg.BrowserURL, s.log)
		}
		if !hasBrowserStage(s.stages) {
			s.stages = append(s.stages, Stage{Name: StageBrowser, Provider: NewBrowser(s.navigator, s.pdf, cfg.NavigationTimeout)})
		}
		hasStages = true
	}
	if !hasStages {
		return nil, failure.Newf(failure.Configuration, "no scrape stage configured: set scraper.local_url, scraper.cloud_url, or scraper.browser")
	}
	return s, nil
}

func hasBrowserStage(stages []Stage) bool {
	for _, st := range stages {
		if st.Name == StageBrowser {
			return true
		}
	}
	return false
}

// Blocklist returns the service's domain blocklist.
func (s *Service) Blocklist() *Blocklist { return s.blocklist }

// Stages returns the names of the configured stages in trial order.
func (s *Service) Stages() []string {
	names := make([]string, len(s.stages))
	for i, st := range s.stages {
		names[i] = st.Name
	}
	return names
}

// Close releases the browser if the service launched one.
func (s *Service) Close() error {
	if c, ok := s.navigator.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Scrape runs the cascade for pageURL. timeout bounds each stage attempt;
// zero leaves it to the providers. On total failure the error is a
// *CascadeError.
func (s *Service) Scrape(ctx context.Context, pageURL string, timeout time.Duration) (types.ScrapeResult, error) {
	key := cache.Key(pageURL)
	var cached types.ScrapeResult
	if cache.GetJSON(ctx, s.cache, cacheNamespace, key, s.cacheTTL, &cached) {
		s.log.Debug("scrape cache hit", zap.String("url", pageURL))
		return cached, nil
	}

	domain := Domain(pageURL)
	stages := s.stages
	cerr := &CascadeError{URL: pageURL}
	if s.blocklist.Contains(domain) {
		stages = nil
		for _, st := range s.stages {
			if st.Name == StageBrowser {
				stages = append(stages, st)
			}
		}
		cerr.Attempts = append(cerr.Attempts, Attempt{Stage: "blocklist", Reason: "domain " + domain + " is blocklisted"})
		s.log.Debug("domain blocklisted, skipping to browser", zap.String("domain", domain))
	}

	for _, st := range stages {
		var res types.ScrapeResult
		var err error
		if st.Name == StageLocal {
			res, err = s.scrapeWithRetry(ctx, st, pageURL, timeout)
		} else {
			res, err = s.scrapeOnce(ctx, st, pageURL, timeout)
		}

		if err != nil {
			if ctx.Err() != nil {
				cerr.Attempts = append(cerr.Attempts, Attempt{Stage: st.Name, Reason: ctx.Err().Error(), Err: ctx.Err()})
				return types.ScrapeResult{}, cerr
			}
			cerr.Attempts = append(cerr.Attempts, Attempt{Stage: st.Name, Reason: failure.KindOf(err) + ": " + err.Error(), Err: err})
			if st.Name == StageCloudStealth && failure.Is(err, ErrBlocked) {
				s.block(domain, err.Error())
			}
			s.log.Info("scrape stage failed",
				zap.String("stage", st.Name),
				zap.String("url", pageURL),
				zap.String("kind", failure.KindOf(err)),
				zap.Error(err),
			)
			continue
		}

		if blocked, reason := Blocked(res.Markdown); blocked && !res.FromDownload {
			cerr.Attempts = append(cerr.Attempts, Attempt{Stage: st.Name, Reason: "blocked: " + reason})
			if st.Name == StageCloudStealth {
				s.block(domain, reason)
			}
			s.log.Info("scrape stage returned blocked content",
				zap.String("stage", st.Name),
				zap.String("url", pageURL),
				zap.String("reason", reason),
			)
			continue
		}

		res.URL = pageURL
		res.Provider = st.Name
		if err := cache.SetJSON(ctx, s.cache, cacheNamespace, key, res); err != nil {
			s.log.Warn("caching scrape result", zap.String("url", pageURL), zap.Error(err))
		}
		return res, nil
	}
	return types.ScrapeResult{}, cerr
}

func (s *Service) block(domain, reason string) {
	if s.blocklist.Add(domain) {
		s.log.Info("domain added to blocklist", zap.String("domain", domain), zap.String("reason", reason))
	}
}

func (s *Service) scrapeOnce(ctx context.Context, st Stage, pageURL string, timeout time.Duration) (types.ScrapeResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return st.Provider.Scrape(ctx, pageURL)
}

// scrapeWithRetry retries transient failures with exponential backoff.
// Unavailable and other failures return at once.
func (s *Service) scrapeWithRetry(ctx context.Context, st Stage, pageURL string, timeout time.Duration) (types.ScrapeResult, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := httputil.Backoff(attempt-1, s.backoff)
			s.log.Debug("retrying scrape stage",
				zap.String("stage", st.Name),
				zap.String("url", pageURL),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			if err := httputil.Sleep(ctx, backoff); err != nil {
				return types.ScrapeResult{}, err
			}
		}

		res, err := s.scrapeOnce(ctx, st, pageURL, timeout)
		if err == nil {
			return res, nil
		}
		err = httputil.Classify(err)
		lastErr = err
		if !failure.Is(err, failure.Transient) || failure.Is(err, failure.Unavailable) {
			return types.ScrapeResult{}, err
		}
	}
	return types.ScrapeResult{}, lastErr
}
