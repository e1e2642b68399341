package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/fulltext/internal/cache"
	"github.com/pdiddy/fulltext/internal/classify"
	"github.com/pdiddy/fulltext/internal/convert"
	"github.com/pdiddy/fulltext/internal/download"
	"github.com/pdiddy/fulltext/internal/fallback"
	"github.com/pdiddy/fulltext/internal/llm"
	"github.com/pdiddy/fulltext/internal/reference"
	"github.com/pdiddy/fulltext/internal/retrieve"
	"github.com/pdiddy/fulltext/internal/scrape"
	"github.com/pdiddy/fulltext/pkg/types"
)

// components are the services a command works with, built from cfg.
type components struct {
	cache        cache.Cache
	openalex     *reference.OpenAlex
	downloader   *download.Downloader
	converter    *convert.Chunked
	model        *llm.Client
	classifier   *classify.Classifier
	scraper      *scrape.Service
	fallback     *fallback.Client
	orchestrator *retrieve.Orchestrator

	closers []func() error
}

// Close releases the cache and the browser.
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Warn("closing component", zap.Error(err))
		}
	}
}

// openCache returns the SQLite cache at cfg.Path, or an in-memory cache
// when no path is configured.
func openCache(cfg types.CacheConfig) (cache.Cache, func() error, error) {
	if cfg.Path == "" {
		return cache.NewMemory(), func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, nil, errors.Wrap(err, "creating cache directory")
	}
	store, err := cache.Open(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// buildConverter builds the chunking converter over the configured backend.
func buildConverter(ctx context.Context, c cache.Cache) (*convert.Chunked, error) {
	backend, err := convert.NewBackend(ctx, cfg.Conversion, log)
	if err != nil {
		return nil, errors.Wrap(err, "conversion backend")
	}
	return convert.NewChunked(backend, cfg.Conversion, c, cfg.Cache.TTL, log), nil
}

// build assembles every component the retrieval and acquisition commands need.
func build(ctx context.Context) (*components, error) {
	c := &components{}
	store, closeStore, err := openCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	c.cache = store
	c.closers = append(c.closers, closeStore)

	fail := func(err error) (*components, error) {
		c.Close()
		return nil, err
	}

	c.openalex = reference.NewOpenAlex(cfg.OpenAlex, c.cache, cfg.Cache.TTL, log)
	c.downloader = download.New(cfg.Scraper.HTTPConfig, log)

	if c.converter, err = buildConverter(ctx, c.cache); err != nil {
		return fail(err)
	}

	if cfg.AI.APIKey != "" {
		if c.model, err = llm.New(cfg.AI, log); err != nil {
			return fail(err)
		}
		c.classifier = classify.New(c.model, log)
	} else {
		log.Debug("no ai.api_key: ambiguous pages are treated as full text and metadata is not extracted")
		c.classifier = classify.New(nil, log)
	}

	c.scraper, err = scrape.New(cfg.Scraper,
		scrape.WithPDFConverter(c.converter),
		scrape.WithCache(c.cache, cfg.Cache.TTL),
		scrape.WithLogger(log),
	)
	if err != nil {
		return fail(err)
	}
	c.closers = append(c.closers, c.scraper.Close)

	opts := []retrieve.Option{
		retrieve.WithResolver(c.openalex),
		retrieve.WithClassifier(c.classifier),
		retrieve.WithPDF(c.downloader, c.converter),
		retrieve.WithLogger(log),
	}
	if cfg.Fallback.URL != "" {
		if c.fallback, err = fallback.New(cfg.Fallback, log); err != nil {
			return fail(err)
		}
		opts = append(opts, retrieve.WithFallback(c.fallback))
	}
	c.orchestrator = retrieve.New(c.scraper, opts...)

	log.Debug("components ready", zap.Strings("scrape_stages", c.scraper.Stages()), zap.Bool("fallback", c.fallback != nil))
	return c, nil
}
