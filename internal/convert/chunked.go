// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/fulltext/internal/cache"
	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/internal/logging"
	"github.com/pdiddy/fulltext/internal/segment"
	"github.com/pdiddy/fulltext/pkg/types"
)

const (
	defaultPageThreshold = 100
	defaultChunkSize     = 50
	cacheNamespace       = "convert"
)

// Chunked converts PDFs of any length through a page-limited backend.
// PDFs at or above the page threshold are split into chunks that are
// converted one after another and reassembled with page markers.
type Chunked struct {
	backend   Backend
	threshold int
	chunkSize int
	defaults  Options
	cache     cache.Cache
	cacheTTL  time.Duration
	log       *zap.Logger
}

// NewChunked wraps backend. c may be nil to disable caching.
func NewChunked(backend Backend, cfg types.ConversionConfig, c cache.Cache, ttl time.Duration, log *zap.Logger) *Chunked {
	ch := &Chunked{
		backend:   backend,
		threshold: cfg.PageThreshold,
		chunkSize: cfg.ChunkSize,
		defaults:  Options{Quality: cfg.Quality, Languages: cfg.Languages, Timeout: cfg.Timeout},
		cache:     c,
		cacheTTL:  ttl,
		log:       logging.OrNop(log),
	}
	if ch.threshold <= 0 {
		ch.threshold = defaultPageThreshold
	}
	if ch.chunkSize <= 0 {
		ch.chunkSize = defaultChunkSize
	}
	return ch
}

// ConvertPDF converts data with the configured default options.
func (c *Chunked) ConvertPDF(ctx context.Context, data []byte) (string, error) {
	return c.ConvertBytes(ctx, data, c.defaults)
}

// ConvertFile reads and converts the PDF at path.
func (c *Chunked) ConvertFile(ctx context.Context, path string, opts Options) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", path)
	}
	return c.ConvertBytes(ctx, data, opts)
}

// ConvertBytes converts one PDF. Results are cached by content hash,
// quality, and languages.
func (c *Chunked) ConvertBytes(ctx context.Context, data []byte, opts Options) (string, error) {
	if !segment.IsPDF(data) {
		return "", failure.Newf(failure.ContentInvalid, "input is not a PDF (%d bytes)", len(data))
	}
	if opts.Quality == "" {
		opts.Quality = c.defaults.Quality
	}
	if len(opts.Languages) == 0 {
		opts.Languages = c.defaults.Languages
	}
	if opts.Timeout <= 0 {
		opts.Timeout = c.defaults.Timeout
	}

	sum := sha256.Sum256(data)
	key := cache.Key(hex.EncodeToString(sum[:]), string(opts.Quality), strings.Join(opts.Languages, ","))
	var md string
	if cache.GetJSON(ctx, c.cache, cacheNamespace, key, c.cacheTTL, &md) {
		c.log.Debug("conversion cache hit", zap.String("sha256", hex.EncodeToString(sum[:8])))
		return md, nil
	}

	md, err := c.convert(ctx, data, opts)
	if err != nil {
		return "", err
	}
	if err := cache.SetJSON(ctx, c.cache, cacheNamespace, key, md); err != nil {
		c.log.Warn("caching conversion", zap.Error(err))
	}
	return md, nil
}

func (c *Chunked) convert(ctx context.Context, data []byte, opts Options) (string, error) {
	if !segment.ShouldChunk(data, c.threshold) {
		return c.backend.ConvertBytes(ctx, data, opts)
	}

	chunks, err := segment.SplitByPages(data, c.chunkSize)
	if err != nil {
		return "", errors.Wrap(err, "splitting PDF")
	}
	c.log.Info("converting PDF in chunks", zap.Int("chunks", len(chunks)), zap.Int("chunk_size", c.chunkSize))

	mds := make([]string, len(chunks))
	ranges := make([]segment.PageRange, len(chunks))
	for i, ch := range chunks {
		md, err := c.backend.ConvertBytes(ctx, ch.Data, opts)
		if err != nil {
			return "", errors.Wrapf(err, "converting pages %s", ch.Pages)
		}
		mds[i] = md
		ranges[i] = ch.Pages
		c.log.Debug("chunk converted", zap.Stringer("pages", ch.Pages))
	}
	return segment.Assemble(mds, ranges), nil
}
