// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire implements the streaming acquisition pipeline: documents
// are acquired, converted to markdown, and post-processed in batches, with
// each stage working as soon as its input arrives.
//
// Acquisition pushes open-access documents immediately and waits for
// job-based ones in their own goroutines. A bounded channel between
// acquisition and conversion applies backpressure. An unbounded queue
// between conversion and post-processing keeps conversion from ever
// waiting on the model. The end of each stream is signalled only after
// every producer feeding it has returned.
package acquire

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/pdiddy/fulltext/internal/cache"
	"github.com/pdiddy/fulltext/internal/convert"
	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/internal/logging"
	"github.com/pdiddy/fulltext/pkg/types"
)

// Stage names used in reports.
const (
	StageAcquire = "acquire"
	StageConvert = "convert"
	StagePost    = "post"
)

// CacheNamespace holds finished documents keyed by reference.
const CacheNamespace = "documents"

const (
	defaultAcquirePermits = 4
	defaultQueueSize      = 8
	defaultConvertPermits = 2
	defaultPostWorkers    = 2
	defaultPostBatchSize  = 8
)

// Converter turns a downloaded file into markdown.
type Converter interface {
	ConvertFile(ctx context.Context, path string, opts convert.Options) (string, error)
}

// PostProcessor extracts metadata for a batch of documents in one call.
type PostProcessor interface {
	ExtractMetadata(ctx context.Context, docs []types.Document) (map[string]types.DocumentMetadata, error)
}

// Failure records why one item did not complete a stage.
type Failure struct {
	ID     string `json:"id" yaml:"id"`
	Stage  string `json:"stage" yaml:"stage"`
	Kind   string `json:"kind" yaml:"kind"`
	Reason string `json:"reason" yaml:"reason"`
}

// Report summarizes a pipeline run.
type Report struct {
	RunID string `json:"run_id" yaml:"run_id"`

	// Documents are in completion order.
	Documents []types.Document `json:"documents" yaml:"documents"`

	// Failures lists items that produced no document.
	Failures []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`

	// Warnings lists documents delivered without metadata.
	Warnings []Failure `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Acquired counts items that left the acquisition stage.
	Acquired  int           `json:"acquired" yaml:"acquired"`
	CacheHits int           `json:"cache_hits" yaml:"cache_hits"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Succeeded returns the number of documents produced.
func (r *Report) Succeeded() int { return len(r.Documents) }

// Pipeline runs batches of acquisition requests through the stages.
type Pipeline struct {
	source    Source
	jobs      JobSource
	converter Converter
	post      PostProcessor
	cache     cache.Cache
	cacheTTL  time.Duration
	cfg       types.PipelineConfig
	opts      types.RetrievalOptions
	onDoc     func(types.Document)
	log       *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithJobSource sets where requests without an open-access copy go.
func WithJobSource(j JobSource) Option { return func(p *Pipeline) { p.jobs = j } }

// WithPostProcessor sets the batched metadata extractor.
func WithPostProcessor(pp PostProcessor) Option { return func(p *Pipeline) { p.post = pp } }

// WithCache stores finished documents and skips references already done.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(p *Pipeline) {
		p.cache = c
		p.cacheTTL = ttl
	}
}

// WithRetrievalOptions sets the per-call timeouts and conversion options.
func WithRetrievalOptions(opts types.RetrievalOptions) Option {
	return func(p *Pipeline) { p.opts = opts }
}

// OnDocument registers fn to receive each document as it completes.
// Calls are serialized.
func OnDocument(fn func(types.Document)) Option { return func(p *Pipeline) { p.onDoc = fn } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(p *Pipeline) { p.log = logging.OrNop(l) } }

// New returns a pipeline. Zero counts in cfg take their defaults; a zero
// SubmitDelay means no delay between submissions.
func New(source Source, converter Converter, cfg types.PipelineConfig, opts ...Option) *Pipeline {
	if cfg.AcquirePermits <= 0 {
		cfg.AcquirePermits = defaultAcquirePermits
	}
	if cfg.ConversionQueueSize <= 0 {
		cfg.ConversionQueueSize = defaultQueueSize
	}
	if cfg.ConvertPermits <= 0 {
		cfg.ConvertPermits = defaultConvertPermits
	}
	if cfg.PostWorkers <= 0 {
		cfg.PostWorkers = defaultPostWorkers
	}
	if cfg.PostBatchSize <= 0 {
		cfg.PostBatchSize = defaultPostBatchSize
	}
	p := &Pipeline{source: source, converter: converter, cfg: cfg, log: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run acquires, converts, and post-processes reqs. Per-item failures are
// recorded in the report and never stop other items; Run returns an error
// only for an invalid batch.
func (p *Pipeline) Run(ctx context.Context, reqs []types.AcquisitionRequest) (*Report, error) {
	if err := validate(reqs); err != nil {
		return nil, err
	}
	start := time.Now()
	t := newTracker(uuid.NewString(), p.onDoc)
	log := p.log.With(zap.String("run", t.report.RunID))
	log.Info("pipeline started", zap.Int("requests", len(reqs)))

	pending := p.fromCache(ctx, reqs, t)

	convQ := make(chan *types.AcquisitionItem, p.cfg.ConversionQueueSize)
	postQ := newPostQueue()

	var stages sync.WaitGroup
	stages.Add(1)
	go func() {
		defer stages.Done()
		p.convertStage(ctx, convQ, postQ, t)
	}()

	postCtx, cancelPost := withTimeout(ctx, p.cfg.StageTimeout)
	defer cancelPost()
	for range p.cfg.PostWorkers {
		stages.Add(1)
		go func() {
			defer stages.Done()
			p.postWorker(postCtx, postQ, t)
		}()
	}

	p.acquireStage(ctx, pending, convQ, t)
	stages.Wait()

	report := t.finish(time.Since(start))
	log.Info("pipeline finished",
		zap.Int("documents", report.Succeeded()),
		zap.Int("failed", len(report.Failures)),
		zap.Int("cache_hits", report.CacheHits),
		zap.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

func validate(reqs []types.AcquisitionRequest) error {
	seen := make(map[string]bool, len(reqs))
	for i, r := range reqs {
		if r.ID == "" {
			return failure.Newf(failure.Configuration, "request %d has no id", i)
		}
		if seen[r.ID] {
			return failure.Newf(failure.Configuration, "duplicate request id %q", r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}

// fromCache delivers cached documents and returns the requests still to do.
func (p *Pipeline) fromCache(ctx context.Context, reqs []types.AcquisitionRequest, t *tracker) []types.AcquisitionRequest {
	if p.cache == nil {
		return reqs
	}
	var pending []types.AcquisitionRequest
	for _, req := range reqs {
		var doc types.Document
		if !cache.GetJSON(ctx, p.cache, CacheNamespace, cache.Key(req.Reference), p.cacheTTL, &doc) {
			pending = append(pending, req)
			continue
		}
		doc.ID = req.ID
		doc.Request = req
		t.cached(doc)
	}
	return pending
}

// acquireStage submits every request and closes out when all of them,
// including job polls, have finished.
func (p *Pipeline) acquireStage(ctx context.Context, reqs []types.AcquisitionRequest, out chan<- *types.AcquisitionItem, t *tracker) {
	defer close(out)

	ctx, cancel := withTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	jobs := p.jobs
	if jobs != nil && len(reqs) > 0 {
		if err := jobs.Health(ctx); err != nil {
			p.log.Warn("job source unavailable, open access only", zap.Error(err))
			jobs = nil
		}
	}

	limit := rate.Inf
	if p.cfg.SubmitDelay > 0 {
		limit = rate.Every(p.cfg.SubmitDelay)
	}
	limiter := rate.NewLimiter(limit, 1)
	sem := semaphore.NewWeighted(int64(p.cfg.AcquirePermits))

	var wg sync.WaitGroup
	for i, req := range reqs {
		err := limiter.Wait(ctx)
		if err == nil {
			err = sem.Acquire(ctx, 1)
		}
		if err != nil {
			for _, r := range reqs[i:] {
				t.fail(r.ID, StageAcquire, errors.Wrap(err, "not submitted"))
			}
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.acquireOne(ctx, req, sem, jobs, out, t)
		}()
	}
	wg.Wait()
}

// acquireOne holds one permit for the submission. An open-access item is
// pushed before the permit is released so a full conversion queue slows
// submissions. A job keeps this goroutine polling after the permit is
// released.
func (p *Pipeline) acquireOne(ctx context.Context, req types.AcquisitionRequest, sem *semaphore.Weighted, jobs JobSource, out chan<- *types.AcquisitionItem, t *tracker) {
	item, err := p.source.Acquire(ctx, req)
	if err == nil {
		p.push(ctx, item, out, t)
		sem.Release(1)
		return
	}
	if jobs == nil {
		sem.Release(1)
		t.fail(req.ID, StageAcquire, err)
		return
	}

	p.log.Info("no open-access copy, submitting job", zap.String("id", req.ID), zap.Error(err))
	jobID, err := jobs.Submit(ctx, req)
	sem.Release(1)
	if err != nil {
		t.fail(req.ID, StageAcquire, errors.Wrap(err, "submitting job"))
		return
	}

	item, err = jobs.Wait(ctx, req, jobID)
	if err != nil {
		t.fail(req.ID, StageAcquire, errors.Wrapf(err, "job %s", jobID))
		return
	}
	p.push(ctx, item, out, t)
}

func (p *Pipeline) push(ctx context.Context, item *types.AcquisitionItem, out chan<- *types.AcquisitionItem, t *tracker) {
	id := item.ID
	t.markAcquired(id)
	select {
	case out <- item:
	case <-ctx.Done():
		removeWorkFile(item)
		t.fail(id, StageAcquire, errors.Wrap(ctx.Err(), "waiting for the conversion queue"))
	}
}

// convertStage converts items as they arrive and forwards the end marker
// once every conversion has returned.
func (p *Pipeline) convertStage(ctx context.Context, in <-chan *types.AcquisitionItem, out *postQueue, t *tracker) {
	ctx, cancel := withTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	sem := semaphore.NewWeighted(int64(p.cfg.ConvertPermits))
	copts := convert.OptionsFrom(p.opts)

	var wg sync.WaitGroup
	for item := range in {
		if item.Textual {
			out.put(postEntry{item: item})
			continue
		}
		if p.converter == nil {
			removeWorkFile(item)
			t.fail(item.ID, StageConvert, failure.Newf(failure.Configuration, "no converter configured"))
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			removeWorkFile(item)
			t.fail(item.ID, StageConvert, err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			md, err := p.converter.ConvertFile(ctx, item.Path, copts)
			removeWorkFile(item)
			if err != nil {
				t.fail(item.ID, StageConvert, err)
				return
			}
			item.Markdown = md
			out.put(postEntry{item: item})
		}()
	}
	wg.Wait()
	out.put(postEntry{end: true})
}

// removeWorkFile deletes the downloaded file of an item that has left the
// conversion stage, converted or not.
func removeWorkFile(item *types.AcquisitionItem) {
	if item.Path != "" {
		os.Remove(item.Path)
	}
}

// postWorker takes one entry, drains what else is ready up to the batch
// size, and processes the batch with one call. A worker that sees the end
// marker puts it back for its siblings.
func (p *Pipeline) postWorker(ctx context.Context, q *postQueue, t *tracker) {
	for {
		e := q.get()
		if e.end {
			q.put(e)
			return
		}
		batch := []*types.AcquisitionItem{e.item}
		for len(batch) < p.cfg.PostBatchSize {
			next, ok := q.tryGet()
			if !ok {
				break
			}
			if next.end {
				q.put(next)
				break
			}
			batch = append(batch, next.item)
		}
		p.postProcess(ctx, batch, t)
	}
}

func (p *Pipeline) postProcess(ctx context.Context, batch []*types.AcquisitionItem, t *tracker) {
	docs := make([]types.Document, len(batch))
	for i, it := range batch {
		docs[i] = types.Document{ID: it.ID, Markdown: it.Markdown, Source: it.Source, Request: it.Request}
	}

	if p.post != nil {
		meta, err := p.post.ExtractMetadata(ctx, docs)
		if err != nil {
			p.log.Warn("metadata extraction failed", zap.Int("batch", len(docs)), zap.Error(err))
			for _, d := range docs {
				t.warn(d.ID, StagePost, err)
			}
		}
		for i := range docs {
			docs[i].Metadata = meta[docs[i].ID]
		}
	}

	for _, d := range docs {
		if p.cache != nil {
			if err := cache.SetJSON(ctx, p.cache, CacheNamespace, cache.Key(d.Request.Reference), d); err != nil {
				p.log.Warn("caching document failed", zap.String("id", d.ID), zap.Error(err))
			}
		}
		t.done(d)
	}
}

// tracker holds the state shared by all stage goroutines.
type tracker struct {
	mu        sync.Mutex
	acquired  map[string]bool
	failed    map[string]bool
	processed map[string]bool
	report    Report
	onDoc     func(types.Document)
}

func newTracker(runID string, onDoc func(types.Document)) *tracker {
	return &tracker{
		acquired:  map[string]bool{},
		failed:    map[string]bool{},
		processed: map[string]bool{},
		report:    Report{RunID: runID},
		onDoc:     onDoc,
	}
}

func (t *tracker) markAcquired(id string) {
	t.mu.Lock()
	t.acquired[id] = true
	t.mu.Unlock()
}

func (t *tracker) fail(id, stage string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failed[id] {
		return
	}
	t.failed[id] = true
	t.report.Failures = append(t.report.Failures, Failure{ID: id, Stage: stage, Kind: failure.KindOf(err), Reason: err.Error()})
}

func (t *tracker) warn(id, stage string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Warnings = append(t.report.Warnings, Failure{ID: id, Stage: stage, Kind: failure.KindOf(err), Reason: err.Error()})
}

func (t *tracker) cached(doc types.Document) {
	t.mu.Lock()
	t.report.CacheHits++
	t.mu.Unlock()
	t.done(doc)
}

func (t *tracker) done(doc types.Document) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.processed[doc.ID] {
		return
	}
	t.processed[doc.ID] = true
	t.report.Documents = append(t.report.Documents, doc)
	if t.onDoc != nil {
		t.onDoc(doc)
	}
}

func (t *tracker) finish(elapsed time.Duration) *Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.report
	r.Acquired = len(t.acquired)
	r.Elapsed = elapsed
	return &r
}
