// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify decides whether a scraped page is full text, an abstract
// with a PDF link, a paywall, or not academic. Cheap heuristics run first;
// a structured model call decides only what the heuristics leave open.
package classify

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/internal/logging"
	"github.com/pdiddy/fulltext/pkg/types"
)

// Model-call bounds.
const (
	MaxPreviewChars = 6000
	MaxLinks        = 40
	MaxPDFURLLength = 2048

	// fallbackConfidence is reported when the model call fails and the
	// page is kept as full text.
	fallbackConfidence = 0.3

	// noModelConfidence is reported when no model is configured.
	noModelConfidence = 0.5
)

// Item is one page to classify.
type Item struct {
	ID       string
	URL      string
	Markdown string
	Links    []string
	DOI      string
}

// ModelRequest is what the model sees for one page.
type ModelRequest struct {
	ID      string   `json:"id"`
	URL     string   `json:"url"`
	Preview string   `json:"preview"`
	Links   []string `json:"links"`
	DOI     string   `json:"doi,omitempty"`
}

// ModelVerdict is the model's answer for one page.
type ModelVerdict struct {
	ID         string   `json:"id"`
	Class      string   `json:"classification"`
	Confidence float64  `json:"confidence"`
	PDFURL     string   `json:"pdf_url"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors"`
	Reasoning  string   `json:"reasoning"`
}

// ModelBackend abstracts the structured-output model so tests can supply a
// fake.
type ModelBackend interface {
	Classify(ctx context.Context, req ModelRequest) (ModelVerdict, error)
	ClassifyBatch(ctx context.Context, reqs []ModelRequest) ([]ModelVerdict, error)
}

// Classifier runs heuristics and, when needed, the model.
type Classifier struct {
	model ModelBackend
	log   *zap.Logger
}

// New returns a Classifier. A nil model leaves ambiguous pages as full text.
func New(model ModelBackend, log *zap.Logger) *Classifier {
	return &Classifier{model: model, log: logging.OrNop(log)}
}

// Classify returns the verdict for one page. It never fails: a model error
// yields full_text with reduced confidence and the error as reasoning.
func (c *Classifier) Classify(ctx context.Context, item Item) types.ClassificationResult {
	if res, ok := Heuristic(item.Markdown); ok {
		c.log.Debug("classified by heuristic",
			zap.String("url", item.URL),
			zap.String("class", string(res.Class)),
		)
		return res
	}
	if c.model == nil {
		return types.ClassificationResult{
			Class:      types.ClassFullText,
			Confidence: noModelConfidence,
			Reasoning:  "no model configured",
		}
	}

	verdict, err := c.model.Classify(ctx, buildRequest(item))
	if err != nil {
		err = failure.Mark(err, failure.ClassificationUncertain)
		c.log.Warn("model classification failed, keeping content",
			zap.String("url", item.URL),
			zap.Error(err),
		)
		return types.ClassificationResult{
			Class:      types.ClassFullText,
			Confidence: fallbackConfidence,
			Reasoning:  "model call failed: " + err.Error(),
		}
	}
	return c.fromVerdict(item, verdict)
}

// ClassifyBatch classifies many pages with at most one model call. Items
// decided by heuristics never reach the model. Items the model leaves out
// of its answer are kept as full text with reason "missing from response".
func (c *Classifier) ClassifyBatch(ctx context.Context, items []Item) map[string]types.ClassificationResult {
	out := make(map[string]types.ClassificationResult, len(items))
	var pending []Item
	for _, it := range items {
		if res, ok := Heuristic(it.Markdown); ok {
			out[it.ID] = res
			continue
		}
		pending = append(pending, it)
	}
	if len(pending) == 0 {
		return out
	}

	if c.model == nil {
		for _, it := range pending {
			out[it.ID] = types.ClassificationResult{
				Class:      types.ClassFullText,
				Confidence: noModelConfidence,
				Reasoning:  "no model configured",
			}
		}
		return out
	}

	reqs := make([]ModelRequest, len(pending))
	for i, it := range pending {
		reqs[i] = buildRequest(it)
	}

	verdicts, err := c.model.ClassifyBatch(ctx, reqs)
	if err != nil {
		err = failure.Mark(err, failure.ClassificationUncertain)
		c.log.Warn("batch model classification failed, keeping content",
			zap.Int("items", len(pending)),
			zap.Error(err),
		)
		for _, it := range pending {
			out[it.ID] = types.ClassificationResult{
				Class:      types.ClassFullText,
				Confidence: fallbackConfidence,
				Reasoning:  "model call failed: " + err.Error(),
			}
		}
		return out
	}

	byID := make(map[string]ModelVerdict, len(verdicts))
	for _, v := range verdicts {
		byID[v.ID] = v
	}
	for _, it := range pending {
		v, ok := byID[it.ID]
		if !ok {
			c.log.Warn("item missing from model response", zap.String("id", it.ID))
			out[it.ID] = types.ClassificationResult{
				Class:      types.ClassFullText,
				Confidence: fallbackConfidence,
				Reasoning:  "missing from response",
			}
			continue
		}
		out[it.ID] = c.fromVerdict(it, v)
	}
	return out
}

func (c *Classifier) fromVerdict(item Item, v ModelVerdict) types.ClassificationResult {
	res := types.ClassificationResult{
		Class:      types.Class(strings.ToLower(strings.TrimSpace(v.Class))),
		Confidence: clamp(v.Confidence),
		Title:      strings.TrimSpace(v.Title),
		Authors:    v.Authors,
		Reasoning:  v.Reasoning,
	}
	if !res.Class.Valid() {
		c.log.Warn("model returned unknown class", zap.String("class", v.Class), zap.String("url", item.URL))
		res.Class = types.ClassFullText
		res.Confidence = fallbackConfidence
	}
	if v.PDFURL != "" {
		pdfURL, err := ValidatePDFURL(v.PDFURL, item.URL)
		if err != nil {
			c.log.Warn("dropping invalid PDF URL from model",
				zap.String("url", item.URL),
				zap.Error(err),
			)
		} else {
			res.PDFURL = pdfURL
		}
	}
	return res
}

// ValidatePDFURL checks a PDF link extracted from a page. Relative links
// are resolved against base. The result is an absolute http(s) URL of at
// most MaxPDFURLLength characters with no whitespace.
func ValidatePDFURL(raw, base string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", failure.Newf(failure.ContentInvalid, "empty PDF URL")
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return "", failure.Newf(failure.ContentInvalid, "PDF URL contains whitespace")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", failure.Mark(err, failure.ContentInvalid)
	}
	if !u.IsAbs() && base != "" {
		if b, err := url.Parse(base); err == nil {
			u = b.ResolveReference(u)
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", failure.Newf(failure.ContentInvalid, "PDF URL scheme %q is not http(s)", u.Scheme)
	}
	if u.Host == "" {
		return "", failure.Newf(failure.ContentInvalid, "PDF URL has no host")
	}
	s := u.String()
	if len(s) > MaxPDFURLLength {
		return "", failure.Newf(failure.ContentInvalid, "PDF URL is %d characters, limit %d", len(s), MaxPDFURLLength)
	}
	return s, nil
}

func buildRequest(item Item) ModelRequest {
	preview := item.Markdown
	if len(preview) > MaxPreviewChars {
		preview = preview[:MaxPreviewChars]
	}
	links := item.Links
	if len(links) > MaxLinks {
		links = links[:MaxLinks]
	}
	return ModelRequest{
		ID:      item.ID,
		URL:     item.URL,
		Preview: strings.ToValidUTF8(preview, ""),
		Links:   links,
		DOI:     item.DOI,
	}
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
