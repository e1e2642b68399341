// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm calls the OpenAI Responses API with JSON-schema constrained
// output. It backs the content classifier and the pipeline's batched
// metadata extraction.
package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"go.uber.org/zap"

	"github.com/pdiddy/fulltext/internal/classify"
	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/internal/httputil"
	"github.com/pdiddy/fulltext/internal/logging"
	"github.com/pdiddy/fulltext/pkg/types"
)

const (
	defaultModel      = "gpt-5-mini"
	defaultMaxRetries = 3

	// metadataHeadChars is how much of each document the metadata call sees.
	metadataHeadChars = 4000
)

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// Client is a structured-output model client.
type Client struct {
	api        openai.Client
	model      string
	maxRetries int
	log        *zap.Logger
}

// New builds a client from configuration. A missing API key is a
// configuration error.
func New(cfg types.AIConfig, log *zap.Logger, opts ...option.RequestOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, failure.Newf(failure.Configuration, "ai.api_key is not set")
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are handled by complete so they are logged and counted once.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Client{
		api:        openai.NewClient(reqOpts...),
		model:      model,
		maxRetries: maxRetries,
		log:        logging.OrNop(log),
	}, nil
}

// Classify asks the model about a single page.
func (c *Client) Classify(ctx context.Context, req classify.ModelRequest) (classify.ModelVerdict, error) {
	verdicts, err := c.ClassifyBatch(ctx, []classify.ModelRequest{req})
	if err != nil {
		return classify.ModelVerdict{}, err
	}
	for _, v := range verdicts {
		if v.ID == req.ID {
			return v, nil
		}
	}
	if len(verdicts) == 1 {
		return verdicts[0], nil
	}
	return classify.ModelVerdict{}, errors.Newf("model returned no verdict for %q", req.ID)
}

// ClassifyBatch asks the model about several pages in one call.
func (c *Client) ClassifyBatch(ctx context.Context, reqs []classify.ModelRequest) ([]classify.ModelVerdict, error) {
	prompt, err := render(classifyPromptTmpl, struct{ Pages []classify.ModelRequest }{reqs})
	if err != nil {
		return nil, errors.Wrap(err, "rendering classification prompt")
	}
	var out struct {
		Results []classify.ModelVerdict `json:"results"`
	}
	if err := c.complete(ctx, "page_classification", classificationSchema, prompt, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// ExtractMetadata returns bibliographic metadata for each document, keyed
// by document ID. Documents the model leaves out are absent from the map.
func (c *Client) ExtractMetadata(ctx context.Context, docs []types.Document) (map[string]types.DocumentMetadata, error) {
	type head struct{ ID, Head string }
	heads := make([]head, len(docs))
	for i, d := range docs {
		h := d.Markdown
		if len(h) > metadataHeadChars {
			h = h[:metadataHeadChars]
		}
		heads[i] = head{ID: d.ID, Head: strings.ToValidUTF8(h, "")}
	}
	prompt, err := render(metadataPromptTmpl, struct{ Documents []head }{heads})
	if err != nil {
		return nil, errors.Wrap(err, "rendering metadata prompt")
	}

	var out struct {
		Documents []struct {
			ID string `json:"id"`
			types.DocumentMetadata
		} `json:"documents"`
	}
	if err := c.complete(ctx, "document_metadata", metadataSchema, prompt, &out); err != nil {
		return nil, err
	}
	meta := make(map[string]types.DocumentMetadata, len(out.Documents))
	for _, d := range out.Documents {
		meta[d.ID] = d.DocumentMetadata
	}
	return meta, nil
}

// complete sends prompt with a JSON-schema output format and decodes the
// answer into v, retrying with exponential backoff.
func (c *Client) complete(ctx context.Context, name string, schema map[string]any, prompt string, v any) error {
	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(prompt)},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigParamOfJSONSchema(name, schema),
		},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := httputil.Backoff(attempt-1, backoffBase)
			c.log.Debug("retrying model call",
				zap.String("call", name),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			if err := httputil.Sleep(ctx, backoff); err != nil {
				return err
			}
		}

		resp, err := c.api.Responses.New(ctx, params)
		if err != nil {
			lastErr = err
			continue
		}
		text := resp.OutputText()
		if err := json.Unmarshal([]byte(text), v); err != nil {
			lastErr = errors.Wrapf(err, "parsing %s response", name)
			continue
		}
		return nil
	}
	return errors.Wrapf(lastErr, "%s after %d retries", name, c.maxRetries)
}
