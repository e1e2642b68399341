// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/internal/httputil"
	"github.com/pdiddy/fulltext/pkg/types"
)

// ErrBlocked is returned when a provider explicitly refuses a site.
var ErrBlocked = failure.Mark(errors.New("site blocked by provider"), failure.Permanent)

// Firecrawl talks to a Firecrawl-compatible scrape API, either self-hosted
// or the cloud service.
type Firecrawl struct {
	BaseURL   string
	APIKey    string
	UserAgent string

	// Stealth requests the provider's stealth proxy.
	Stealth bool

	// Timeout is forwarded to the provider as its page timeout.
	Timeout time.Duration

	Client *http.Client
}

type firecrawlRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	Timeout         int64    `json:"timeout,omitempty"`
	Proxy           string   `json:"proxy,omitempty"`
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string   `json:"markdown"`
		Links    []string `json:"links"`
		Metadata struct {
			StatusCode int    `json:"statusCode"`
			SourceURL  string `json:"sourceURL"`
		} `json:"metadata"`
	} `json:"data"`
}

// Scrape fetches pageURL as markdown plus outbound links.
func (f *Firecrawl) Scrape(ctx context.Context, pageURL string) (types.ScrapeResult, error) {
	body := firecrawlRequest{
		URL:             pageURL,
		Formats:         []string{"markdown", "links"},
		OnlyMainContent: true,
	}
	if f.Timeout > 0 {
		body.Timeout = f.Timeout.Milliseconds()
	}
	if f.Stealth {
		body.Proxy = "stealth"
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return types.ScrapeResult{}, errors.Wrap(err, "marshaling scrape request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(f.BaseURL, "/")+"/v1/scrape", bytes.NewReader(payload))
	if err != nil {
		return types.ScrapeResult{}, errors.Wrap(err, "creating scrape request")
	}
	req.Header.Set("Content-Type", "application/json")
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return types.ScrapeResult{}, httputil.Classify(errors.Wrap(err, "scrape request"))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return types.ScrapeResult{}, errors.Wrapf(ErrBlocked, "provider returned HTTP 403 for %s", pageURL)
	}
	if err := httputil.CheckStatus(resp, "scrape provider"); err != nil {
		if isBlockMessage(err.Error()) {
			return types.ScrapeResult{}, errors.Wrap(ErrBlocked, err.Error())
		}
		return types.ScrapeResult{}, err
	}

	var fr firecrawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return types.ScrapeResult{}, errors.Wrap(err, "parsing scrape response")
	}
	if !fr.Success {
		if isBlockMessage(fr.Error) {
			return types.ScrapeResult{}, errors.Wrap(ErrBlocked, fr.Error)
		}
		return types.ScrapeResult{}, failure.Newf(failure.Permanent, "scrape provider: %s", fr.Error)
	}
	if code := fr.Data.Metadata.StatusCode; code >= 400 {
		switch {
		case code == http.StatusForbidden:
			return types.ScrapeResult{}, errors.Wrapf(ErrBlocked, "target returned HTTP %d", code)
		case code == http.StatusTooManyRequests || httputil.IsTransientStatus(code):
			return types.ScrapeResult{}, failure.Newf(failure.Transient, "target returned HTTP %d", code)
		}
		return types.ScrapeResult{}, failure.Newf(failure.Permanent, "target returned HTTP %d", code)
	}

	return types.ScrapeResult{
		URL:      pageURL,
		Markdown: fr.Data.Markdown,
		Links:    fr.Data.Links,
	}, nil
}

func isBlockMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, s := range []string{"blocked", "not supported", "unsupported", "forbidden"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
