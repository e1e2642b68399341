// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/fulltext/internal/failure"
)

func TestFirecrawlScrape(t *testing.T) {
	tests := []struct {
		name       string
		stealth    bool
		statusCode int
		response   string
		wantMD     string
		wantKind   error
		wantBlock  bool
	}{
		{
			name:       "success",
			statusCode: http.StatusOK,
			response:   `{"success":true,"data":{"markdown":"# Hello","links":["https://a.example/x"],"metadata":{"statusCode":200}}}`,
			wantMD:     "# Hello",
		},
		{
			name:       "stealth success",
			stealth:    true,
			statusCode: http.StatusOK,
			response:   `{"success":true,"data":{"markdown":"# Stealth","metadata":{"statusCode":200}}}`,
			wantMD:     "# Stealth",
		},
		{
			name:       "provider 403 is a block",
			statusCode: http.StatusForbidden,
			response:   `{"success":false,"error":"forbidden"}`,
			wantBlock:  true,
		},
		{
			name:       "unrecognised failure is permanent",
			statusCode: http.StatusOK,
			response:   `{"success":false,"error":"This website is no longer supported"}`,
			wantKind:   failure.Permanent,
		},
		{
			name:       "blocked message",
			statusCode: http.StatusOK,
			response:   `{"success":false,"error":"Request blocked by target site"}`,
			wantBlock:  true,
		},
		{
			name:       "gateway error is transient",
			statusCode: http.StatusBadGateway,
			response:   `bad gateway`,
			wantKind:   failure.Transient,
		},
		{
			name:       "target 403 is a block",
			statusCode: http.StatusOK,
			response:   `{"success":true,"data":{"markdown":"denied","metadata":{"statusCode":403}}}`,
			wantBlock:  true,
		},
		{
			name:       "target 404 is permanent",
			statusCode: http.StatusOK,
			response:   `{"success":true,"data":{"markdown":"","metadata":{"statusCode":404}}}`,
			wantKind:   failure.Permanent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/scrape", r.URL.Path)
				assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
				var body firecrawlRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "https://pub.example/a", body.URL)
				assert.Equal(t, []string{"markdown", "links"}, body.Formats)
				if tt.stealth {
					assert.Equal(t, "stealth", body.Proxy)
				} else {
					assert.Empty(t, body.Proxy)
				}
				w.WriteHeader(tt.statusCode)
				fmt.Fprint(w, tt.response)
			}))
			defer ts.Close()

			f := &Firecrawl{BaseURL: ts.URL + "/", APIKey: "key", Stealth: tt.stealth, Client: ts.Client()}
			res, err := f.Scrape(context.Background(), "https://pub.example/a")
			switch {
			case tt.wantBlock:
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrBlocked))
				assert.True(t, failure.Is(err, failure.Permanent))
			case tt.wantKind != nil:
				require.Error(t, err)
				assert.True(t, failure.Is(err, tt.wantKind), "kind %s", failure.KindOf(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantMD, res.Markdown)
			}
		})
	}
}

func TestFirecrawlScrape_ConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	f := &Firecrawl{BaseURL: addr}
	_, err := f.Scrape(context.Background(), "https://pub.example/a")
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.Unavailable), failure.KindOf(err))
}

func TestBlocked(t *testing.T) {
	long := strings.Repeat("genuine content ", 20)
	tests := []struct {
		name string
		md   string
		want bool
	}{
		{"short", "hi", true},
		{"whitespace padded short", "   hi   " + strings.Repeat(" ", 200), true},
		{"captcha", "Solve the CAPTCHA. " + long, true},
		{"cloudflare", "Checking your browser before accessing. " + long, true},
		{"access denied", "Access Denied " + long, true},
		{"clean", long, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := Blocked(tt.md)
			assert.Equal(t, tt.want, got)
			if got {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestBlocklist(t *testing.T) {
	b := NewBlocklist()
	assert.True(t, b.Add("a.example"))
	assert.False(t, b.Add("a.example"))
	assert.False(t, b.Add(""))
	b.Add("c.example")
	assert.True(t, b.Contains("a.example"))
	assert.False(t, b.Contains("b.example"))
	assert.Equal(t, []string{"a.example", "c.example"}, b.Domains())
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "nature.com", Domain("https://www.Nature.com/articles/x"))
	assert.Equal(t, "pub.example", Domain("http://pub.example:8080/a"))
	assert.Equal(t, "", Domain("::not a url"))
}
