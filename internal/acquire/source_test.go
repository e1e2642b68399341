// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/fulltext/internal/download"
	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/internal/fallback"
	"github.com/pdiddy/fulltext/internal/segment/pdftest"
	"github.com/pdiddy/fulltext/pkg/types"
)

type fakeResolver struct {
	link  string
	isPDF bool
	err   error
}

func (r fakeResolver) Resolve(context.Context, string) (string, bool, error) {
	return r.link, r.isPDF, r.err
}

type fakeRetriever struct {
	res   *types.RetrievalResult
	err   error
	calls []string
	opts  types.RetrievalOptions
}

func (r *fakeRetriever) GetURL(_ context.Context, ref string, opts types.RetrievalOptions) (*types.RetrievalResult, error) {
	r.calls = append(r.calls, ref)
	r.opts = opts
	return r.res, r.err
}

// pdfServer serves a PDF under /pdf/ and an HTML page everywhere else.
func pdfServer(t *testing.T) *httptest.Server {
	t.Helper()
	pdf := pdftest.Build(2)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/pdf/") {
			w.Write(pdf)
			return
		}
		fmt.Fprint(w, "<html>landing</html>")
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestOpenAccessSource_Arxiv(t *testing.T) {
	ts := pdfServer(t)
	old := arxivPDFBase
	arxivPDFBase = ts.URL + "/pdf/"
	t.Cleanup(func() { arxivPDFBase = old })

	dir := t.TempDir()
	s := NewOpenAccessSource(nil, download.New(types.HTTPConfig{}, nil), nil, dir, types.RetrievalOptions{}, nil)

	item, err := s.Acquire(context.Background(), types.AcquisitionRequest{ID: "attention", Reference: "arXiv:1706.03762"})
	require.NoError(t, err)
	assert.Equal(t, SourceOpenAccess, item.Source)
	assert.False(t, item.Textual)
	data, err := os.ReadFile(item.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(data[:5]))
}

func TestOpenAccessSource_DOIResolvedToPDF(t *testing.T) {
	ts := pdfServer(t)
	ret := &fakeRetriever{}
	s := NewOpenAccessSource(fakeResolver{link: ts.URL + "/pdf/paper.pdf", isPDF: true},
		download.New(types.HTTPConfig{}, nil), ret, t.TempDir(), types.RetrievalOptions{}, nil)

	item, err := s.Acquire(context.Background(), types.AcquisitionRequest{ID: "p1", Reference: "10.1000/xyz123"})
	require.NoError(t, err)
	assert.Equal(t, SourceOpenAccess, item.Source)
	assert.NotEmpty(t, item.Path)
	assert.Empty(t, ret.calls)
}

func TestOpenAccessSource_BadPDFFallsBackToWeb(t *testing.T) {
	ts := pdfServer(t)
	ret := &fakeRetriever{res: &types.RetrievalResult{Markdown: "# Full text"}}
	s := NewOpenAccessSource(fakeResolver{link: ts.URL + "/landing", isPDF: true},
		download.New(types.HTTPConfig{}, nil), ret, t.TempDir(), types.RetrievalOptions{EnableFallback: true}, nil)

	item, err := s.Acquire(context.Background(), types.AcquisitionRequest{ID: "p1", Reference: "10.1000/xyz123"})
	require.NoError(t, err)
	assert.True(t, item.Textual)
	assert.Equal(t, SourceWeb, item.Source)
	assert.Equal(t, "# Full text", item.Markdown)
	assert.Equal(t, []string{"10.1000/xyz123"}, ret.calls)
	assert.False(t, ret.opts.EnableFallback, "the job source owns the slow fallback")
}

func TestOpenAccessSource_NotOpenAccess(t *testing.T) {
	tests := []struct {
		name string
		ret  *fakeRetriever
	}{
		{"retrieval failed", &fakeRetriever{err: errors.New("scrape failed")}},
		{"paywalled", &fakeRetriever{res: &types.RetrievalResult{
			Markdown:       "Subscribe to read",
			Classification: &types.ClassificationResult{Class: types.ClassPaywall, Confidence: 0.95},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewOpenAccessSource(fakeResolver{err: errors.New("lookup down")}, download.New(types.HTTPConfig{}, nil), tt.ret, t.TempDir(), types.RetrievalOptions{}, nil)
			_, err := s.Acquire(context.Background(), types.AcquisitionRequest{ID: "p1", Reference: "10.1000/xyz123"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotOpenAccess))
		})
	}
}

func TestOpenAccessSource_UnknownReference(t *testing.T) {
	s := NewOpenAccessSource(nil, download.New(types.HTTPConfig{}, nil), &fakeRetriever{}, t.TempDir(), types.RetrievalOptions{}, nil)
	_, err := s.Acquire(context.Background(), types.AcquisitionRequest{ID: "x", Reference: "just some words"})
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.Permanent))
	assert.False(t, errors.Is(err, ErrNotOpenAccess))
}

func TestFallbackJobs(t *testing.T) {
	pdf := pdftest.Build(1)
	var submitted map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			fmt.Fprint(w, `{"status":"ok"}`)
		case "/jobs":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&submitted))
			fmt.Fprint(w, `{"job_id":"j9","status":"pending"}`)
		case "/jobs/j9":
			fmt.Fprint(w, `{"job_id":"j9","status":"completed"}`)
		case "/jobs/j9/file":
			w.Write(pdf)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)

	client, err := fallback.New(types.FallbackConfig{URL: ts.URL, PollInterval: time.Millisecond}, nil)
	require.NoError(t, err)
	jobs := NewFallbackJobs(client, t.TempDir(), time.Minute)
	req := types.AcquisitionRequest{ID: "p1", Reference: "https://doi.org/10.1000/xyz123", Title: "A Title"}

	require.NoError(t, jobs.Health(context.Background()))
	id, err := jobs.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "j9", id)
	assert.Equal(t, "10.1000/xyz123", submitted["identifier"])
	assert.Equal(t, "A Title", submitted["title"])

	item, err := jobs.Wait(context.Background(), req, id)
	require.NoError(t, err)
	assert.Equal(t, SourceFallbackJob, item.Source)
	data, err := os.ReadFile(item.Path)
	require.NoError(t, err)
	assert.Equal(t, pdf, data)
}

func TestFallbackJobs_NeedsDOI(t *testing.T) {
	client, err := fallback.New(types.FallbackConfig{URL: "http://127.0.0.1:1"}, nil)
	require.NoError(t, err)
	_, err = NewFallbackJobs(client, t.TempDir(), 0).Submit(context.Background(), types.AcquisitionRequest{ID: "p1", Reference: "https://example.com/article"})
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.Permanent))
}
