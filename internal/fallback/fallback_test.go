// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/internal/segment/pdftest"
	"github.com/pdiddy/fulltext/pkg/types"
)

type server struct {
	file       []byte
	finalState string
	pending    int32
	polls      atomic.Int32
	submitted  map[string]any
}

func (s *server) start(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch {
		case r.URL.Path == "/health":
			fmt.Fprint(w, `{"status":"ok"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/jobs":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&s.submitted))
			fmt.Fprint(w, `{"job_id":"j1","status":"pending"}`)
		case r.URL.Path == "/jobs/j1":
			if s.polls.Add(1) <= s.pending {
				fmt.Fprint(w, `{"job_id":"j1","status":"running"}`)
				return
			}
			fmt.Fprint(w, s.finalState)
		case r.URL.Path == "/jobs/j1/file":
			w.Write(s.file)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(types.FallbackConfig{URL: url, Token: "tok", PollInterval: time.Millisecond}, nil)
	require.NoError(t, err)
	return c
}

func TestFetch(t *testing.T) {
	pdf := pdftest.Build(1)
	s := &server{file: pdf, pending: 2, finalState: `{"job_id":"j1","status":"completed","file":"paper.pdf"}`}
	c := newClient(t, s.start(t).URL)

	data, err := c.Fetch(context.Background(), Request{Identifier: "10.1000/xyz123", Title: "A Title", Authors: []string{"Ada"}}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, pdf, data)
	assert.Equal(t, int32(3), s.polls.Load())
	assert.Equal(t, "10.1000/xyz123", s.submitted["identifier"])
	assert.Equal(t, "A Title", s.submitted["title"])
	assert.Equal(t, float64(60), s.submitted["timeout_seconds"])
}

func TestFetch_NotPDF(t *testing.T) {
	s := &server{file: []byte("<html>login</html>"), finalState: `{"job_id":"j1","status":"completed"}`}
	c := newClient(t, s.start(t).URL)

	_, err := c.Fetch(context.Background(), Request{Identifier: "10.1/a"}, time.Minute)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.ContentInvalid))
}

func TestFetch_JobFailed(t *testing.T) {
	s := &server{finalState: `{"job_id":"j1","status":"failed","error":"not found in any library"}`}
	c := newClient(t, s.start(t).URL)

	_, err := c.Fetch(context.Background(), Request{Identifier: "10.1/a"}, time.Minute)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.Permanent))
	assert.Contains(t, err.Error(), "not found in any library")
}

func TestWait_Timeout(t *testing.T) {
	s := &server{pending: 1 << 30}
	c := newClient(t, s.start(t).URL)

	_, err := c.Wait(context.Background(), "j1", 20*time.Millisecond)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.Transient))
}

func TestHealth(t *testing.T) {
	s := &server{}
	c := newClient(t, s.start(t).URL)
	assert.NoError(t, c.Health(context.Background()))

	down := httptest.NewServer(http.NotFoundHandler())
	addr := down.URL
	down.Close()
	err := newClient(t, addr).Health(context.Background())
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.Unavailable))
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(types.FallbackConfig{}, nil)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.Configuration))
}

func TestSubmit_RequiresIdentifier(t *testing.T) {
	c := newClient(t, "http://127.0.0.1:1")
	_, err := c.Submit(context.Background(), Request{}, 0)
	require.Error(t, err)
}
