// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/internal/segment/pdftest"
	"github.com/pdiddy/fulltext/pkg/types"
)

// conversionServer completes a job after pendingPolls polls.
func conversionServer(t *testing.T, pendingPolls int32, final string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/convert":
			require.NoError(t, r.ParseMultipartForm(10<<20))
			assert.Equal(t, "high", r.FormValue("quality"))
			assert.Equal(t, "en,fr", r.FormValue("languages"))
			f, _, err := r.FormFile("file")
			require.NoError(t, err)
			data, _ := io.ReadAll(f)
			assert.Equal(t, "%PDF-", string(data[:5]))
			fmt.Fprint(w, `{"job_id":"job-1"}`)
		case r.URL.Path == "/jobs/job-1":
			if polls.Add(1) <= pendingPolls {
				fmt.Fprint(w, `{"job_id":"job-1","status":"processing"}`)
				return
			}
			fmt.Fprint(w, final)
		case r.URL.Path == "/health":
			fmt.Fprint(w, `{"status":"ok","queue_depth":3}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts, &polls
}

func newTestService(t *testing.T, url string) *Service {
	t.Helper()
	s, err := NewService(types.ConversionConfig{URL: url + "/", PollInterval: time.Millisecond}, nil)
	require.NoError(t, err)
	return s
}

var highEnFr = Options{Quality: types.QualityHigh, Languages: []string{"en", "fr"}}

func TestService_Convert(t *testing.T) {
	ts, polls := conversionServer(t, 2, `{"job_id":"job-1","status":"completed","markdown":"# Done"}`)
	s := newTestService(t, ts.URL)

	path := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(path, pdftest.Build(1), 0o644))

	md, err := s.Convert(context.Background(), path, highEnFr)
	require.NoError(t, err)
	assert.Equal(t, "# Done", md)
	assert.Equal(t, int32(3), polls.Load())
}

func TestService_JobFailed(t *testing.T) {
	ts, _ := conversionServer(t, 0, `{"job_id":"job-1","status":"failed","error":"corrupt xref"}`)
	s := newTestService(t, ts.URL)

	_, err := s.ConvertBytes(context.Background(), pdftest.Build(1), highEnFr)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.Permanent))
	assert.Contains(t, err.Error(), "corrupt xref")
}

func TestService_EmptyOutput(t *testing.T) {
	ts, _ := conversionServer(t, 0, `{"job_id":"job-1","status":"completed","markdown":"  "}`)
	s := newTestService(t, ts.URL)

	_, err := s.ConvertBytes(context.Background(), pdftest.Build(1), highEnFr)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.ContentInvalid))
}

func TestService_WaitTimeout(t *testing.T) {
	ts, _ := conversionServer(t, 1_000_000, "")
	s := newTestService(t, ts.URL)

	hf := highEnFr
	hf.Timeout = 20 * time.Millisecond
	_, err := s.ConvertBytes(context.Background(), pdftest.Build(1), hf)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.Transient))
}

func TestService_Health(t *testing.T) {
	ts, _ := conversionServer(t, 0, "")
	s := newTestService(t, ts.URL)

	h, err := s.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Health{Available: true, QueueDepth: 3}, h)

	down := httptest.NewServer(http.NotFoundHandler())
	addr := down.URL
	down.Close()
	h, err = newTestService(t, addr).Health(context.Background())
	require.NoError(t, err)
	assert.False(t, h.Available)
}

func TestNewService_RequiresURL(t *testing.T) {
	_, err := NewService(types.ConversionConfig{}, nil)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.Configuration))
}
