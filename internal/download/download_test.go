// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/internal/httputil"
	"github.com/pdiddy/fulltext/internal/segment/pdftest"
	"github.com/pdiddy/fulltext/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func TestPDF(t *testing.T) {
	pdf := pdftest.Build(1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "fulltext-test", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/paper.pdf":
			w.Write(pdf)
		case "/landing":
			w.Write([]byte("<html>not a pdf</html>"))
		case "/gone":
			http.NotFound(w, r)
		case "/busy":
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer ts.Close()

	d := New(types.HTTPConfig{UserAgent: "fulltext-test"}, nil)

	got, err := d.PDF(context.Background(), ts.URL+"/paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, pdf, got)

	tests := []struct {
		path string
		kind error
	}{
		{"/landing", failure.ContentInvalid},
		{"/gone", failure.Permanent},
		{"/busy", failure.Transient},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := d.PDF(context.Background(), ts.URL+tt.path)
			require.Error(t, err)
			assert.True(t, failure.Is(err, tt.kind), "got kind %s", failure.KindOf(err))
		})
	}
}

func TestPDFToFile(t *testing.T) {
	pdf := pdftest.Build(2)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pdf)
	}))
	defer ts.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "raw", "doc.pdf")
	d := New(types.HTTPConfig{}, nil)
	require.NoError(t, d.PDFToFile(context.Background(), ts.URL, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, pdf, data)

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")
}
