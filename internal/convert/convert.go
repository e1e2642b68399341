// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns PDFs into markdown. Backends are the GPU-backed
// conversion service and a markitdown container; the Chunked converter
// wraps either one, segments large PDFs to stay under the backend's page
// limit, and caches results by content hash.
package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/fulltext/internal/container"
	"github.com/pdiddy/fulltext/internal/download"
	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/pkg/types"
)

// Options are the per-call conversion settings.
type Options struct {
	Quality   types.Quality
	Languages []string

	// Timeout bounds one conversion including polling. Zero uses the
	// backend default.
	Timeout time.Duration
}

// OptionsFrom extracts the conversion settings from retrieval options.
func OptionsFrom(o types.RetrievalOptions) Options {
	return Options{Quality: o.Quality, Languages: o.OCRLanguages, Timeout: o.ConvertTimeout}
}

// Backend converts one PDF, already within the page limit, to markdown.
type Backend interface {
	ConvertBytes(ctx context.Context, data []byte, opts Options) (string, error)
}

// NewBackend selects the backend named by cfg.Backend. The markitdown
// backend detects a container runtime.
func NewBackend(ctx context.Context, cfg types.ConversionConfig, log *zap.Logger) (Backend, error) {
	switch cfg.Backend {
	case "", types.BackendService:
		return NewService(cfg, log)
	case types.BackendMarkitdown:
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return nil, err
		}
		return NewMarkitdownConverter(ctx, rt)
	}
	return nil, failure.Newf(failure.Configuration, "unknown conversion backend %q", cfg.Backend)
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the number of files processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any file failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// ConvertFiles converts each PDF in paths and writes <slug>.md to outDir,
// printing per-file status to w. Files whose markdown already exists are
// skipped.
func ConvertFiles(ctx context.Context, c *Chunked, paths []string, outDir string, opts Options, w io.Writer) BatchResult {
	var result BatchResult
	for _, p := range paths {
		id := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		mdPath := filepath.Join(outDir, Slug(id)+".md")
		if _, err := os.Stat(mdPath); err == nil {
			fmt.Fprintf(w, "skipped: %s (already exists)\n", id)
			result.Skipped++
			continue
		}

		md, err := c.ConvertFile(ctx, p, opts)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", id, err)
			result.Failed++
			continue
		}
		doc := types.Document{ID: id, Markdown: md, Source: "local_file", Request: types.AcquisitionRequest{ID: id, Reference: p}}
		if _, err := WriteMarkdown(doc, outDir); err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", id, err)
			result.Failed++
			continue
		}
		fmt.Fprintf(w, "converted: %s\n", id)
		result.Converted++
	}
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result
}

type frontmatter struct {
	ID          string   `yaml:"id"`
	Reference   string   `yaml:"reference,omitempty"`
	Source      string   `yaml:"source,omitempty"`
	Title       string   `yaml:"title,omitempty"`
	Authors     []string `yaml:"authors,omitempty"`
	Year        int      `yaml:"year,omitempty"`
	DOI         string   `yaml:"doi,omitempty"`
	ConvertedAt string   `yaml:"converted_at"`
}

// now is replaced in tests.
var now = time.Now

// WriteMarkdown writes doc to dir/<slug>.md with YAML frontmatter and
// returns the path.
func WriteMarkdown(doc types.Document, dir string) (string, error) {
	fm := frontmatter{
		ID:          doc.ID,
		Reference:   doc.Request.Reference,
		Source:      doc.Source,
		Title:       doc.Metadata.Title,
		Authors:     doc.Metadata.Authors,
		Year:        doc.Metadata.Year,
		DOI:         doc.Metadata.DOI,
		ConvertedAt: now().UTC().Format(time.RFC3339),
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return "", errors.Wrap(err, "marshaling frontmatter")
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	b.WriteString(doc.Markdown)
	if !strings.HasSuffix(doc.Markdown, "\n") {
		b.WriteString("\n")
	}

	path := filepath.Join(dir, Slug(doc.ID)+".md")
	if err := download.WriteFile(path, []byte(b.String())); err != nil {
		return "", errors.Wrapf(err, "writing %s", path)
	}
	return path, nil
}

var slugUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Slug makes id safe as a file name.
func Slug(id string) string {
	s := strings.Trim(slugUnsafe.ReplaceAllString(id, "_"), "._")
	if s == "" {
		return "document"
	}
	return s
}
