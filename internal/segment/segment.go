// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package segment splits large PDFs into page-range chunks for a
// page-limited conversion service and reassembles the converted markdown.
package segment

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/pdiddy/fulltext/internal/failure"
)

func init() {
	// pdfcpu otherwise writes a config directory under the user's home.
	api.DisableConfigDir()
}

// PageRange is a 1-indexed inclusive range of pages.
type PageRange struct {
	First int
	Last  int
}

func (r PageRange) String() string {
	return fmt.Sprintf("%d-%d", r.First, r.Last)
}

// Chunk is one page range of a split document.
type Chunk struct {
	Data  []byte
	Pages PageRange
}

// IsPDF reports whether data carries the %PDF- magic within its first 1024 bytes.
func IsPDF(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("%PDF-"))
}

// PageCount parses content and returns its number of pages.
func PageCount(content []byte) (int, error) {
	if !IsPDF(content) {
		return 0, failure.Newf(failure.ContentInvalid, "not a PDF")
	}
	n, err := api.PageCount(bytes.NewReader(content), model.NewDefaultConfiguration())
	if err != nil {
		return 0, errors.Wrap(err, "counting PDF pages")
	}
	return n, nil
}

// ShouldChunk reports whether content has at least threshold pages. A
// document whose page count cannot be parsed is never chunked.
func ShouldChunk(content []byte, threshold int) bool {
	if threshold <= 0 {
		return false
	}
	n, err := PageCount(content)
	if err != nil {
		return false
	}
	return n >= threshold
}

// SplitByPages splits content into ordered chunks of at most chunkSize
// pages. A document of chunkSize pages or fewer is returned as a single
// chunk holding the original bytes.
func SplitByPages(content []byte, chunkSize int) ([]Chunk, error) {
	if chunkSize <= 0 {
		return nil, errors.Newf("chunk size must be positive, got %d", chunkSize)
	}
	n, err := PageCount(content)
	if err != nil {
		return nil, err
	}
	if n <= chunkSize {
		return []Chunk{{Data: content, Pages: PageRange{First: 1, Last: n}}}, nil
	}

	var chunks []Chunk
	for first := 1; first <= n; first += chunkSize {
		last := min(first+chunkSize-1, n)
		r := PageRange{First: first, Last: last}

		var buf bytes.Buffer
		if err := api.Trim(bytes.NewReader(content), &buf, []string{r.String()}, model.NewDefaultConfiguration()); err != nil {
			return nil, errors.Wrapf(err, "extracting pages %s", r)
		}
		chunks = append(chunks, Chunk{Data: buf.Bytes(), Pages: r})
	}
	return chunks, nil
}

// Marker returns the HTML comment placed before a chunk's markdown.
func Marker(r PageRange) string {
	return "<!-- pages " + r.String() + " -->"
}

// Assemble joins converted chunk markdown in order. A single chunk is
// returned unchanged. With several chunks each one is preceded by its page
// range marker, and top-level headings after the first chunk are demoted
// one level so the document keeps a single title.
//
// Assemble panics if len(chunks) != len(ranges).
func Assemble(chunks []string, ranges []PageRange) string {
	if len(chunks) != len(ranges) {
		panic(fmt.Sprintf("segment.Assemble: %d chunks but %d page ranges", len(chunks), len(ranges)))
	}
	if len(chunks) == 1 {
		return chunks[0]
	}

	var b strings.Builder
	for i, md := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
			md = DemoteHeadings(md)
		}
		b.WriteString(Marker(ranges[i]))
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(md))
	}
	b.WriteString("\n")
	return b.String()
}

// DemoteHeadings turns every "# " heading outside fenced code blocks into
// "## ". Running it twice is the same as running it once.
func DemoteHeadings(md string) string {
	lines := strings.Split(md, "\n")
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence || len(line)-len(trimmed) > 3 {
			continue
		}
		if strings.HasPrefix(trimmed, "# ") || trimmed == "#" {
			lines[i] = line[:len(line)-len(trimmed)] + "#" + trimmed
		}
	}
	return strings.Join(lines, "\n")
}
