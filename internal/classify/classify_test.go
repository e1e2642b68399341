// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/pkg/types"
)

// mockModel records calls and answers from a fixed table.
type mockModel struct {
	verdicts   map[string]ModelVerdict
	err        error
	calls      int
	batchCalls int
	lastBatch  []ModelRequest
	lastSingle ModelRequest
}

func (m *mockModel) Classify(_ context.Context, req ModelRequest) (ModelVerdict, error) {
	m.calls++
	m.lastSingle = req
	if m.err != nil {
		return ModelVerdict{}, m.err
	}
	return m.verdicts[req.ID], nil
}

func (m *mockModel) ClassifyBatch(_ context.Context, reqs []ModelRequest) ([]ModelVerdict, error) {
	m.batchCalls++
	m.lastBatch = reqs
	if m.err != nil {
		return nil, m.err
	}
	var out []ModelVerdict
	for _, r := range reqs {
		if v, ok := m.verdicts[r.ID]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func articleBody() string {
	var b strings.Builder
	for _, h := range []string{"# A Paper", "## Abstract", "## 1. Introduction", "## 2 Methods", "## Results", "## Discussion", "## References"} {
		b.WriteString(h + "\n\n")
		b.WriteString(strings.Repeat("Lorem ipsum dolor sit amet, consectetur adipiscing elit. ", 70))
		b.WriteString("\n\n")
	}
	return b.String()
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name      string
		markdown  string
		wantOK    bool
		wantClass types.Class
	}{
		{
			name:      "paywall phrase",
			markdown:  "Great article title\n\nSubscribe to read the full story.",
			wantOK:    true,
			wantClass: types.ClassPaywall,
		},
		{
			name:      "DOI error page",
			markdown:  "Error: DOI Not Found\n\nThis DOI cannot be found in the Handle System.",
			wantOK:    true,
			wantClass: types.ClassNonAcademic,
		},
		{
			name:     "single error phrase is not enough",
			markdown: "Page not found",
			wantOK:   false,
		},
		{
			name:     "one resolver sentence is one phrase",
			markdown: "This DOI cannot be found in the DOI System.",
			wantOK:   false,
		},
		{
			name:     "page numbers are not an error code",
			markdown: "Journal of Things 12, pp. 398-404. The print edition is no longer available.",
			wantOK:   false,
		},
		{
			name:      "HTTP 404 page",
			markdown:  "404 Not Found\n\nThe requested URL was not found on this server.",
			wantOK:    true,
			wantClass: types.ClassNonAcademic,
		},
		{
			name:      "long structured article",
			markdown:  articleBody(),
			wantOK:    true,
			wantClass: types.ClassFullText,
		},
		{
			name:     "long text without headings",
			markdown: strings.Repeat("plain prose without structure. ", 1000),
			wantOK:   false,
		},
		{
			name:     "short abstract page",
			markdown: "# Title\n\n## Abstract\n\nWe study things.\n\n[Download PDF](/paper.pdf)",
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := Heuristic(tt.markdown)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantClass, res.Class)
				assert.GreaterOrEqual(t, res.Confidence, 0.9)
			}
		})
	}
}

func TestClassify_PaywallSkipsModel(t *testing.T) {
	m := &mockModel{}
	c := New(m, nil)

	res := c.Classify(context.Background(), Item{URL: "https://pub.example/a", Markdown: "Please subscribe to read this article."})

	assert.Equal(t, types.ClassPaywall, res.Class)
	assert.GreaterOrEqual(t, res.Confidence, 0.9)
	assert.Zero(t, m.calls, "model must not be called")
}

func TestClassify_ModelVerdict(t *testing.T) {
	m := &mockModel{verdicts: map[string]ModelVerdict{
		"a": {ID: "a", Class: "abstract_with_pdf", Confidence: 0.8, PDFURL: "/content/paper.pdf", Title: " A Title ", Reasoning: "has pdf link"},
	}}
	c := New(m, nil)

	links := make([]string, 100)
	for i := range links {
		links[i] = fmt.Sprintf("https://pub.example/l%d", i)
	}
	res := c.Classify(context.Background(), Item{
		ID:       "a",
		URL:      "https://pub.example/article/1",
		Markdown: strings.Repeat("x", 10000),
		Links:    links,
		DOI:      "10.1/abc",
	})

	assert.Equal(t, types.ClassAbstractWithPDF, res.Class)
	assert.Equal(t, "https://pub.example/content/paper.pdf", res.PDFURL)
	assert.Equal(t, "A Title", res.Title)
	assert.Len(t, m.lastSingle.Preview, MaxPreviewChars)
	assert.Len(t, m.lastSingle.Links, MaxLinks)
	assert.Equal(t, "10.1/abc", m.lastSingle.DOI)
}

func TestClassify_ModelFailureKeepsContent(t *testing.T) {
	c := New(&mockModel{err: errors.New("rate limited")}, nil)

	res := c.Classify(context.Background(), Item{URL: "https://x.example", Markdown: "ambiguous text"})

	assert.Equal(t, types.ClassFullText, res.Class)
	assert.Less(t, res.Confidence, 0.5)
	assert.Contains(t, res.Reasoning, "rate limited")
}

func TestClassify_UnknownClassAndBadPDFURL(t *testing.T) {
	m := &mockModel{verdicts: map[string]ModelVerdict{
		"a": {ID: "a", Class: "sports", Confidence: 0.99, PDFURL: "javascript:alert(1)"},
	}}
	res := New(m, nil).Classify(context.Background(), Item{ID: "a", Markdown: "ambiguous"})

	assert.Equal(t, types.ClassFullText, res.Class)
	assert.Empty(t, res.PDFURL)
}

func TestClassify_NoModel(t *testing.T) {
	res := New(nil, nil).Classify(context.Background(), Item{Markdown: "ambiguous"})
	assert.Equal(t, types.ClassFullText, res.Class)
}

func TestClassifyBatch(t *testing.T) {
	m := &mockModel{verdicts: map[string]ModelVerdict{
		"b": {ID: "b", Class: "non_academic", Confidence: 0.7},
	}}
	c := New(m, nil)

	got := c.ClassifyBatch(context.Background(), []Item{
		{ID: "a", Markdown: "Purchase this article for $39.95"},
		{ID: "b", Markdown: "a blog post about cooking"},
		{ID: "c", Markdown: "something the model forgets"},
	})

	require.Len(t, got, 3)
	assert.Equal(t, types.ClassPaywall, got["a"].Class)
	assert.Equal(t, types.ClassNonAcademic, got["b"].Class)
	assert.Equal(t, types.ClassFullText, got["c"].Class)
	assert.Equal(t, "missing from response", got["c"].Reasoning)

	assert.Equal(t, 1, m.batchCalls)
	require.Len(t, m.lastBatch, 2, "heuristic hits are not sent to the model")
	assert.Equal(t, "b", m.lastBatch[0].ID)
}

func TestClassifyBatch_AllHeuristic(t *testing.T) {
	m := &mockModel{}
	got := New(m, nil).ClassifyBatch(context.Background(), []Item{
		{ID: "a", Markdown: "Log in to access this content"},
	})
	assert.Equal(t, types.ClassPaywall, got["a"].Class)
	assert.Zero(t, m.batchCalls)
}

func TestClassifyBatch_ModelFailure(t *testing.T) {
	got := New(&mockModel{err: errors.New("boom")}, nil).ClassifyBatch(context.Background(), []Item{
		{ID: "a", Markdown: "x"},
		{ID: "b", Markdown: "y"},
	})
	for _, id := range []string{"a", "b"} {
		assert.Equal(t, types.ClassFullText, got[id].Class)
		assert.Contains(t, got[id].Reasoning, "boom")
	}
}

func TestValidatePDFURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		base    string
		want    string
		wantErr bool
	}{
		{"absolute", "https://a.example/p.pdf", "", "https://a.example/p.pdf", false},
		{"relative resolved", "/files/p.pdf", "https://a.example/article/9", "https://a.example/files/p.pdf", false},
		{"surrounding space trimmed", "  https://a.example/p.pdf\n", "", "https://a.example/p.pdf", false},
		{"embedded newline", "https://a.example/p\n.pdf", "", "", true},
		{"ftp scheme", "ftp://a.example/p.pdf", "", "", true},
		{"relative without base", "p.pdf", "", "", true},
		{"too long", "https://a.example/" + strings.Repeat("a", MaxPDFURLLength), "", "", true},
		{"empty", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePDFURL(tt.raw, tt.base)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, failure.Is(err, failure.ContentInvalid))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
