// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reference

import (
	"net/url"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/fulltext/pkg/types"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantDOI  string
		wantProv types.Provenance
	}{
		{"bare DOI", "10.1000/xyz123", "10.1000/xyz123", types.ProvenanceInput},
		{"doi label", "doi:10.1145/1234567.1234568", "10.1145/1234567.1234568", types.ProvenanceInput},
		{"trailing period", "10.1000/xyz123.", "10.1000/xyz123", types.ProvenanceInput},
		{"trailing punctuation run", "10.1000/xyz123;,:", "10.1000/xyz123", types.ProvenanceInput},
		{"balanced parens kept", "10.1016/S0140-6736(20)30183-5", "10.1016/S0140-6736(20)30183-5", types.ProvenanceInput},
		{"resolver URL", "https://doi.org/10.1038/nature12373", "10.1038/nature12373", types.ProvenanceURL},
		{"dx resolver URL", "http://dx.doi.org/10.1126/science.1259855", "10.1126/science.1259855", types.ProvenanceURL},
		{"escaped resolver URL", "https://doi.org/10.1002%2Fanie.201915678", "10.1002/anie.201915678", types.ProvenanceURL},
		{"springer", "https://link.springer.com/article/10.1007/s11263-015-0816-y", "10.1007/s11263-015-0816-y", types.ProvenanceURL},
		{"springer pdf", "https://link.springer.com/content/pdf/10.1007/s11263-015-0816-y.pdf", "10.1007/s11263-015-0816-y", types.ProvenanceURL},
		{"wiley abs", "https://onlinelibrary.wiley.com/doi/abs/10.1002/anie.201915678", "10.1002/anie.201915678", types.ProvenanceURL},
		{"wiley full with trailing dot", "https://onlinelibrary.wiley.com/doi/full/10.1002/anie.201915678.", "10.1002/anie.201915678", types.ProvenanceURL},
		{"tandf", "https://www.tandfonline.com/doi/full/10.1080/14786435.2020.1234567", "10.1080/14786435.2020.1234567", types.ProvenanceURL},
		{"acm", "https://dl.acm.org/doi/10.1145/3442188.3445922", "10.1145/3442188.3445922", types.ProvenanceURL},
		{"sage", "https://journals.sagepub.com/doi/pdf/10.1177/0956797620904990", "10.1177/0956797620904990", types.ProvenanceURL},
		{"plos", "https://journals.plos.org/plosone/article?id=10.1371/journal.pone.0230416", "10.1371/journal.pone.0230416", types.ProvenanceURL},
		{"nature", "https://www.nature.com/articles/s41586-020-2649-2", "10.1038/s41586-020-2649-2", types.ProvenanceURL},
		{"biorxiv", "https://www.biorxiv.org/content/10.1101/2020.03.22.002386v3", "10.1101/2020.03.22.002386", types.ProvenanceURL},
		{"biorxiv full text", "https://www.biorxiv.org/content/10.1101/2020.03.22.002386v1.full", "10.1101/2020.03.22.002386", types.ProvenanceURL},
		{"DOI embedded in text", "see 10.5555/abc-def, page 3", "10.5555/abc-def", types.ProvenanceInput},
		{"unknown host with DOI in query", "https://example.org/view?ref=10.5555/abc", "10.5555/abc", types.ProvenanceInput},
		{"tracking query after DOI path", "https://www.pnas.org/doi/10.1073/pnas.2021234118?utm_source=x", "10.1073/pnas.2021234118", types.ProvenanceInput},
		{"DOI query parameter followed by others", "https://example.org/paper?doi=10.1000/xyz123&lang=en", "10.1000/xyz123", types.ProvenanceInput},
		{"fragment after DOI", "https://example.org/read/10.1000/xyz123#sec1", "10.1000/xyz123", types.ProvenanceInput},
		{"leading DOI with fragment", "10.1000/xyz123#sec1", "10.1000/xyz123", types.ProvenanceInput},
		{"resolver URL with query", "https://doi.org/10.1038/nature12373?via=home#top", "10.1038/nature12373", types.ProvenanceURL},
		{"wiley with query", "https://onlinelibrary.wiley.com/doi/full/10.1002/anie.201915678?af=R", "10.1002/anie.201915678", types.ProvenanceURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := Detect(tt.input)
			require.True(t, ok, "expected a DOI in %q", tt.input)
			assert.Equal(t, tt.wantDOI, info.DOI)
			assert.Equal(t, "https://doi.org/"+tt.wantDOI, info.URL)
			assert.Equal(t, tt.wantProv, info.Provenance)
		})
	}
}

func TestDetect_NoMatch(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"plain text", "attention is all you need"},
		{"arxiv abs", "https://arxiv.org/abs/2301.07041"},
		{"pubmed", "https://pubmed.ncbi.nlm.nih.gov/32015507/"},
		{"ieee", "https://ieeexplore.ieee.org/document/8578843"},
		{"jstor", "https://www.jstor.org/stable/2118490"},
		{"sciencedirect pii", "https://www.sciencedirect.com/science/article/pii/S0140673620301835"},
		{"not-DOI publisher with DOI-like query", "https://www.sciencedirect.com/science/article/pii/S01406736?via=10.1016/x"},
		{"resolver without DOI", "https://doi.org/"},
		{"prefix without suffix", "10.1000/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Detect(tt.input)
			assert.False(t, ok)
		})
	}
}

func TestDetect_StrippedDOIHasNoTrailingPunctuation(t *testing.T) {
	trailing := regexp.MustCompile(`[.,;:]$`)
	inputs := []string{
		"https://link.springer.com/article/10.1007/s11263-015-0816-y,",
		"https://dl.acm.org/doi/10.1145/3442188.3445922;",
		"https://onlinelibrary.wiley.com/doi/epdf/10.1002/anie.201915678:",
		"10.1000/xyz123...",
	}
	for _, in := range inputs {
		info, ok := Detect(in)
		require.True(t, ok, in)
		assert.False(t, trailing.MatchString(info.DOI), "DOI %q from %q", info.DOI, in)
		assert.Equal(t, "https://doi.org/"+info.DOI, info.URL)
	}
}

func TestRegisterPublisher(t *testing.T) {
	saved := publishers
	t.Cleanup(func() { publishers = saved })

	RegisterPublisher(Publisher{
		Name:  "example-press",
		Hosts: []string{"press.example.com"},
		Extract: func(u *url.URL) string {
			return "10.9999/" + u.Query().Get("article")
		},
	})
	RegisterPublisher(Publisher{Name: "opaque", Hosts: []string{"opaque.example.com"}, NotDOI: true})

	info, ok := Detect("https://press.example.com/read?article=42")
	require.True(t, ok)
	assert.Equal(t, "10.9999/42", info.DOI)

	_, ok = Detect("https://opaque.example.com/item/10.9999/42")
	assert.False(t, ok)
}

func TestFromContent(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantDOI string
		wantOK  bool
	}{
		{
			name:    "explicit label",
			text:    "Journal of Things, vol 3.\nDOI: 10.1234/jot.2020.003.\nAbstract...",
			wantDOI: "10.1234/jot.2020.003",
			wantOK:  true,
		},
		{
			name:    "markdown link to resolver",
			text:    "Cite as [this paper](https://doi.org/10.5555/md-link).",
			wantDOI: "10.5555/md-link",
			wantOK:  true,
		},
		{
			name:    "bare resolver URL",
			text:    "Available at https://dx.doi.org/10.4321/bare-url, accessed 2024.",
			wantDOI: "10.4321/bare-url",
			wantOK:  true,
		},
		{
			name:    "label wins over earlier resolver URL",
			text:    "Related: https://doi.org/10.1111/other\n\nDOI: 10.2222/this-one",
			wantDOI: "10.2222/this-one",
			wantOK:  true,
		},
		{
			name:    "resolver URL with query string",
			text:    "Read it at https://doi.org/10.4321/q-test?download=true today.",
			wantDOI: "10.4321/q-test",
			wantOK:  true,
		},
		{
			name:    "escaped slash in resolver URL",
			text:    "Link: https://doi.org/10.1002%2Fanie.201915678",
			wantDOI: "10.1002/anie.201915678",
			wantOK:  true,
		},
		{
			name:   "no DOI",
			text:   "Nothing to see here.",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doi, ok := FromContent(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantDOI, doi)
		})
	}
}

func TestClean(t *testing.T) {
	assert.Equal(t, "10.1/abc", Clean(" 10.1/abc) "))
	assert.Equal(t, "10.1/a(b)", Clean("10.1/a(b)"))
	assert.Equal(t, "10.1/abc", Clean(`10.1/abc".`))
	assert.Equal(t, "", Clean("10.1/"))
}
