package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/fulltext/pkg/types"
)

func TestReadRequests(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "refs.txt")
	require.NoError(t, os.WriteFile(list, []byte("# reading list\n10.1000/xyz123\n\nhttps://example.com/paper.pdf\n10.1000/xyz123\n"), 0o644))

	reqs, err := readRequests([]string{"arXiv:2301.07041"}, list)
	require.NoError(t, err)
	require.Len(t, reqs, 4)
	assert.Equal(t, "2301.07041", reqs[0].ID)
	assert.Equal(t, "10.1000-xyz123", reqs[1].ID)
	assert.Equal(t, "paper", reqs[2].ID)
	assert.Equal(t, "10.1000-xyz123-2", reqs[3].ID)
}

func TestReadRequests_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: attention
  reference: "10.48550/arXiv.1706.03762"
  title: Attention Is All You Need
  authors: [Vaswani, Shazeer]
- reference: https://doi.org/10.1038/nature12373
`), 0o644))

	reqs, err := readRequests(nil, path)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, types.AcquisitionRequest{
		ID:        "attention",
		Reference: "10.48550/arXiv.1706.03762",
		Title:     "Attention Is All You Need",
		Authors:   []string{"Vaswani", "Shazeer"},
	}, reqs[0])
	assert.Equal(t, "10.1038-nature12373", reqs[1].ID)
}

func TestReadRequests_Empty(t *testing.T) {
	_, err := readRequests(nil, "")
	require.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("conversion.languages", []string{"en, fr"})
	v.Set("scraper.api_key", "fc-key")
	v.Set("fallback.url", "http://vpn.example:9000")

	cfg := loadConfig(v)
	assert.Equal(t, []string{"en", "fr"}, cfg.Conversion.Languages)
	assert.Equal(t, "fc-key", cfg.Scraper.APIKey)
	assert.Equal(t, defaultUserAgent, cfg.Scraper.UserAgent)
	assert.Equal(t, 4, cfg.Pipeline.AcquirePermits)
	assert.Equal(t, time.Second, cfg.Pipeline.SubmitDelay)
	assert.Equal(t, 10*time.Minute, cfg.Fallback.JobTimeout)

	opts := cfg.RetrievalDefaults()
	assert.True(t, opts.EnableFallback)
	assert.True(t, opts.EnableClassification)
	assert.Equal(t, types.QualityBalanced, opts.Quality)
}

func TestReadRequests_Bibliography(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.csl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: watson1953
  title: Molecular Structure of Nucleic Acids
  DOI: 10.1038/171737a0
- URL: https://example.com/paper.pdf
`), 0o644))

	reqs, err := readRequests(nil, path)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "watson1953", reqs[0].ID)
	assert.Equal(t, "10.1038/171737a0", reqs[0].Reference)
	assert.Equal(t, "paper", reqs[1].ID)
}
