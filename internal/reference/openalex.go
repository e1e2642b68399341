// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/fulltext/internal/cache"
	"github.com/pdiddy/fulltext/internal/httputil"
	"github.com/pdiddy/fulltext/internal/logging"
	"github.com/pdiddy/fulltext/pkg/types"
)

// openAlexAPIBase is the OpenAlex API root. Declared as a var so tests can
// substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org"

const cacheNamespace = "openalex"

// Work captures the fields we need from an OpenAlex work record.
type Work struct {
	ID              string         `json:"id"`
	DOI             string         `json:"doi"`
	Title           string         `json:"title"`
	PublicationYear int            `json:"publication_year"`
	Authorships     []Authorship   `json:"authorships"`
	PrimaryLocation *Location      `json:"primary_location"`
	BestOALocation  *Location      `json:"best_oa_location"`
	Locations       []Location     `json:"locations"`
	OpenAccess      OpenAccessInfo `json:"open_access"`
}

// Authorship is one author entry of a work.
type Authorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

// Location is one place a work is hosted.
type Location struct {
	IsOA           bool   `json:"is_oa"`
	PDFURL         string `json:"pdf_url"`
	LandingPageURL string `json:"landing_page_url"`
}

// OpenAccessInfo is the work-level open-access summary.
type OpenAccessInfo struct {
	IsOA  bool   `json:"is_oa"`
	OAURL string `json:"oa_url"`
}

// BareDOI returns the work's DOI without the resolver prefix.
func (w *Work) BareDOI() string {
	d := strings.TrimPrefix(w.DOI, "https://doi.org/")
	return strings.TrimPrefix(d, "http://doi.org/")
}

// AuthorNames returns the display names of the work's authors.
func (w *Work) AuthorNames() []string {
	var names []string
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			names = append(names, a.Author.DisplayName)
		}
	}
	return names
}

// BestURL picks the best available full-text URL of w. Direct PDF links are
// preferred over landing pages; within each kind the primary location is
// checked before the best open-access location, then the generic location
// list. Only open-access locations count. isPDF reports which kind was found.
func BestURL(w *Work) (link string, isPDF bool) {
	if w == nil {
		return "", false
	}
	var ordered []Location
	if w.PrimaryLocation != nil {
		ordered = append(ordered, *w.PrimaryLocation)
	}
	if w.BestOALocation != nil {
		best := *w.BestOALocation
		best.IsOA = true
		ordered = append(ordered, best)
	}
	ordered = append(ordered, w.Locations...)

	for _, loc := range ordered {
		if loc.IsOA && loc.PDFURL != "" {
			return loc.PDFURL, true
		}
	}
	for _, loc := range ordered {
		if loc.IsOA && loc.LandingPageURL != "" {
			return loc.LandingPageURL, false
		}
	}
	return "", false
}

// OpenAlex resolves DOIs and titles against the OpenAlex index.
type OpenAlex struct {
	Client *http.Client

	// Email is sent as mailto parameter for polite pool access.
	Email     string
	UserAgent string

	// BaseURL overrides openAlexAPIBase when set.
	BaseURL string

	// Cache, when set, is consulted before every lookup.
	Cache    cache.Cache
	CacheTTL time.Duration

	Log *zap.Logger
}

// NewOpenAlex builds a client from configuration.
func NewOpenAlex(cfg types.OpenAlexConfig, c cache.Cache, ttl time.Duration, log *zap.Logger) *OpenAlex {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAlex{
		Client:    &http.Client{Timeout: timeout},
		Email:     cfg.Email,
		UserAgent: cfg.UserAgent,
		BaseURL:   cfg.BaseURL,
		Cache:     c,
		CacheTTL:  ttl,
		Log:       logging.OrNop(log),
	}
}

func (o *OpenAlex) base() string {
	if o.BaseURL != "" {
		return strings.TrimRight(o.BaseURL, "/")
	}
	return openAlexAPIBase
}

func (o *OpenAlex) log() *zap.Logger {
	return logging.OrNop(o.Log)
}

// cachedWork is what Lookup stores, so misses are cached too.
type cachedWork struct {
	Found bool  `json:"found"`
	Work  *Work `json:"work,omitempty"`
}

// Lookup fetches the work record for doi. It returns nil, nil when OpenAlex
// does not know the DOI.
func (o *OpenAlex) Lookup(ctx context.Context, doi string) (*Work, error) {
	key := cache.Key("lookup", strings.ToLower(doi))
	var cw cachedWork
	if cache.GetJSON(ctx, o.Cache, cacheNamespace, key, o.CacheTTL, &cw) {
		o.log().Debug("openalex cache hit", zap.String("doi", doi))
		return cw.Work, nil
	}

	params := url.Values{}
	if o.Email != "" {
		params.Set("mailto", o.Email)
	}
	apiURL := o.base() + "/works/" + ResolverURL(doi)
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	var work Work
	found, err := o.getJSON(ctx, apiURL, &work)
	if err != nil {
		return nil, errors.Wrapf(err, "OpenAlex lookup %s", doi)
	}
	cw = cachedWork{Found: found}
	if found {
		cw.Work = &work
	}
	if err := cache.SetJSON(ctx, o.Cache, cacheNamespace, key, cw); err != nil {
		o.log().Warn("caching OpenAlex record", zap.String("doi", doi), zap.Error(err))
	}
	return cw.Work, nil
}

// Resolve returns the best open-access URL for doi, or "" when none exists.
func (o *OpenAlex) Resolve(ctx context.Context, doi string) (string, bool, error) {
	work, err := o.Lookup(ctx, doi)
	if err != nil {
		return "", false, err
	}
	link, isPDF := BestURL(work)
	return link, isPDF, nil
}

// SearchTitle returns candidate works ranked by OpenAlex relevance.
func (o *OpenAlex) SearchTitle(ctx context.Context, title, author string) ([]Work, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("empty OpenAlex title query")
	}
	params := url.Values{
		"search":   {strings.TrimSpace(title + " " + author)},
		"per_page": {"5"},
	}
	if o.Email != "" {
		params.Set("mailto", o.Email)
	}

	var resp struct {
		Results []Work `json:"results"`
	}
	if _, err := o.getJSON(ctx, o.base()+"/works?"+params.Encode(), &resp); err != nil {
		return nil, errors.Wrap(err, "OpenAlex title search")
	}
	return resp.Results, nil
}

// FindDOI searches by title and author and returns the DOI of the first
// candidate whose normalized title matches. Results are cached.
func (o *OpenAlex) FindDOI(ctx context.Context, title string, authors []string) (string, bool, error) {
	var author string
	if len(authors) > 0 {
		author = authors[0]
	}
	key := cache.Key("title", normalizeTitle(title), strings.ToLower(author))
	var doi string
	if cache.GetJSON(ctx, o.Cache, cacheNamespace, key, o.CacheTTL, &doi) {
		return doi, doi != "", nil
	}

	works, err := o.SearchTitle(ctx, title, author)
	if err != nil {
		return "", false, err
	}
	want := normalizeTitle(title)
	for i := range works {
		if works[i].DOI != "" && normalizeTitle(works[i].Title) == want {
			doi = works[i].BareDOI()
			break
		}
	}
	if err := cache.SetJSON(ctx, o.Cache, cacheNamespace, key, doi); err != nil {
		o.log().Warn("caching OpenAlex title search", zap.Error(err))
	}
	return doi, doi != "", nil
}

// getJSON performs a GET with retry and decodes the body into v. A 404 is
// reported as found=false without error.
func (o *OpenAlex) getJSON(ctx context.Context, apiURL string, v any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return false, errors.Wrap(err, "creating request")
	}
	if o.UserAgent != "" {
		req.Header.Set("User-Agent", o.UserAgent)
	}

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, 3)
	if err != nil {
		return false, httputil.Classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err := httputil.CheckStatus(resp, "OpenAlex"); err != nil {
		return false, err
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return false, errors.Wrap(err, "parsing OpenAlex response")
	}
	return true, nil
}

// normalizeTitle lowercases s and keeps only letters and digits.
func normalizeTitle(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
