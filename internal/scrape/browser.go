// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"
	"github.com/microcosm-cc/bluemonday"

	"github.com/pdiddy/fulltext/internal/failure"
	"github.com/pdiddy/fulltext/internal/segment"
	"github.com/pdiddy/fulltext/pkg/types"
)

// Navigation is the outcome of a headless navigation: either a rendered
// page or a file download the navigation triggered.
type Navigation interface {
	navigation()
}

// NavigatedPage is a rendered page.
type NavigatedPage struct {
	URL  string
	HTML string
}

// DownloadCaptured holds the bytes of a download triggered by navigation.
type DownloadCaptured struct {
	URL  string
	Data []byte
}

func (NavigatedPage) navigation()    {}
func (DownloadCaptured) navigation() {}

// Navigator drives a headless browser.
type Navigator interface {
	Navigate(ctx context.Context, pageURL string, timeout time.Duration) (Navigation, error)
}

// PDFConverter turns PDF bytes into markdown.
type PDFConverter interface {
	ConvertPDF(ctx context.Context, data []byte) (string, error)
}

// Browser is the headless-browser stage. Rendered pages are sanitized and
// converted to markdown; captured PDF downloads go to the PDF converter.
type Browser struct {
	nav     Navigator
	pdf     PDFConverter
	timeout time.Duration
	md      *converter.Converter
	policy  *bluemonday.Policy
}

// NewBrowser returns a browser stage. pdf may be nil, in which case
// captured downloads fail the stage.
func NewBrowser(nav Navigator, pdf PDFConverter, timeout time.Duration) *Browser {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Browser{
		nav:     nav,
		pdf:     pdf,
		timeout: timeout,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// Scrape navigates to pageURL and returns its content as markdown.
func (b *Browser) Scrape(ctx context.Context, pageURL string) (types.ScrapeResult, error) {
	nav, err := b.nav.Navigate(ctx, pageURL, b.timeout)
	if err != nil {
		return types.ScrapeResult{}, err
	}

	switch n := nav.(type) {
	case NavigatedPage:
		md, err := b.HTMLToMarkdown(n.HTML, pageURL)
		if err != nil {
			return types.ScrapeResult{}, err
		}
		return types.ScrapeResult{
			URL:      pageURL,
			Markdown: md,
			Links:    ExtractLinks(n.HTML, pageURL),
		}, nil

	case DownloadCaptured:
		if !segment.IsPDF(n.Data) {
			return types.ScrapeResult{}, failure.Newf(failure.ContentInvalid, "download from %s is not a PDF", pageURL)
		}
		if b.pdf == nil {
			return types.ScrapeResult{}, failure.Newf(failure.Configuration, "download captured but no PDF converter configured")
		}
		md, err := b.pdf.ConvertPDF(ctx, n.Data)
		if err != nil {
			return types.ScrapeResult{}, errors.Wrap(err, "converting captured download")
		}
		return types.ScrapeResult{URL: pageURL, Markdown: md, FromDownload: true}, nil
	}
	return types.ScrapeResult{}, errors.Newf("unexpected navigation result %T", nav)
}

// HTMLToMarkdown sanitizes html and converts it to markdown with links
// resolved against pageURL.
func (b *Browser) HTMLToMarkdown(html, pageURL string) (string, error) {
	clean := b.policy.Sanitize(html)
	md, err := b.md.ConvertString(clean, converter.WithDomain(pageURL))
	if err != nil {
		return "", errors.Wrap(err, "converting HTML to markdown")
	}
	return strings.TrimSpace(md), nil
}

// ExtractLinks returns the absolute http(s) links of html in document
// order, without duplicates or fragments.
func ExtractLinks(html, pageURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, _ := url.Parse(pageURL)

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if base != nil {
			u = base.ResolveReference(u)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		u.Fragment = ""
		link := u.String()
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})
	return links
}
