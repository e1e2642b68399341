// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Quality selects the conversion tier of the document-conversion service.
type Quality string

const (
	QualityFast     Quality = "fast"
	QualityBalanced Quality = "balanced"
	QualityHigh     Quality = "high"
)

// Valid reports whether q is a known tier.
func (q Quality) Valid() bool {
	switch q {
	case QualityFast, QualityBalanced, QualityHigh:
		return true
	}
	return false
}

// RetrievalOptions controls one retrieval. It is passed by value through
// the whole call chain and never mutated.
type RetrievalOptions struct {
	// Quality is the conversion tier for PDF conversion.
	Quality Quality `json:"quality" yaml:"quality"`

	// OCRLanguages lists OCR language codes passed to the converter (e.g. "en", "de").
	OCRLanguages []string `json:"ocr_languages" yaml:"ocr_languages"`

	// EnableClassification runs the content classifier on scraped pages.
	EnableClassification bool `json:"enable_classification" yaml:"enable_classification"`

	// EnableFallback permits the slow fallback retrieval service.
	EnableFallback bool `json:"enable_fallback" yaml:"enable_fallback"`

	// ScrapeTimeout bounds one scraper-service call. Zero means no extra bound.
	ScrapeTimeout time.Duration `json:"scrape_timeout" yaml:"scrape_timeout"`

	// LookupTimeout bounds one open-access index lookup.
	LookupTimeout time.Duration `json:"lookup_timeout" yaml:"lookup_timeout"`

	// ConvertTimeout bounds one document conversion including polling.
	ConvertTimeout time.Duration `json:"convert_timeout" yaml:"convert_timeout"`

	// FallbackTimeout bounds one slow-fallback job including polling.
	FallbackTimeout time.Duration `json:"fallback_timeout" yaml:"fallback_timeout"`
}

// ScrapeResult is the output of one successful scrape attempt.
type ScrapeResult struct {
	URL      string   `json:"url" yaml:"url"`
	Markdown string   `json:"markdown" yaml:"markdown"`
	Links    []string `json:"links,omitempty" yaml:"links,omitempty"`

	// Provider names the cascade stage that produced the result.
	Provider string `json:"provider" yaml:"provider"`

	// FromDownload is set when navigation captured a file download that
	// was converted instead of a rendered page.
	FromDownload bool `json:"from_download,omitempty" yaml:"from_download,omitempty"`
}

// Class is a content classification verdict.
type Class string

const (
	ClassFullText        Class = "full_text"
	ClassAbstractWithPDF Class = "abstract_with_pdf"
	ClassPaywall         Class = "paywall"
	ClassNonAcademic     Class = "non_academic"
)

// Valid reports whether c is one of the four known classes.
func (c Class) Valid() bool {
	switch c {
	case ClassFullText, ClassAbstractWithPDF, ClassPaywall, ClassNonAcademic:
		return true
	}
	return false
}

// ClassificationResult is the classifier's verdict on one page.
type ClassificationResult struct {
	Class      Class   `json:"class" yaml:"class"`
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// PDFURL is a validated full-text PDF link found on an abstract page.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// Title and Authors are hints for a later identifier lookup.
	Title   string   `json:"title,omitempty" yaml:"title,omitempty"`
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	Reasoning string `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
}

// ContentSource tags where the final markdown of a retrieval came from.
type ContentSource string

const (
	SourceScraped         ContentSource = "scraped"
	SourcePDFDirect       ContentSource = "pdf_direct"
	SourcePDFFromAbstract ContentSource = "pdf_from_abstract"
	SourceSlowFallback    ContentSource = "slow_fallback"
)

// RetrievalResult is the outcome of one unified retrieval. Trail is
// append-only while the retrieval runs.
type RetrievalResult struct {
	Reference      string                `json:"reference" yaml:"reference"`
	Markdown       string                `json:"markdown,omitempty" yaml:"markdown,omitempty"`
	URL            string                `json:"url,omitempty" yaml:"url,omitempty"`
	DOI            string                `json:"doi,omitempty" yaml:"doi,omitempty"`
	Source         ContentSource         `json:"source,omitempty" yaml:"source,omitempty"`
	Classification *ClassificationResult `json:"classification,omitempty" yaml:"classification,omitempty"`
	Trail          []string              `json:"trail" yaml:"trail"`
}

// Succeeded reports whether the retrieval produced content.
func (r *RetrievalResult) Succeeded() bool {
	return r != nil && r.Markdown != ""
}
