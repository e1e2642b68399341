// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the fulltext engine:
// references, retrieval results, classification verdicts, pipeline items,
// and stage configuration.
package types

// Provenance records where a DOI was found.
type Provenance string

const (
	// ProvenanceInput means the caller passed the DOI (or a string containing it) directly.
	ProvenanceInput Provenance = "input"
	// ProvenanceURL means the DOI was extracted from a resolver or publisher URL.
	ProvenanceURL Provenance = "url"
	// ProvenanceContent means the DOI was found inside scraped page content.
	ProvenanceContent Provenance = "content"
)

// ReferenceInfo is a detected reference identifier. Values are immutable
// once produced; pass them by value.
type ReferenceInfo struct {
	// DOI is the normalized identifier, e.g. "10.1038/nature12373".
	DOI string `json:"doi" yaml:"doi"`

	// URL is the canonical resolver URL, e.g. "https://doi.org/10.1038/nature12373".
	URL string `json:"url" yaml:"url"`

	// Provenance records how the DOI was obtained.
	Provenance Provenance `json:"provenance" yaml:"provenance"`
}
