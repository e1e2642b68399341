// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// AcquisitionRequest is one document requested from the streaming pipeline.
type AcquisitionRequest struct {
	// ID identifies the document within a batch. Must be unique per batch.
	ID string `json:"id" yaml:"id"`

	// Reference is a DOI, resolver URL, publisher URL, or direct PDF link.
	Reference string `json:"reference" yaml:"reference"`

	// Title and Authors are optional hints forwarded to the slow fallback service.
	Title   string   `json:"title,omitempty" yaml:"title,omitempty"`
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`
}

// AcquisitionItem is a document travelling between pipeline stages. It
// holds either a local file path (needs conversion) or markdown (already
// textual). Whoever holds the pointer owns the item; sending it on a queue
// transfers ownership and the sender must not touch it afterwards.
type AcquisitionItem struct {
	ID       string             `json:"id" yaml:"id"`
	Path     string             `json:"path,omitempty" yaml:"path,omitempty"`
	Markdown string             `json:"markdown,omitempty" yaml:"markdown,omitempty"`
	Request  AcquisitionRequest `json:"request" yaml:"request"`

	// Textual is true when Markdown is already set and conversion is skipped.
	Textual bool `json:"textual" yaml:"textual"`

	// Source records how the item was acquired ("open_access", "web", "fallback_job").
	Source string `json:"source" yaml:"source"`
}

// DocumentMetadata is extracted from converted markdown by the batched
// post-processing stage.
type DocumentMetadata struct {
	Title    string   `json:"title" yaml:"title"`
	Authors  []string `json:"authors" yaml:"authors"`
	Year     int      `json:"year,omitempty" yaml:"year,omitempty"`
	DOI      string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	Abstract string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`
}

// Document is the pipeline's final output for one request.
type Document struct {
	ID       string             `json:"id" yaml:"id"`
	Markdown string             `json:"markdown" yaml:"markdown"`
	Source   string             `json:"source" yaml:"source"`
	Request  AcquisitionRequest `json:"request" yaml:"request"`
	Metadata DocumentMetadata   `json:"metadata" yaml:"metadata"`
}
