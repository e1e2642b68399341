// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdiddy/fulltext/internal/reference"
)

// IdentifierType classifies a request's reference.
type IdentifierType int

const (
	TypeUnknown IdentifierType = iota
	TypeArxiv
	TypeDOI
	TypeURL
)

func (t IdentifierType) String() string {
	switch t {
	case TypeArxiv:
		return "arxiv"
	case TypeDOI:
		return "doi"
	case TypeURL:
		return "url"
	default:
		return "unknown"
	}
}

// arxivPDFBase is a var so tests can point it at an httptest server.
var arxivPDFBase = "https://arxiv.org/pdf/"

// arxivPattern matches arXiv IDs: "2301.07041", "arXiv:2301.07041", "2301.07041v2".
var arxivPattern = regexp.MustCompile(`^(?:arXiv:)?(\d{4}\.\d{4,5}(?:v\d+)?)$`)

// arxivURLPattern matches abstract and PDF pages on arxiv.org.
var arxivURLPattern = regexp.MustCompile(`^https?://(?:www\.)?arxiv\.org/(?:abs|pdf)/(\d{4}\.\d{4,5}(?:v\d+)?)(?:\.pdf)?/?$`)

// Classify determines the reference type and returns its normalized form.
// arXiv references come first because arxiv.org URLs carry no DOI. DOIs
// are recognised in every form reference.Detect understands, including
// resolver and publisher URLs.
func Classify(ref string) (IdentifierType, string) {
	ref = strings.TrimSpace(ref)

	if m := arxivPattern.FindStringSubmatch(ref); m != nil {
		return TypeArxiv, m[1]
	}
	if m := arxivURLPattern.FindStringSubmatch(ref); m != nil {
		return TypeArxiv, m[1]
	}
	if info, ok := reference.Detect(ref); ok {
		return TypeDOI, info.DOI
	}
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return TypeURL, ref
	}
	return TypeUnknown, ref
}

// Slug returns a filesystem-safe stem for the identifier.
func Slug(idType IdentifierType, normalized string) string {
	switch idType {
	case TypeArxiv:
		return normalized
	case TypeDOI:
		return strings.NewReplacer("/", "-", ":", "-").Replace(normalized)
	case TypeURL:
		u, err := url.Parse(normalized)
		if err != nil {
			return urlHashSlug(normalized)
		}
		base := strings.TrimSuffix(filepath.Base(u.Path), filepath.Ext(u.Path))
		if base == "" || base == "." || base == "/" {
			return urlHashSlug(normalized)
		}
		return base
	default:
		return "unknown"
	}
}

// RequestID derives a request ID from a bare reference, for callers that
// read references from a list.
func RequestID(ref string) string {
	return Slug(Classify(ref))
}

// PDFURL returns the direct PDF location for identifiers that have one
// without a lookup. DOIs need OpenAlex and return "".
func PDFURL(idType IdentifierType, normalized string) string {
	switch idType {
	case TypeArxiv:
		return arxivPDFBase + normalized
	case TypeURL:
		if u, err := url.Parse(normalized); err == nil && strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
			return normalized
		}
	}
	return ""
}

func urlHashSlug(rawURL string) string {
	h := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("url-%x", h[:8])
}
