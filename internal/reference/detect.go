// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reference detects DOIs in arbitrary strings, URLs, and page
// content, and resolves them to open-access full-text URLs through the
// OpenAlex index.
package reference

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/fulltext/pkg/types"
)

// ResolverBase is the canonical DOI resolver.
const ResolverBase = "https://doi.org/"

// doiSuffix is the Crossref-recommended suffix character class. It stops
// at query, fragment, and parameter separators.
const doiSuffix = `[-._;()/:A-Za-z0-9]+`

// doiPrefixPattern matches a string that starts with a DOI, optionally
// labelled "doi:".
var doiPrefixPattern = regexp.MustCompile(`(?i)^(?:doi:\s*)?(10\.\d{4,9}/` + doiSuffix + `)`)

// bareDOIPattern matches a DOI anywhere in a string.
var bareDOIPattern = regexp.MustCompile(`10\.\d{4,9}/` + doiSuffix)

// resolverHosts are the hosts of the canonical DOI resolver.
var resolverHosts = map[string]bool{
	"doi.org":     true,
	"dx.doi.org":  true,
	"www.doi.org": true,
}

// Detect finds a DOI in s. It tries, in order: a leading DOI, a resolver
// URL, a known publisher URL, and finally a bare DOI anywhere in s.
// Publisher URLs whose paths carry no DOI report no match rather than a guess.
func Detect(s string) (types.ReferenceInfo, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.ReferenceInfo{}, false
	}

	if m := doiPrefixPattern.FindStringSubmatch(s); m != nil {
		if doi := Clean(m[1]); doi != "" {
			return newInfo(doi, types.ProvenanceInput), true
		}
	}

	if u, err := url.Parse(s); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		host := strings.ToLower(u.Hostname())
		if resolverHosts[host] {
			if doi := Clean(unescapePath(u)); bareDOIPattern.MatchString(doi) {
				return newInfo(doi, types.ProvenanceURL), true
			}
			return types.ReferenceInfo{}, false
		}
		if p := lookupPublisher(host); p != nil {
			if p.NotDOI {
				return types.ReferenceInfo{}, false
			}
			if doi := Clean(p.Extract(u)); doi != "" {
				return newInfo(doi, types.ProvenanceURL), true
			}
		}
	}

	if m := bareDOIPattern.FindString(s); m != "" {
		if doi := Clean(m); doi != "" {
			return newInfo(doi, types.ProvenanceInput), true
		}
	}
	return types.ReferenceInfo{}, false
}

// ResolverURL returns the canonical resolver URL for doi.
func ResolverURL(doi string) string {
	return ResolverBase + doi
}

func newInfo(doi string, prov types.Provenance) types.ReferenceInfo {
	return types.ReferenceInfo{DOI: doi, URL: ResolverURL(doi), Provenance: prov}
}

// Clean strips trailing punctuation and unbalanced closing brackets or
// quotes from an extracted DOI, and drops a trailing ".pdf".
func Clean(doi string) string {
	doi = strings.TrimSpace(doi)
	for {
		before := doi
		doi = strings.TrimRight(doi, ".,;:")
		doi = strings.TrimSuffix(doi, ".pdf")
		if n := len(doi); n > 0 {
			switch doi[n-1] {
			case '"', '\'':
				doi = doi[:n-1]
			case ')':
				if strings.Count(doi, "(") < strings.Count(doi, ")") {
					doi = doi[:n-1]
				}
			case ']':
				if strings.Count(doi, "[") < strings.Count(doi, "]") {
					doi = doi[:n-1]
				}
			case '}':
				if strings.Count(doi, "{") < strings.Count(doi, "}") {
					doi = doi[:n-1]
				}
			}
		}
		if doi == before {
			break
		}
	}
	if !strings.Contains(doi, "/") || strings.HasSuffix(doi, "/") {
		return ""
	}
	return doi
}

// unescapePath returns the URL path without its leading slash, with
// percent-escapes decoded.
func unescapePath(u *url.URL) string {
	p := u.Path
	if raw, err := url.PathUnescape(u.EscapedPath()); err == nil {
		p = raw
	}
	return strings.TrimPrefix(p, "/")
}

// contentPatterns are tried in order by FromContent; the first pattern that
// matches anywhere in the text wins.
// Percent-escapes are allowed here and decoded after matching.
var contentPatterns = []*regexp.Regexp{
	// Explicit label: "DOI: 10.1234/abc" or "doi 10.1234/abc".
	regexp.MustCompile(`(?i)\bdoi\s*:?\s*(10\.\d{4,9}/` + contentDOISuffix + `)`),
	// Markdown link wrapping a resolver URL: [text](https://doi.org/10.1234/abc).
	regexp.MustCompile(`\[[^\]]*\]\(https?://(?:dx\.)?doi\.org/(10\.\d{4,9}/` + contentDOISuffix + `)\)`),
	// Bare resolver URL.
	regexp.MustCompile(`https?://(?:dx\.)?doi\.org/(10\.\d{4,9}/` + contentDOISuffix + `)`),
}

const contentDOISuffix = `[-._;()/:%A-Za-z0-9]+`

// FromContent extracts the DOI of a work from free-text page content.
func FromContent(text string) (string, bool) {
	for _, re := range contentPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		doi := m[1]
		if unescaped, err := url.PathUnescape(doi); err == nil {
			doi = unescaped
		}
		if doi = Clean(doi); doi != "" {
			return doi, true
		}
	}
	return "", false
}
