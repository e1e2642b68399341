// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reference

import (
	"net/url"
	"regexp"
	"strings"
	"sync"
)

// Publisher describes how to pull a DOI out of a publisher's article URL.
type Publisher struct {
	Name string

	// Hosts are matched exactly or as a parent domain ("wiley.com" matches
	// "onlinelibrary.wiley.com").
	Hosts []string

	// NotDOI marks publishers whose URLs carry an internal identifier. Detect
	// reports no match for them instead of guessing.
	NotDOI bool

	// Extract returns the DOI encoded in u, or "" if the path has none.
	Extract func(u *url.URL) string
}

var (
	publishersMu sync.RWMutex
	publishers   = defaultPublishers()
)

// RegisterPublisher adds p to the publisher table. Later registrations take
// precedence over earlier ones for the same host.
func RegisterPublisher(p Publisher) {
	publishersMu.Lock()
	defer publishersMu.Unlock()
	publishers = append([]Publisher{p}, publishers...)
}

func lookupPublisher(host string) *Publisher {
	host = strings.TrimPrefix(host, "www.")
	publishersMu.RLock()
	defer publishersMu.RUnlock()
	for i := range publishers {
		for _, h := range publishers[i].Hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				p := publishers[i]
				return &p
			}
		}
	}
	return nil
}

// pathExtractor returns an Extract func that takes the DOI from the first
// submatch of re applied to the unescaped path.
func pathExtractor(re *regexp.Regexp) func(*url.URL) string {
	return func(u *url.URL) string {
		m := re.FindStringSubmatch("/" + unescapePath(u))
		if m == nil {
			return ""
		}
		return m[1]
	}
}

// doiPathPattern covers the common "/doi/[abs|full|pdf|epdf|...]/<doi>" layout.
var doiPathPattern = regexp.MustCompile(`^/doi/(?:abs/|full/|pdf/|epdf/|pdfdirect/|book/|reader/)?(10\.\d{4,9}/[^?#]+)$`)

func defaultPublishers() []Publisher {
	return []Publisher{
		{
			Name:    "springer",
			Hosts:   []string{"link.springer.com"},
			Extract: pathExtractor(regexp.MustCompile(`^/(?:article|chapter|book|referenceworkentry|content/pdf)/(10\.\d{4,9}/[^?#]+?)(?:\.pdf)?$`)),
		},
		{Name: "wiley", Hosts: []string{"onlinelibrary.wiley.com"}, Extract: pathExtractor(doiPathPattern)},
		{Name: "taylor-francis", Hosts: []string{"tandfonline.com"}, Extract: pathExtractor(doiPathPattern)},
		{Name: "acm", Hosts: []string{"dl.acm.org"}, Extract: pathExtractor(doiPathPattern)},
		{Name: "sage", Hosts: []string{"journals.sagepub.com"}, Extract: pathExtractor(doiPathPattern)},
		{Name: "acs", Hosts: []string{"pubs.acs.org"}, Extract: pathExtractor(doiPathPattern)},
		{Name: "science", Hosts: []string{"science.org"}, Extract: pathExtractor(doiPathPattern)},
		{
			Name:  "plos",
			Hosts: []string{"journals.plos.org"},
			Extract: func(u *url.URL) string {
				id := u.Query().Get("id")
				if !bareDOIPattern.MatchString(id) {
					return ""
				}
				return id
			},
		},
		{
			Name:  "nature",
			Hosts: []string{"nature.com"},
			Extract: func(u *url.URL) string {
				m := natureArticle.FindStringSubmatch(u.Path)
				if m == nil {
					return ""
				}
				return "10.1038/" + m[1]
			},
		},
		{
			Name:    "biorxiv",
			Hosts:   []string{"biorxiv.org", "medrxiv.org"},
			Extract: pathExtractor(regexp.MustCompile(`^/content/(10\.1101/\d{4}\.\d{2}\.\d{2}\.\d+|10\.1101/\d+)(?:v\d+)?(?:\.full|\.abstract|\.full\.pdf|\.full-text)?/?$`)),
		},
		{
			Name:    "frontiers",
			Hosts:   []string{"frontiersin.org"},
			Extract: pathExtractor(regexp.MustCompile(`^/articles?/(10\.\d{4,9}/[^/?#]+)`)),
		},
		{Name: "arxiv", Hosts: []string{"arxiv.org"}, NotDOI: true},
		{Name: "pubmed", Hosts: []string{"pubmed.ncbi.nlm.nih.gov", "ncbi.nlm.nih.gov"}, NotDOI: true},
		{Name: "ieee", Hosts: []string{"ieeexplore.ieee.org"}, NotDOI: true},
		{Name: "jstor", Hosts: []string{"jstor.org"}, NotDOI: true},
		{Name: "sciencedirect", Hosts: []string{"sciencedirect.com"}, NotDOI: true},
		{Name: "mdpi", Hosts: []string{"mdpi.com"}, NotDOI: true},
	}
}

var natureArticle = regexp.MustCompile(`^/articles/([A-Za-z0-9.\-]+?)(?:\.pdf)?/?$`)
