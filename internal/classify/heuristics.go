// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"regexp"
	"strings"

	"github.com/pdiddy/fulltext/pkg/types"
)

// Heuristic thresholds.
const (
	doiErrorMaxChars     = 5000
	doiErrorMinMatches   = 2
	structureMinChars    = 20000
	structureMinSections = 3

	paywallConfidence   = 0.95
	doiErrorConfidence  = 0.9
	structureConfidence = 0.9
)

// paywallPhrases mark a page that withholds the article behind a login or
// purchase. One match is enough.
var paywallPhrases = []string{
	"subscribe to read",
	"subscribe to continue",
	"purchase this article",
	"buy this article",
	"purchase access",
	"rent this article",
	"get access to the full",
	"log in to access",
	"login to access",
	"sign in to access",
	"access through your institution",
	"this content is only available",
	"you do not have access",
	"institutional login",
	"purchase pdf",
	"become a subscriber",
}

// doiErrorPhrases appear on resolver and publisher error pages.
var doiErrorPhrases = []string{
	"doi not found",
	"doi cannot be found",
	"not found in the handle system",
	"page not found",
	"404 not found",
	"error 404",
	"the requested url was not found",
	"no longer available",
	"invalid doi",
	"error: doi",
}

// sectionPatterns match the canonical headings of a research article when
// they appear as markdown headings, optionally numbered.
var sectionPatterns = func() []*regexp.Regexp {
	names := []string{
		`abstract`,
		`introduction`,
		`(?:background|related\s+work)`,
		`(?:materials\s+and\s+)?methods?|methodology`,
		`results?`,
		`discussion`,
		`conclusions?`,
		`(?:references|bibliography)`,
		`acknowledg(?:e)?ments?`,
	}
	out := make([]*regexp.Regexp, len(names))
	for i, n := range names {
		out[i] = regexp.MustCompile(`(?im)^#{1,6}\s+(?:\d+(?:\.\d+)*\.?\s+|[ivx]+\.\s+)?(?:` + n + `)\b`)
	}
	return out
}()

// countPhrases counts how many phrases occur in the lowercased text.
func countPhrases(lower string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			n++
		}
	}
	return n
}

// countSections counts how many distinct section patterns occur in md.
func countSections(md string) int {
	n := 0
	for _, re := range sectionPatterns {
		if re.MatchString(md) {
			n++
		}
	}
	return n
}

// Heuristic applies the rule-based checks to markdown. ok is false when no
// rule fires and the model must decide.
func Heuristic(markdown string) (types.ClassificationResult, bool) {
	lower := strings.ToLower(markdown)

	if n := countPhrases(lower, paywallPhrases); n >= 1 {
		return types.ClassificationResult{
			Class:      types.ClassPaywall,
			Confidence: paywallConfidence,
			Reasoning:  "heuristic: paywall phrase matched",
		}, true
	}

	if len(markdown) < doiErrorMaxChars && countPhrases(lower, doiErrorPhrases) >= doiErrorMinMatches {
		return types.ClassificationResult{
			Class:      types.ClassNonAcademic,
			Confidence: doiErrorConfidence,
			Reasoning:  "heuristic: DOI error page",
		}, true
	}

	if len(markdown) > structureMinChars && countSections(markdown) >= structureMinSections {
		return types.ClassificationResult{
			Class:      types.ClassFullText,
			Confidence: structureConfidence,
			Reasoning:  "heuristic: article section structure",
		}, true
	}

	return types.ClassificationResult{}, false
}
