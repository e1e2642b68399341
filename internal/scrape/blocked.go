// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import "strings"

// minContentChars is the shortest body accepted as a real page.
const minContentChars = 100

// blockingPhrases appear on bot-protection and access-denied interstitials.
var blockingPhrases = []string{
	"captcha",
	"access denied",
	"verify you are human",
	"verify you are a human",
	"are you a robot",
	"unusual traffic",
	"bot detection",
	"checking your browser",
	"checking if the site connection is secure",
	"enable javascript and cookies to continue",
	"attention required! | cloudflare",
	"request blocked",
	"ddos protection by",
	"press & hold",
	"pardon our interruption",
}

// Blocked reports whether markdown is an interstitial rather than content,
// with a short reason.
func Blocked(markdown string) (bool, string) {
	if len(strings.TrimSpace(markdown)) < minContentChars {
		return true, "content too short"
	}
	lower := strings.ToLower(markdown)
	for _, p := range blockingPhrases {
		if strings.Contains(lower, p) {
			return true, "blocking indicator: " + p
		}
	}
	return false, ""
}
