// Package suggest offers corrections for near-miss spellings of the
// major mail provider domains ("gamil.com" → "gmail.com").
package suggest

import (
	"context"

	"verimail/internal/cache"
	"verimail/internal/lookup"
)

// DefaultThreshold is the maximum edit distance considered a typo.
const DefaultThreshold = 2

// Suggestion is a candidate correction. Confidence approaches 1 as the
// edit distance shrinks relative to the domain length.
type Suggestion struct {
	Suggested  string  `json:"suggested"`
	Confidence float64 `json:"confidence"`
}

// knownDomains are the correction targets. Exact matches never produce
// a suggestion.
var knownDomains = []string{
	"gmail.com", "googlemail.com",
	"yahoo.com", "ymail.com", "rocketmail.com",
	"hotmail.com", "outlook.com", "live.com", "msn.com",
	"icloud.com", "me.com",
	"aol.com", "zoho.com", "mail.com",
	"protonmail.com", "proton.me", "fastmail.com",
	"gmx.com", "gmx.net", "yandex.com",
}

// Domain finds the closest known provider within threshold edits, with
// cache-aside against the domainSuggestion namespace. Both positive and
// empty outcomes are cached.
func Domain(ctx context.Context, c *cache.Cache, domain string, threshold int) (Suggestion, bool) {
	domain = lookup.ExtractDomain(domain)
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	// A domain known to hold MX records receives mail as spelled; never
	// second-guess it, however close it sits to a popular provider.
	var valid bool
	if c.GetJSON(ctx, cache.NSDomainValid, domain, &valid) && valid {
		return Suggestion{}, false
	}

	var cached *Suggestion
	if c.GetJSON(ctx, cache.NSDomainSuggestion, domain, &cached) {
		if cached == nil {
			return Suggestion{}, false
		}
		return *cached, true
	}

	best := threshold + 1
	match := ""
	for _, known := range knownDomains {
		if domain == known {
			c.SetJSON(ctx, cache.NSDomainSuggestion, domain, (*Suggestion)(nil), 0)
			return Suggestion{}, false
		}
		if d := Distance(domain, known); d < best {
			best = d
			match = known
		}
	}

	if match == "" {
		c.SetJSON(ctx, cache.NSDomainSuggestion, domain, (*Suggestion)(nil), 0)
		return Suggestion{}, false
	}

	denom := len(domain)
	if len(match) > denom {
		denom = len(match)
	}
	s := Suggestion{Suggested: match, Confidence: 1 - float64(best)/float64(denom)}
	c.SetJSON(ctx, cache.NSDomainSuggestion, domain, &s, 0)
	return s, true
}

// Distance is the Levenshtein edit distance, two-row dynamic programming.
func Distance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
