// Package subject maps free-form subject labels onto a caller-supplied
// vocabulary of canonical subject names.
package subject

import "strings"

// General is the sentinel subject used when nothing in the vocabulary fits.
const General = "General"

// synonyms maps common shorthand labels to canonical lowercase subject names.
// The mapped name is then re-matched exactly against the caller's vocabulary.
var synonyms = map[string]string{
	"ml":                      "machine learning",
	"ai":                      "machine learning",
	"artificial intelligence": "machine learning",
	"dl":                      "deep learning",
	"neural networks":         "deep learning",
	"neural network":          "deep learning",
	"literature":              "english",
	"shakespeare":             "english",
	"poetry":                  "english",
	"writing":                 "english",
	"math":                    "mathematics",
	"calculus":                "mathematics",
	"algebra":                 "mathematics",
	"physics":                 "physics",
	"chemistry":               "chemistry",
	"biology":                 "biology",
	"history":                 "history",
	"science":                 "general science",
}

// Resolve maps label onto one of the vocabulary entries, trying strategies in
// strict priority order: exact match, substring containment both ways,
// token overlap, then the synonym table. Earlier strategies are strictly more
// precise and always win. Returns "" when nothing matches.
func Resolve(label string, vocabulary []string) string {
	label = strings.TrimSpace(label)
	if label == "" || len(vocabulary) == 0 {
		return ""
	}
	lower := strings.ToLower(label)

	// Exact match, case insensitive.
	for _, v := range vocabulary {
		if strings.ToLower(v) == lower {
			return v
		}
	}

	// Label contains a vocabulary entry.
	for _, v := range vocabulary {
		if strings.Contains(lower, strings.ToLower(v)) {
			return v
		}
	}

	// Vocabulary entry contains the label.
	for _, v := range vocabulary {
		if strings.Contains(strings.ToLower(v), lower) {
			return v
		}
	}

	if match := bestTokenOverlap(lower, vocabulary); match != "" {
		return match
	}

	if mapped, ok := synonyms[lower]; ok {
		for _, v := range vocabulary {
			if strings.ToLower(v) == mapped {
				return v
			}
		}
	}

	return ""
}

// bestTokenOverlap scores each vocabulary entry by shared whitespace-separated
// tokens: |intersection| / max(|label tokens|, |entry tokens|). Entries scoring
// at least 0.5 are candidates; the highest score wins, earlier entries break ties.
func bestTokenOverlap(lowerLabel string, vocabulary []string) string {
	labelTokens := tokenSet(lowerLabel)
	if len(labelTokens) == 0 {
		return ""
	}

	var best string
	var bestScore float64

	for _, v := range vocabulary {
		entryTokens := tokenSet(strings.ToLower(v))
		common := 0
		for tok := range labelTokens {
			if entryTokens[tok] {
				common++
			}
		}
		if common == 0 {
			continue
		}

		denom := len(labelTokens)
		if len(entryTokens) > denom {
			denom = len(entryTokens)
		}
		score := float64(common) / float64(denom)
		if score >= 0.5 && score > bestScore {
			bestScore = score
			best = v
		}
	}

	return best
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}
