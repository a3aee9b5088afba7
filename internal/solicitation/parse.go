package solicitation

import (
	"regexp"
	"sort"
	"strings"
)

// Extract holds the structured fields recovered from free solicitation text.
type Extract struct {
	NAICSCodes []string
	SetAsides  []string
	Clearances []string
	Keywords   []string
}

var naicsRx = regexp.MustCompile(`\b(5415[1-9]\d?|54\d{3}|3364\d|334\d{2}|6114\d|6211\d|6221\d)\b`)

// keywordRx matches candidate keyword tokens: a letter followed by at least
// three word characters or hyphens.
var keywordRx = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9\-]{3,}`)

var setAsideTerms = []string{"8(a)", "WOSB", "EDWOSB", "SDVOSB", "HUBZone", "Small Business"}

// Ordered longest-first so "Top Secret" wins over "Secret".
var clearanceTerms = []string{"TS/SCI", "Top Secret", "Public Trust", "Confidential", "Secret"}

var stopWords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "will": {}, "shall": {},
	"must": {}, "have": {}, "been": {}, "they": {}, "their": {}, "would": {},
	"should": {}, "could": {}, "which": {}, "these": {}, "those": {}, "there": {},
	"other": {}, "include": {}, "includes": {}, "including": {}, "provide": {},
	"provides": {}, "required": {}, "requirements": {}, "government": {},
	"contractor": {}, "solicitation": {}, "proposal": {}, "offeror": {},
}

const maxExtractedKeywords = 25

// ParseText runs the deterministic extractors over free solicitation text.
// It never fails; fields it cannot recover are simply empty.
func ParseText(text string) Extract {
	var ext Extract

	ext.NAICSCodes = uniqueSorted(naicsRx.FindAllString(text, -1))

	for _, term := range setAsideTerms {
		if containsFold(text, term) {
			ext.SetAsides = append(ext.SetAsides, term)
		}
	}

	for _, term := range clearanceTerms {
		if containsFold(text, term) {
			ext.Clearances = append(ext.Clearances, term)
			break
		}
	}

	ext.Keywords = extractKeywords(text)

	return ext
}

// extractKeywords keeps tokens that occur at least twice, excluding stop
// words, capped and ordered by frequency then alphabetically for determinism.
func extractKeywords(text string) []string {
	counts := make(map[string]int)
	for _, token := range keywordRx.FindAllString(text, -1) {
		token = strings.ToLower(token)
		if _, stop := stopWords[token]; stop {
			continue
		}
		counts[token]++
	}

	candidates := make([]string, 0, len(counts))
	for token, count := range counts {
		if count >= 2 {
			candidates = append(candidates, token)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if counts[candidates[i]] != counts[candidates[j]] {
			return counts[candidates[i]] > counts[candidates[j]]
		}
		return candidates[i] < candidates[j]
	})

	if len(candidates) > maxExtractedKeywords {
		candidates = candidates[:maxExtractedKeywords]
	}
	return candidates
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func uniqueSorted(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
