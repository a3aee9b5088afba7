package narrative

import "strings"

// Provenance records whether a narrative came from the generative capability
// or from deterministic fallback synthesis.
type Provenance string

const (
	ProvenanceGenerated Provenance = "generated"
	ProvenanceFallback  Provenance = "fallback"
)

// Structural contract constants. The first paragraph addresses agency and
// mission fit, the second paragraph addresses capability-to-requirement fit.
const (
	LeadInResearch = "Our research indicates"
	LeadInAnalysts = "Our analysts show"

	DefaultMinWords = 80
	DefaultMaxWords = 150
)

// Narrative is the validated two-paragraph alignment summary. It is built
// exactly once, by validation accept or by fallback synthesis, and never
// mutated afterwards.
type Narrative struct {
	Paragraphs [2]string  `json:"paragraphs"`
	WordCounts [2]int     `json:"word_counts"`
	Provenance Provenance `json:"provenance"`
}

// Text renders the narrative as plain text with a blank line between the
// paragraphs.
func (n *Narrative) Text() string {
	return n.Paragraphs[0] + "\n\n" + n.Paragraphs[1]
}

func newNarrative(first, second string, provenance Provenance) *Narrative {
	return &Narrative{
		Paragraphs: [2]string{first, second},
		WordCounts: [2]int{wordCount(first), wordCount(second)},
		Provenance: provenance,
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// limitWords truncates s to at most n words. Used to cap fact fragments so
// synthesized paragraphs stay inside the word-count band by construction.
func limitWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) <= n {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:n], " ")
}

// hasLeadIn reports whether the paragraph opens with the given lead-in
// phrase, case-insensitively and tolerating irregular whitespace.
func hasLeadIn(paragraph, leadIn string) bool {
	normalized := strings.ToLower(strings.Join(strings.Fields(paragraph), " "))
	want := strings.ToLower(strings.Join(strings.Fields(leadIn), " "))
	return strings.HasPrefix(normalized, want)
}
