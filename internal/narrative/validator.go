package narrative

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nofone/solmatch/internal/company"
	"github.com/nofone/solmatch/internal/enrichment"
	"github.com/nofone/solmatch/internal/solicitation"
)

var (
	blankLineRx   = regexp.MustCompile(`\n[ \t]*\n`)
	manyNewlineRx = regexp.MustCompile(`\n{3,}`)
)

// minFallbackSplitLen is the minimum character length for a line to count as
// a paragraph when only single newlines separate the text.
const minFallbackSplitLen = 50

// Repair normalizes the escaping artifacts that appear when model output is
// carried inside a JSON string value: literal backslash-n sequences, code
// fences, CRLF line endings, and runs of blank lines. Idempotent: repairing
// already-repaired text is a no-op.
func Repair(raw string) string {
	s := raw
	// Every transformation strictly shrinks the text, so the fixpoint is
	// reached in a bounded number of passes and Repair(Repair(x)) ==
	// Repair(x) holds for any input.
	for {
		next := repairOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func repairOnce(raw string) string {
	s := strings.TrimSpace(raw)

	s = stripCodeFence(s)

	// A quoted JSON string containing literal \n sequences is decoded
	// wholesale; the decoded form no longer starts with a quote, so a
	// second pass leaves it alone.
	if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && strings.Contains(s, `\n`) {
		if decoded, err := strconv.Unquote(s); err == nil {
			s = decoded
		}
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, `\r\n`, "\n")
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\t`, " ")

	s = manyNewlineRx.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSpace(s)
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// SplitParagraphs recovers paragraphs from repaired text: blank-line
// boundaries first, falling back to single newlines when the model emitted
// the paragraphs on adjacent lines.
func SplitParagraphs(s string) []string {
	parts := collectNonEmpty(blankLineRx.Split(s, -1), 0)
	if len(parts) >= 2 {
		return parts
	}
	if single := collectNonEmpty(strings.Split(s, "\n"), minFallbackSplitLen); len(single) >= 2 {
		return single
	}
	return parts
}

func collectNonEmpty(parts []string, minLen int) []string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || len(part) < minLen {
			continue
		}
		out = append(out, part)
	}
	return out
}

// Validator checks raw generator output against the structural contract and
// synthesizes a compliant fallback when the output misbehaves. Malformed
// text is an expected, handled condition and never an error.
type Validator struct {
	minWords int
	maxWords int
	logger   *zap.Logger
}

func NewValidator(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		minWords: DefaultMinWords,
		maxWords: DefaultMaxWords,
		logger:   logger,
	}
}

// Check repairs and parses raw text and reports every structural violation.
// An empty problems slice means the text satisfies the contract and the
// returned paragraphs are usable.
func (v *Validator) Check(raw string) (paragraphs [2]string, problems []string) {
	repaired := Repair(raw)
	if repaired == "" {
		return paragraphs, []string{"empty text"}
	}

	parts := SplitParagraphs(repaired)
	if len(parts) != 2 {
		return paragraphs, []string{fmt.Sprintf("expected 2 paragraphs, found %d", len(parts))}
	}

	leadIns := [2]string{LeadInResearch, LeadInAnalysts}
	for i, part := range parts {
		paragraphs[i] = part

		if count := wordCount(part); count < v.minWords || count > v.maxWords {
			problems = append(problems, fmt.Sprintf(
				"paragraph %d has %d words, want %d-%d", i+1, count, v.minWords, v.maxWords))
		}
		if !hasLeadIn(part, leadIns[i]) {
			problems = append(problems, fmt.Sprintf(
				"paragraph %d does not open with %q", i+1, leadIns[i]))
		}
	}

	return paragraphs, problems
}

// Finalize turns raw generator output into the terminal Narrative: accepted
// as generated when the contract holds, replaced by deterministic fallback
// synthesis otherwise. The returned narrative always satisfies the contract.
func (v *Validator) Finalize(raw string, req *solicitation.Request, profile *company.Profile, enr *enrichment.Context) *Narrative {
	paragraphs, problems := v.Check(raw)
	if len(problems) == 0 {
		return newNarrative(paragraphs[0], paragraphs[1], ProvenanceGenerated)
	}

	v.logger.Info("generated narrative failed validation; synthesizing fallback",
		zap.String("company_id", profile.ID),
		zap.Strings("problems", problems),
	)

	return Synthesize(req, profile, enr)
}
