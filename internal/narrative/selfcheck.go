package narrative

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/nofone/solmatch/internal/company"
	"github.com/nofone/solmatch/internal/solicitation"
)

// Known-good model output with the escape artifacts generative backends
// commonly produce: literal \n sequences instead of real newlines.
const selfCheckGood = "Our research indicates that Meridian Data Systems aligns closely with the Defense Logistics Agency's supply chain modernization program. The company has concentrated its federal work on logistics data integration for more than a decade, and its stated mission of improving visibility across distributed inventory networks speaks directly to the program's central objective. The agency has signaled a sustained investment in predictive readiness tooling, and Meridian's focus on operational analytics for defense customers positions it inside that investment area rather than adjacent to it. Prior engagements with component commands suggest familiarity with the agency's data governance expectations, which reduces onboarding friction for a program of this scope and supports a credible mission fit overall.\\n\\nOur analysts show that Meridian Data Systems' capabilities in data pipeline engineering, inventory forecasting, and secure systems integration map directly to the solicitation's stated requirements. The company holds the certifications the solicitation lists as mandatory, and its cleared staff satisfy the facility clearance threshold without requiring sponsorship. Past performance includes two completed task orders of comparable size with measurable on time delivery, which addresses the evaluation criteria around demonstrated execution. The keyword overlap between the company's capability statement and the solicitation's technical sections is substantial, covering forecasting models, interface modernization, and continuous monitoring. Taken together, these factors indicate the company can meet the technical requirements as written and can staff the effort from its existing bench."

// Known-bad output: single run-on paragraph without the second lead-in.
const selfCheckBad = "Our research indicates a fit. The company does good work and has been around for a while and the agency would probably like them."

// SelfCheck exercises the repair, validation, and fallback paths against
// embedded fixtures. It is wired to a CLI subcommand so an operator can
// verify the structural contract without network access or credentials.
func SelfCheck() error {
	v := NewValidator(zap.NewNop())

	paras, problems := v.Check(selfCheckGood)
	if len(problems) != 0 {
		return fmt.Errorf("known-good sample rejected: %v", problems)
	}
	for i, p := range paras {
		if n := wordCount(p); n < DefaultMinWords || n > DefaultMaxWords {
			return fmt.Errorf("known-good sample paragraph %d has %d words, want %d-%d", i+1, n, DefaultMinWords, DefaultMaxWords)
		}
	}
	if !hasLeadIn(paras[0], LeadInResearch) || !hasLeadIn(paras[1], LeadInAnalysts) {
		return fmt.Errorf("known-good sample lost its lead-ins after repair")
	}

	if _, problems := v.Check(selfCheckBad); len(problems) == 0 {
		return fmt.Errorf("known-bad sample passed validation")
	}

	repaired := Repair(selfCheckGood)
	if again := Repair(repaired); again != repaired {
		return fmt.Errorf("repair is not idempotent on the known-good sample")
	}

	req := &solicitation.Request{
		Title:    "Supply Chain Data Modernization",
		Agency:   "Defense Logistics Agency",
		Program:  "Readiness Analytics",
		Keywords: []string{"forecasting", "integration"},
	}
	profile := &company.Profile{
		ID:           "selfcheck-co",
		Name:         "Meridian Data Systems",
		Capabilities: []string{"data pipeline engineering", "inventory forecasting"},
	}
	fb := Synthesize(req, profile, nil)
	if fb.Provenance != ProvenanceFallback {
		return fmt.Errorf("fallback narrative has provenance %q", fb.Provenance)
	}
	for i, p := range fb.Paragraphs {
		if n := wordCount(p); n < DefaultMinWords || n > DefaultMaxWords {
			return fmt.Errorf("fallback paragraph %d has %d words, want %d-%d", i+1, n, DefaultMinWords, DefaultMaxWords)
		}
	}
	if !hasLeadIn(fb.Paragraphs[0], LeadInResearch) || !hasLeadIn(fb.Paragraphs[1], LeadInAnalysts) {
		return fmt.Errorf("fallback narrative is missing a required lead-in")
	}

	return nil
}
