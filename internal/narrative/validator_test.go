package narrative

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nofone/solmatch/internal/company"
	"github.com/nofone/solmatch/internal/solicitation"
)

func TestRepair(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "plain text untouched",
			input:  "First paragraph.\n\nSecond paragraph.",
			expect: "First paragraph.\n\nSecond paragraph.",
		},
		{
			name:   "literal escaped newlines",
			input:  `First paragraph.\n\nSecond paragraph.`,
			expect: "First paragraph.\n\nSecond paragraph.",
		},
		{
			name:   "crlf line endings",
			input:  "First paragraph.\r\n\r\nSecond paragraph.",
			expect: "First paragraph.\n\nSecond paragraph.",
		},
		{
			name:   "code fence stripped",
			input:  "```text\nFirst paragraph.\n\nSecond paragraph.\n```",
			expect: "First paragraph.\n\nSecond paragraph.",
		},
		{
			name:   "quoted json string decoded",
			input:  `"First paragraph.\n\nSecond paragraph."`,
			expect: "First paragraph.\n\nSecond paragraph.",
		},
		{
			name:   "runs of blank lines collapsed",
			input:  "First paragraph.\n\n\n\n\nSecond paragraph.",
			expect: "First paragraph.\n\nSecond paragraph.",
		},
		{
			name:   "surrounding whitespace trimmed",
			input:  "   text   ",
			expect: "text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Repair(tt.input)
			if got != tt.expect {
				t.Fatalf("Repair(%q) = %q, want %q", tt.input, got, tt.expect)
			}
			if again := Repair(got); again != got {
				t.Fatalf("Repair not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestRepairIdempotentOnHostileInput(t *testing.T) {
	t.Parallel()

	// Inputs chosen to trip a single-pass normalizer.
	inputs := []string{
		"``` ```inner```",
		`""already quoted\n""`,
		"```\n```\n```",
		`"\"nested\\nescapes\""`,
		"",
		"\\n\\n\\n\\n",
	}

	for _, input := range inputs {
		once := Repair(input)
		if twice := Repair(once); twice != once {
			t.Fatalf("Repair not idempotent on %q: %q -> %q", input, once, twice)
		}
	}
}

func TestSplitParagraphs(t *testing.T) {
	t.Parallel()

	t.Run("blank line boundary", func(t *testing.T) {
		t.Parallel()
		parts := SplitParagraphs("one\n\ntwo")
		if len(parts) != 2 || parts[0] != "one" || parts[1] != "two" {
			t.Fatalf("unexpected parts: %v", parts)
		}
	})

	t.Run("single newline fallback needs substantial lines", func(t *testing.T) {
		t.Parallel()
		long1 := strings.Repeat("alpha ", 12)
		long2 := strings.Repeat("bravo ", 12)
		parts := SplitParagraphs(strings.TrimSpace(long1) + "\n" + strings.TrimSpace(long2))
		if len(parts) != 2 {
			t.Fatalf("expected fallback split into 2, got %d", len(parts))
		}
	})

	t.Run("short lines do not trigger the fallback", func(t *testing.T) {
		t.Parallel()
		parts := SplitParagraphs("one\ntwo")
		if len(parts) != 1 {
			t.Fatalf("expected 1 part, got %d: %v", len(parts), parts)
		}
	})
}

func TestValidatorCheck(t *testing.T) {
	t.Parallel()

	v := NewValidator(zap.NewNop())

	t.Run("accepts compliant text with escape artifacts", func(t *testing.T) {
		t.Parallel()
		paragraphs, problems := v.Check(selfCheckGood)
		if len(problems) != 0 {
			t.Fatalf("unexpected problems: %v", problems)
		}
		if !hasLeadIn(paragraphs[0], LeadInResearch) || !hasLeadIn(paragraphs[1], LeadInAnalysts) {
			t.Fatal("lead-ins lost during repair")
		}
	})

	t.Run("rejects run-on single paragraph", func(t *testing.T) {
		t.Parallel()
		if _, problems := v.Check(selfCheckBad); len(problems) == 0 {
			t.Fatal("expected problems for single-paragraph text")
		}
	})

	t.Run("rejects swapped lead-ins", func(t *testing.T) {
		t.Parallel()
		parts := strings.SplitN(Repair(selfCheckGood), "\n\n", 2)
		swapped := parts[1] + "\n\n" + parts[0]
		_, problems := v.Check(swapped)
		if len(problems) != 2 {
			t.Fatalf("expected 2 lead-in problems, got %v", problems)
		}
	})

	t.Run("rejects empty text", func(t *testing.T) {
		t.Parallel()
		if _, problems := v.Check("   "); len(problems) == 0 {
			t.Fatal("expected problems for empty text")
		}
	})

	t.Run("lead-in check is case-insensitive", func(t *testing.T) {
		t.Parallel()
		lowered := strings.ToLower(Repair(selfCheckGood))
		if _, problems := v.Check(lowered); len(problems) != 0 {
			t.Fatalf("case variation rejected: %v", problems)
		}
	})
}

func TestValidatorFinalize(t *testing.T) {
	t.Parallel()

	v := NewValidator(zap.NewNop())
	req := &solicitation.Request{
		Title:    "Data Modernization",
		Agency:   "DLA",
		Keywords: []string{"forecasting"},
	}
	profile := &company.Profile{ID: "c1", Name: "Acme Analytics"}

	t.Run("compliant text kept as generated", func(t *testing.T) {
		t.Parallel()
		n := v.Finalize(selfCheckGood, req, profile, nil)
		if n.Provenance != ProvenanceGenerated {
			t.Fatalf("provenance = %s, want generated", n.Provenance)
		}
	})

	t.Run("malformed text replaced by fallback", func(t *testing.T) {
		t.Parallel()
		n := v.Finalize(selfCheckBad, req, profile, nil)
		if n.Provenance != ProvenanceFallback {
			t.Fatalf("provenance = %s, want fallback", n.Provenance)
		}
		assertContract(t, n)
	})

	t.Run("empty text replaced by fallback", func(t *testing.T) {
		t.Parallel()
		n := v.Finalize("", req, profile, nil)
		if n.Provenance != ProvenanceFallback {
			t.Fatalf("provenance = %s, want fallback", n.Provenance)
		}
		assertContract(t, n)
	})
}

// assertContract fails the test unless the narrative satisfies the full
// structural contract.
func assertContract(t *testing.T, n *Narrative) {
	t.Helper()

	for i, p := range n.Paragraphs {
		count := wordCount(p)
		if count < DefaultMinWords || count > DefaultMaxWords {
			t.Fatalf("paragraph %d has %d words, want %d-%d:\n%s", i+1, count, DefaultMinWords, DefaultMaxWords, p)
		}
		if n.WordCounts[i] != count {
			t.Fatalf("recorded word count %d != actual %d", n.WordCounts[i], count)
		}
	}
	if !hasLeadIn(n.Paragraphs[0], LeadInResearch) {
		t.Fatalf("paragraph 1 missing lead-in: %s", n.Paragraphs[0])
	}
	if !hasLeadIn(n.Paragraphs[1], LeadInAnalysts) {
		t.Fatalf("paragraph 2 missing lead-in: %s", n.Paragraphs[1])
	}
}
