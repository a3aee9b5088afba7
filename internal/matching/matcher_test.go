package matching

import (
	"testing"

	"go.uber.org/zap"

	"github.com/nofone/solmatch/internal/company"
	"github.com/nofone/solmatch/internal/solicitation"
)

func newRequest() *solicitation.Request {
	return &solicitation.Request{
		Title:      "Cyber Support",
		Agency:     "DISA",
		NAICSCodes: []string{"541512"},
		Keywords:   []string{"cybersecurity", "cloud"},
		TopK:       5,
	}
}

func fullMatch(id string) *company.Profile {
	return &company.Profile{
		ID:         id,
		Name:       "Full Match " + id,
		NAICSCodes: []string{"541512"},
		Keywords:   []string{"cybersecurity", "cloud"},
	}
}

func TestWeightsValidate(t *testing.T) {
	t.Parallel()

	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights invalid: %v", err)
	}

	bad := Weights{NAICS: 0.5, SetAside: 0.5, Clearance: 0.5, Keywords: 0.5}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for weights summing to 2.0")
	}

	negative := Weights{NAICS: -0.1, SetAside: 0.5, Clearance: 0.3, Keywords: 0.3}
	if err := negative.Validate(); err == nil {
		t.Fatal("expected error for negative weight")
	}
}

func TestEvaluateFullMatch(t *testing.T) {
	t.Parallel()

	m := New(DefaultWeights(), zap.NewNop())
	score := m.Evaluate(newRequest(), fullMatch("c1"))

	// naics 1.0*0.35 + set-aside 0.5*0.20 + clearance 0.5*0.20 + keywords 1.0*0.25
	want := 0.35 + 0.10 + 0.10 + 0.25
	if diff := score.Value - want; diff > 0.001 || diff < -0.001 {
		t.Fatalf("score = %.3f, want %.3f", score.Value, want)
	}
	if len(score.Gaps) != 0 {
		t.Fatalf("unexpected gaps: %v", score.Gaps)
	}
}

func TestEvaluateHardCaps(t *testing.T) {
	t.Parallel()

	m := New(DefaultWeights(), zap.NewNop())

	t.Run("unmet set-aside requirement caps the score", func(t *testing.T) {
		t.Parallel()
		req := newRequest()
		req.SetAsides = []string{"SDVOSB"}

		p := fullMatch("c1")
		score := m.Evaluate(req, p)
		if score.Value > 0.49 {
			t.Fatalf("score %.3f exceeds hard cap", score.Value)
		}
	})

	t.Run("unmet clearance requirement caps the score", func(t *testing.T) {
		t.Parallel()
		req := newRequest()
		req.Clearances = []string{"Top Secret"}

		score := m.Evaluate(req, fullMatch("c1"))
		if score.Value > 0.49 {
			t.Fatalf("score %.3f exceeds hard cap", score.Value)
		}
	})

	t.Run("met requirement lifts the cap", func(t *testing.T) {
		t.Parallel()
		req := newRequest()
		req.Clearances = []string{"Top Secret"}

		p := fullMatch("c1")
		p.Clearances = []string{"Top Secret"}
		score := m.Evaluate(req, p)
		if score.Value <= 0.49 {
			t.Fatalf("score %.3f unexpectedly capped", score.Value)
		}
	})
}

func TestShortlistOrderingAndTiebreak(t *testing.T) {
	t.Parallel()

	m := New(DefaultWeights(), zap.NewNop())
	req := newRequest()

	partial := &company.Profile{
		ID:         "a-partial",
		Name:       "Partial",
		NAICSCodes: []string{"541512"},
	}
	profiles := []*company.Profile{fullMatch("c2"), partial, fullMatch("c1")}

	got := m.Shortlist(req, profiles)
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	// Equal scores fall back to ID ascending.
	if got[0].Profile.ID != "c1" || got[1].Profile.ID != "c2" {
		t.Fatalf("tie not broken by ID: %s, %s", got[0].Profile.ID, got[1].Profile.ID)
	}
	if got[2].Profile.ID != "a-partial" {
		t.Fatalf("expected partial match last, got %s", got[2].Profile.ID)
	}
}

func TestShortlistExcludesZeroOverlap(t *testing.T) {
	t.Parallel()

	m := New(DefaultWeights(), zap.NewNop())
	req := newRequest()

	unrelated := &company.Profile{ID: "x1", Name: "Unrelated", NAICSCodes: []string{"236220"}}

	got := m.Shortlist(req, []*company.Profile{fullMatch("c1"), unrelated})
	if len(got) != 1 || got[0].Profile.ID != "c1" {
		t.Fatalf("expected unrelated company excluded, got %d candidates", len(got))
	}

	req.DisableFiltering = true
	got = m.Shortlist(req, []*company.Profile{fullMatch("c1"), unrelated})
	if len(got) != 2 {
		t.Fatalf("expected filtering disabled to keep both, got %d", len(got))
	}
}

func TestShortlistTruncatesToTopK(t *testing.T) {
	t.Parallel()

	m := New(DefaultWeights(), zap.NewNop())
	req := newRequest()
	req.TopK = 2

	profiles := []*company.Profile{fullMatch("c1"), fullMatch("c2"), fullMatch("c3")}
	got := m.Shortlist(req, profiles)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Profile.ID != "c1" || got[1].Profile.ID != "c2" {
		t.Fatalf("unexpected truncation order: %s, %s", got[0].Profile.ID, got[1].Profile.ID)
	}
}

func TestDescribeGaps(t *testing.T) {
	t.Parallel()

	m := New(DefaultWeights(), zap.NewNop())
	req := newRequest()
	req.Clearances = []string{"Secret"}

	p := &company.Profile{
		ID:         "c1",
		NAICSCodes: []string{"541512"},
	}
	score := m.Evaluate(req, p)

	if !contains(score.Strengths, "NAICS match") {
		t.Fatalf("strengths %v missing NAICS match", score.Strengths)
	}
	if !contains(score.Gaps, "Missing required clearance") {
		t.Fatalf("gaps %v missing clearance gap", score.Gaps)
	}
	if !contains(score.Gaps, "Limited keyword alignment") {
		t.Fatalf("gaps %v missing keyword gap", score.Gaps)
	}
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
