package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/nofone/solmatch/internal/company"
	"github.com/nofone/solmatch/internal/solicitation"
)

// Weights distribute the composite score across the structural factors.
type Weights struct {
	NAICS     float64 `mapstructure:"naics"`
	SetAside  float64 `mapstructure:"set-aside"`
	Clearance float64 `mapstructure:"clearance"`
	Keywords  float64 `mapstructure:"keywords"`
}

// DefaultWeights mirror the operational defaults used by analysts.
func DefaultWeights() Weights {
	return Weights{
		NAICS:     0.35,
		SetAside:  0.20,
		Clearance: 0.20,
		Keywords:  0.25,
	}
}

// Validate checks that the weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"naics":     w.NAICS,
		"set-aside": w.SetAside,
		"clearance": w.Clearance,
		"keywords":  w.Keywords,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must not be negative", name)
		}
	}

	sum := w.NAICS + w.SetAside + w.Clearance + w.Keywords
	if math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("weights must sum to 1.0, got %.3f", sum)
	}
	return nil
}

// Factors is the contributing-factor breakdown of a match score.
type Factors struct {
	NAICS     float64 `json:"naics"`
	SetAside  float64 `json:"set_aside"`
	Clearance float64 `json:"clearance"`
	Keywords  float64 `json:"keywords"`
}

// Score is the structural match result for one company. Computed fresh per
// request; never persisted.
type Score struct {
	CompanyID string   `json:"company_id"`
	Value     float64  `json:"value"`
	Factors   Factors  `json:"factors"`
	Strengths []string `json:"strengths"`
	Gaps      []string `json:"gaps"`
}

// Candidate pairs a shortlisted profile with its score.
type Candidate struct {
	Profile *company.Profile
	Score   *Score
}

// hardCap limits the composite score when a hard requirement (set-aside
// eligibility, required clearance) is not met, regardless of other factors.
const hardCap = 0.49

type Matcher struct {
	weights Weights
	logger  *zap.Logger
}

func New(weights Weights, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{weights: weights, logger: logger}
}

// Shortlist scores every profile against the request and returns the top
// req.TopK candidates, ordered by score descending with ties broken by
// company ID ascending. Companies with zero structural overlap are excluded
// unless the request disables filtering. Pure function of its inputs.
func (m *Matcher) Shortlist(req *solicitation.Request, profiles []*company.Profile) []Candidate {
	candidates := make([]Candidate, 0, len(profiles))
	excluded := 0

	for _, profile := range profiles {
		score := m.Evaluate(req, profile)
		if !req.DisableFiltering && zeroOverlap(req, score.Factors) {
			excluded++
			continue
		}
		candidates = append(candidates, Candidate{Profile: profile, Score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score.Value != candidates[j].Score.Value {
			return candidates[i].Score.Value > candidates[j].Score.Value
		}
		return candidates[i].Score.CompanyID < candidates[j].Score.CompanyID
	})

	if len(candidates) > req.TopK {
		candidates = candidates[:req.TopK]
	}

	m.logger.Info("shortlist computed",
		zap.Int("candidates", len(profiles)),
		zap.Int("excluded", excluded),
		zap.Int("shortlisted", len(candidates)),
	)

	return candidates
}

// Evaluate computes the weighted structural score for a single company.
func (m *Matcher) Evaluate(req *solicitation.Request, profile *company.Profile) *Score {
	factors := Factors{
		NAICS:     scoreNAICS(req, profile),
		SetAside:  scoreSetAside(req, profile),
		Clearance: scoreClearance(req, profile),
		Keywords:  scoreKeywords(req, profile),
	}

	total := m.weights.NAICS*factors.NAICS +
		m.weights.SetAside*factors.SetAside +
		m.weights.Clearance*factors.Clearance +
		m.weights.Keywords*factors.Keywords

	if !meetsSetAside(req, profile) {
		total = math.Min(total, hardCap)
	}
	if !meetsClearance(req, profile) {
		total = math.Min(total, hardCap)
	}

	score := &Score{
		CompanyID: profile.ID,
		Value:     clamp01(total),
		Factors:   factors,
	}
	score.Strengths, score.Gaps = describe(req, factors)

	return score
}

func describe(req *solicitation.Request, f Factors) (strengths, gaps []string) {
	if f.NAICS >= 1 {
		strengths = append(strengths, "NAICS match")
	} else if len(req.NAICSCodes) > 0 {
		gaps = append(gaps, "NAICS mismatch")
	}

	if f.SetAside >= 1 {
		strengths = append(strengths, "Set-aside eligible")
	} else if len(req.SetAsides) > 0 {
		gaps = append(gaps, "Set-aside eligibility gap")
	}

	if f.Clearance >= 1 {
		strengths = append(strengths, "Required clearance held")
	} else if len(req.Clearances) > 0 {
		gaps = append(gaps, "Missing required clearance")
	}

	if f.Keywords >= 0.6 {
		strengths = append(strengths, "Keyword alignment")
	} else if len(req.Keywords) > 0 {
		gaps = append(gaps, "Limited keyword alignment")
	}

	return strengths, gaps
}

// zeroOverlap reports whether a company shares no structural signal at all
// with the solicitation. Only criteria the request actually names count;
// the neutral placeholder score for an absent criterion is not overlap.
func zeroOverlap(req *solicitation.Request, f Factors) bool {
	if len(req.NAICSCodes) > 0 && f.NAICS > 0 {
		return false
	}
	if len(req.Clearances) > 0 && f.Clearance > 0 {
		return false
	}
	if len(req.Keywords) > 0 && f.Keywords > 0 {
		return false
	}
	return true
}

func scoreNAICS(req *solicitation.Request, profile *company.Profile) float64 {
	if len(req.NAICSCodes) == 0 {
		return 0.5
	}
	if overlaps(req.NAICSCodes, profile.NAICSCodes) {
		return 1.0
	}
	return 0.0
}

func scoreSetAside(req *solicitation.Request, profile *company.Profile) float64 {
	if len(req.SetAsides) == 0 {
		return 0.5
	}
	if overlaps(req.SetAsides, profile.SetAsideStatuses) {
		return 1.0
	}
	return 0.0
}

func scoreClearance(req *solicitation.Request, profile *company.Profile) float64 {
	if len(req.Clearances) == 0 {
		return 0.5
	}
	held := toSet(profile.Clearances)
	covered := 0
	for _, required := range req.Clearances {
		if _, ok := held[strings.ToLower(strings.TrimSpace(required))]; ok {
			covered++
		}
	}
	return float64(covered) / float64(len(req.Clearances))
}

func scoreKeywords(req *solicitation.Request, profile *company.Profile) float64 {
	if len(req.Keywords) == 0 {
		if len(profile.Capabilities) > 0 || len(profile.Keywords) > 0 {
			return 0.3
		}
		return 0.0
	}

	haystack := toSet(profile.Keywords)
	for _, cap := range profile.Capabilities {
		for _, token := range strings.Fields(strings.ToLower(cap)) {
			haystack[token] = struct{}{}
		}
		haystack[strings.ToLower(strings.TrimSpace(cap))] = struct{}{}
	}
	for _, token := range strings.Fields(strings.ToLower(profile.Description)) {
		haystack[strings.Trim(token, ".,;:()")] = struct{}{}
	}

	hits := 0
	for _, kw := range req.Keywords {
		if _, ok := haystack[strings.ToLower(strings.TrimSpace(kw))]; ok {
			hits++
		}
	}
	return math.Min(1.0, float64(hits)/float64(len(req.Keywords)))
}

func meetsSetAside(req *solicitation.Request, profile *company.Profile) bool {
	if len(req.SetAsides) == 0 {
		return true
	}
	return overlaps(req.SetAsides, profile.SetAsideStatuses)
}

func meetsClearance(req *solicitation.Request, profile *company.Profile) bool {
	if len(req.Clearances) == 0 {
		return true
	}
	held := toSet(profile.Clearances)
	for _, required := range req.Clearances {
		if _, ok := held[strings.ToLower(strings.TrimSpace(required))]; !ok {
			return false
		}
	}
	return true
}

func overlaps(a, b []string) bool {
	set := toSet(b)
	for _, item := range a {
		if _, ok := set[strings.ToLower(strings.TrimSpace(item))]; ok {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			set[item] = struct{}{}
		}
	}
	return set
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}
