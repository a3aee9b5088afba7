// Package report assembles per-company assessment reports from the match
// score, enrichment context, and finalized narrative.
package report

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nofone/solmatch/internal/company"
	"github.com/nofone/solmatch/internal/enrichment"
	"github.com/nofone/solmatch/internal/matching"
	"github.com/nofone/solmatch/internal/narrative"
	"github.com/nofone/solmatch/internal/solicitation"
	"github.com/nofone/solmatch/internal/website"
)

// RiskLevel grades the pursuit risk for one company on one solicitation.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Score bands separating the risk levels.
const (
	strongFitThreshold   = 0.75
	moderateFitThreshold = 0.50
)

// SWOT holds the four assessment quadrants. Quadrants may be empty; the
// struct itself is always present on a company result.
type SWOT struct {
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
}

// CompanyResult is the terminal per-company output of a pipeline run.
type CompanyResult struct {
	CompanyID           string               `json:"company_id"`
	CompanyName         string               `json:"company_name"`
	Score               float64              `json:"score"`
	Factors             matching.Factors     `json:"factors"`
	Risk                RiskLevel            `json:"risk"`
	RecommendedAction   string               `json:"recommended_action"`
	SWOT                SWOT                 `json:"swot"`
	Narrative           *narrative.Narrative `json:"narrative"`
	EnrichmentSummary   string               `json:"enrichment_summary,omitempty"`
	EnrichmentDegraded  bool                 `json:"enrichment_degraded"`
	NarrativeProvenance narrative.Provenance `json:"narrative_provenance"`
	WebsiteValidation   *website.Validation  `json:"website_validation,omitempty"`
}

// AggregationError signals that the inputs handed to the aggregator do not
// describe the same company. It indicates a wiring bug, not bad data.
type AggregationError struct {
	ScoreID   string
	ProfileID string
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation mismatch: score is for company %s, profile is %s", e.ScoreID, e.ProfileID)
}

// Aggregator builds CompanyResults. Stateless apart from its logger.
type Aggregator struct {
	logger *zap.Logger
}

func NewAggregator(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{logger: logger}
}

// Build assembles the report for one company. Deterministic: the same
// inputs always yield the same result. The narrative must already be
// finalized and contract-compliant.
func (a *Aggregator) Build(req *solicitation.Request, profile *company.Profile, score *matching.Score, enr *enrichment.Context, nar *narrative.Narrative, wv *website.Validation, enrichmentDegraded bool) (*CompanyResult, error) {
	if score.CompanyID != profile.ID {
		return nil, &AggregationError{ScoreID: score.CompanyID, ProfileID: profile.ID}
	}

	risk, action := grade(score.Value)

	swot := SWOT{
		Strengths:  append([]string(nil), score.Strengths...),
		Weaknesses: append([]string(nil), score.Gaps...),
	}

	if len(req.Clearances) > 0 && score.Factors.Clearance < 1.0 {
		swot.Weaknesses = append(swot.Weaknesses,
			"does not hold every clearance the solicitation requires")
		risk = elevate(risk)
	}

	if !enr.Empty() {
		swot.Strengths = append(swot.Strengths,
			fmt.Sprintf("federal award history on record: %s", enr.Summary))
	}
	if enrichmentDegraded {
		swot.Threats = append(swot.Threats,
			"award history lookup was unavailable; assessment may understate past performance")
	}

	applyWebsiteValidation(&swot, wv)

	result := &CompanyResult{
		CompanyID:          profile.ID,
		CompanyName:        profile.Name,
		Score:              score.Value,
		Factors:            score.Factors,
		Risk:               risk,
		RecommendedAction:  action,
		SWOT:               swot,
		Narrative:          nar,
		EnrichmentDegraded: enrichmentDegraded,
		WebsiteValidation:  wv,
	}

	if enr != nil {
		result.EnrichmentSummary = enr.Summary
	}

	if nar != nil {
		result.NarrativeProvenance = nar.Provenance
		if nar.Provenance == narrative.ProvenanceFallback {
			result.SWOT.Opportunities = append(result.SWOT.Opportunities,
				"alignment narrative was synthesized from structured facts; a capture-team review may surface additional fit")
		}
	}

	a.logger.Debug("assembled company report",
		zap.String("company_id", profile.ID),
		zap.Float64("score", score.Value),
		zap.String("risk", string(result.Risk)),
	)

	return result, nil
}

// applyWebsiteValidation folds the website check into the SWOT quadrants:
// confirmations are strengths, critical gaps are weaknesses, partnering
// suggestions are opportunities, and an unverifiable website is a threat.
func applyWebsiteValidation(swot *SWOT, wv *website.Validation) {
	if wv == nil {
		return
	}

	if !wv.Accessible {
		swot.Threats = append(swot.Threats,
			"claimed capabilities could not be verified against a company website")
		return
	}

	if len(wv.Confirmed) > 0 {
		swot.Strengths = append(swot.Strengths,
			fmt.Sprintf("company website confirms claimed capabilities: %s", strings.Join(wv.Confirmed, ", ")))
	}
	for _, gap := range wv.Gaps {
		if gap.Severity >= 0.7 {
			swot.Weaknesses = append(swot.Weaknesses, gap.Description)
		}
	}
	for _, opp := range wv.Opportunities {
		swot.Opportunities = append(swot.Opportunities,
			fmt.Sprintf("%s: %s", opp.Type, opp.Suggestion))
	}
}

func grade(score float64) (RiskLevel, string) {
	switch {
	case score >= strongFitThreshold:
		return RiskLow, "pursue as prime"
	case score >= moderateFitThreshold:
		return RiskMedium, "pursue with a teaming partner covering the gap areas"
	default:
		return RiskHigh, "monitor only; do not bid without closing the identified gaps"
	}
}

func elevate(r RiskLevel) RiskLevel {
	switch r {
	case RiskLow:
		return RiskMedium
	case RiskMedium:
		return RiskHigh
	default:
		return RiskHigh
	}
}
