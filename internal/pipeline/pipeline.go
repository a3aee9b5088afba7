// Package pipeline orchestrates a full alignment run: normalize the
// solicitation, shortlist companies, then enrich, narrate, validate, and
// aggregate each shortlisted company concurrently.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nofone/solmatch/internal/company"
	"github.com/nofone/solmatch/internal/enrichment"
	"github.com/nofone/solmatch/internal/matching"
	"github.com/nofone/solmatch/internal/narrative"
	"github.com/nofone/solmatch/internal/report"
	"github.com/nofone/solmatch/internal/solicitation"
	"github.com/nofone/solmatch/internal/website"
)

// Failure policies for a company whose narrative generation fails outright.
const (
	OnFailureOmit    = "omit"
	OnFailureDegrade = "degrade"
)

const (
	defaultConcurrency    = 4
	defaultCompanyTimeout = 60 * time.Second
)

type Config struct {
	Concurrency    int           `mapstructure:"concurrency"`
	CompanyTimeout time.Duration `mapstructure:"company-timeout"`
	OnFailure      string        `mapstructure:"on-failure"`
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Concurrency <= 0 {
		out.Concurrency = defaultConcurrency
	}
	if out.CompanyTimeout <= 0 {
		out.CompanyTimeout = defaultCompanyTimeout
	}
	if out.OnFailure == "" {
		out.OnFailure = OnFailureOmit
	}
	return out
}

func (c *Config) Validate() error {
	switch c.OnFailure {
	case "", OnFailureOmit, OnFailureDegrade:
		return nil
	default:
		return fmt.Errorf("pipeline.on-failure must be %q or %q, got %q", OnFailureOmit, OnFailureDegrade, c.OnFailure)
	}
}

// Diagnostics counts what happened during a run. Every shortlisted company
// is accounted for as completed, degraded, or omitted.
type Diagnostics struct {
	Candidates         int      `json:"candidates"`
	Shortlisted        int      `json:"shortlisted"`
	Completed          int      `json:"completed"`
	FallbackUsed       int      `json:"fallback_used"`
	EnrichmentDegraded int      `json:"enrichment_degraded"`
	Degraded           int      `json:"degraded"`
	Omitted            int      `json:"omitted"`
	Failures           []string `json:"failures,omitempty"`
}

// Result is the terminal output of one pipeline run.
type Result struct {
	RunID       string                  `json:"run_id"`
	Request     *solicitation.Request   `json:"request"`
	Companies   []*report.CompanyResult `json:"companies"`
	Diagnostics Diagnostics             `json:"diagnostics"`
}

type Pipeline struct {
	directory  company.Directory
	matcher    *matching.Matcher
	enricher   *enrichment.Enricher
	webval     *website.Validator
	generator  *narrative.Generator
	validator  *narrative.Validator
	aggregator *report.Aggregator
	cfg        Config
	logger     *zap.Logger
}

func New(dir company.Directory, matcher *matching.Matcher, enricher *enrichment.Enricher, webval *website.Validator, gen *narrative.Generator, val *narrative.Validator, agg *report.Aggregator, cfg Config, log *zap.Logger) (*Pipeline, error) {
	if dir == nil {
		return nil, fmt.Errorf("company directory is required")
	}
	if matcher == nil {
		return nil, fmt.Errorf("matcher is required")
	}
	if val == nil {
		return nil, fmt.Errorf("narrative validator is required")
	}
	if agg == nil {
		return nil, fmt.Errorf("report aggregator is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		directory:  dir,
		matcher:    matcher,
		enricher:   enricher,
		webval:     webval,
		generator:  gen,
		validator:  val,
		aggregator: agg,
		cfg:        cfg.withDefaults(),
		logger:     log,
	}, nil
}

// companyOutcome is the per-worker result handed back to the run loop.
type companyOutcome struct {
	result  *report.CompanyResult
	failure string
	// degraded marks a company kept via the degrade policy after its
	// generation failed.
	degraded           bool
	enrichmentDegraded bool
}

// Run executes the full pipeline. Only a malformed solicitation or an
// unreadable directory aborts the run; per-company failures are isolated
// and recorded in the diagnostics.
func (p *Pipeline) Run(ctx context.Context, input *solicitation.Input) (*Result, error) {
	if input == nil {
		return nil, &solicitation.InputError{Reason: "solicitation input is required"}
	}

	req, err := solicitation.Normalize(*input)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := p.logger.With(zap.String("run_id", runID))

	profiles, err := p.directory.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list company directory: %w", err)
	}

	candidates := p.matcher.Shortlist(req, profiles)

	log.Info("starting company sub-pipelines",
		zap.String("title", req.Title),
		zap.String("agency", req.Agency),
		zap.Int("directory_size", len(profiles)),
		zap.Int("shortlisted", len(candidates)),
	)

	outcomes := make([]companyOutcome, len(candidates))

	var wg sync.WaitGroup
	sem := make(chan struct{}, p.cfg.Concurrency)
	for i, cand := range candidates {
		wg.Add(1)
		go func(i int, cand matching.Candidate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcomes[i] = p.processCompany(ctx, req, cand)
		}(i, cand)
	}
	wg.Wait()

	// A cancelled run is abandoned wholesale: sub-pipeline results are
	// discarded rather than reported as degraded completions.
	if err := ctx.Err(); err != nil {
		log.Warn("pipeline run cancelled; discarding partial results", zap.Error(err))
		return nil, fmt.Errorf("pipeline run cancelled: %w", err)
	}

	result := &Result{
		RunID:   runID,
		Request: req,
		Diagnostics: Diagnostics{
			Candidates:  len(profiles),
			Shortlisted: len(candidates),
		},
	}

	for _, out := range outcomes {
		if out.enrichmentDegraded {
			result.Diagnostics.EnrichmentDegraded++
		}
		if out.failure != "" {
			result.Diagnostics.Failures = append(result.Diagnostics.Failures, out.failure)
		}
		if out.result == nil {
			result.Diagnostics.Omitted++
			continue
		}
		result.Companies = append(result.Companies, out.result)
		result.Diagnostics.Completed++
		if out.degraded {
			result.Diagnostics.Degraded++
		}
		if out.result.NarrativeProvenance == narrative.ProvenanceFallback {
			result.Diagnostics.FallbackUsed++
		}
	}

	// Workers finish in arbitrary order; restore the shortlist ordering.
	sort.SliceStable(result.Companies, func(a, b int) bool {
		if result.Companies[a].Score != result.Companies[b].Score {
			return result.Companies[a].Score > result.Companies[b].Score
		}
		return result.Companies[a].CompanyID < result.Companies[b].CompanyID
	})

	log.Info("pipeline run finished",
		zap.Int("completed", result.Diagnostics.Completed),
		zap.Int("degraded", result.Diagnostics.Degraded),
		zap.Int("omitted", result.Diagnostics.Omitted),
		zap.Int("fallback_used", result.Diagnostics.FallbackUsed),
	)

	return result, nil
}

func (p *Pipeline) processCompany(parent context.Context, req *solicitation.Request, cand matching.Candidate) (out companyOutcome) {
	profile := cand.Profile
	log := p.logger.With(zap.String("company_id", profile.ID))

	// A panicking worker must never take down the run.
	defer func() {
		if r := recover(); r != nil {
			log.Error("company worker panicked", zap.Any("panic", r))
			out = p.failureOutcome(parent, req, cand, nil, nil, false,
				fmt.Sprintf("company %s: panic: %v", profile.ID, r))
		}
	}()

	ctx, cancel := context.WithTimeout(parent, p.cfg.CompanyTimeout)
	defer cancel()

	var enr *enrichment.Context
	var enrDegraded bool
	if req.Enrich && p.enricher != nil && p.enricher.Enabled() {
		enr, enrDegraded = p.enricher.Enrich(ctx, profile)
	}

	var wv *website.Validation
	if p.webval != nil {
		wv = p.webval.Validate(ctx, req, profile)
	}

	var nar *narrative.Narrative
	if p.generator != nil {
		raw, err := p.generator.Generate(ctx, req, profile, enr)
		if err != nil {
			log.Warn("narrative generation failed", zap.Error(err))
			return p.failureOutcome(parent, req, cand, enr, wv, enrDegraded,
				fmt.Sprintf("company %s: %v", profile.ID, err))
		}
		nar = p.validator.Finalize(raw.Text, req, profile, enr)
	} else {
		// No generative capability configured; every narrative is
		// synthesized deterministically.
		nar = narrative.Synthesize(req, profile, enr)
	}

	res, err := p.aggregator.Build(req, profile, cand.Score, enr, nar, wv, enrDegraded)
	if err != nil {
		log.Error("report aggregation failed", zap.Error(err))
		return companyOutcome{
			failure:            fmt.Sprintf("company %s: %v", profile.ID, err),
			enrichmentDegraded: enrDegraded,
		}
	}

	return companyOutcome{result: res, enrichmentDegraded: enrDegraded}
}

// failureOutcome applies the configured failure policy: omit drops the
// company, degrade keeps it with a synthesized fallback narrative. A
// cancelled run never degrades: the outcome is discarded by Run anyway.
func (p *Pipeline) failureOutcome(parent context.Context, req *solicitation.Request, cand matching.Candidate, enr *enrichment.Context, wv *website.Validation, enrDegraded bool, failure string) companyOutcome {
	if p.cfg.OnFailure != OnFailureDegrade || parent.Err() != nil {
		return companyOutcome{failure: failure, enrichmentDegraded: enrDegraded}
	}

	nar := narrative.Synthesize(req, cand.Profile, enr)
	res, err := p.aggregator.Build(req, cand.Profile, cand.Score, enr, nar, wv, enrDegraded)
	if err != nil {
		return companyOutcome{
			failure:            fmt.Sprintf("%s; degrade failed: %v", failure, err),
			enrichmentDegraded: enrDegraded,
		}
	}
	return companyOutcome{
		result:             res,
		failure:            failure,
		degraded:           true,
		enrichmentDegraded: enrDegraded,
	}
}
