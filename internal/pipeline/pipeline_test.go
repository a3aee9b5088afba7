package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nofone/solmatch/internal/ai"
	"github.com/nofone/solmatch/internal/company"
	"github.com/nofone/solmatch/internal/enrichment"
	"github.com/nofone/solmatch/internal/matching"
	"github.com/nofone/solmatch/internal/narrative"
	"github.com/nofone/solmatch/internal/report"
	"github.com/nofone/solmatch/internal/solicitation"
	"github.com/nofone/solmatch/internal/website"
)

type stubDirectory struct {
	profiles []*company.Profile
	err      error
}

func (d *stubDirectory) Lookup(_ context.Context, id string) (*company.Profile, error) {
	for _, p := range d.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, errors.New("not found")
}

func (d *stubDirectory) Search(_ context.Context, _ company.Filter) ([]*company.Profile, error) {
	return d.profiles, d.err
}

func (d *stubDirectory) List(_ context.Context) ([]*company.Profile, error) {
	return d.profiles, d.err
}

type stubAI struct {
	response func(prompt string) (string, error)
}

func (s *stubAI) Complete(_ context.Context, req ai.Request) (string, error) {
	return s.response(req.Prompt)
}

func (s *stubAI) Model() string { return "stub-model" }

type stubSource struct {
	err error
}

func (s *stubSource) Name() string { return "awards" }

func (s *stubSource) Fetch(_ context.Context, _ *company.Profile) (*enrichment.Context, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &enrichment.Context{Summary: "2 federal awards on record."}, nil
}

// compliantText builds generator output that satisfies the narrative
// contract.
func compliantText() string {
	pad := strings.TrimSpace(strings.Repeat("alignment evidence continues ", 30))
	p1 := narrative.LeadInResearch + " that the fit is strong. " + pad
	p2 := narrative.LeadInAnalysts + " that the capabilities match. " + pad
	return p1 + "\n\n" + p2
}

func testInput() *solicitation.Input {
	return &solicitation.Input{
		Title:      "Cyber Support",
		Agency:     "DISA",
		NAICSCodes: []string{"541512"},
		Keywords:   []string{"cybersecurity"},
	}
}

func testProfiles() []*company.Profile {
	return []*company.Profile{
		{ID: "c2", Name: "Beta Corp", NAICSCodes: []string{"541512"}},
		{ID: "c1", Name: "Alpha Corp", NAICSCodes: []string{"541512"}, Keywords: []string{"cybersecurity"}},
		{ID: "c3", Name: "Gamma Corp", NAICSCodes: []string{"236220"}},
	}
}

func newPipeline(t *testing.T, dir company.Directory, gen *narrative.Generator, enricher *enrichment.Enricher, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(
		dir,
		matching.New(matching.DefaultWeights(), zap.NewNop()),
		enricher,
		nil,
		gen,
		narrative.NewValidator(zap.NewNop()),
		report.NewAggregator(zap.NewNop()),
		cfg,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("building pipeline: %v", err)
	}
	return p
}

func TestRunWithoutGenerator(t *testing.T) {
	t.Parallel()

	dir := &stubDirectory{profiles: testProfiles()}
	p := newPipeline(t, dir, nil, nil, Config{})

	result, err := p.Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Gamma has no structural overlap and is excluded.
	if result.Diagnostics.Shortlisted != 2 || result.Diagnostics.Completed != 2 {
		t.Fatalf("diagnostics = %+v", result.Diagnostics)
	}
	if result.Diagnostics.FallbackUsed != 2 {
		t.Fatalf("expected every narrative synthesized, got %d", result.Diagnostics.FallbackUsed)
	}
	if result.RunID == "" {
		t.Fatal("run id missing")
	}

	// Alpha scores higher via the keyword factor.
	if result.Companies[0].CompanyID != "c1" || result.Companies[1].CompanyID != "c2" {
		t.Fatalf("order = %s, %s", result.Companies[0].CompanyID, result.Companies[1].CompanyID)
	}
	for _, c := range result.Companies {
		if c.Narrative == nil || c.NarrativeProvenance != narrative.ProvenanceFallback {
			t.Fatalf("company %s narrative = %+v", c.CompanyID, c.Narrative)
		}
	}
}

func TestRunWithCompliantGenerator(t *testing.T) {
	t.Parallel()

	dir := &stubDirectory{profiles: testProfiles()}
	gen := narrative.NewGenerator(&stubAI{response: func(string) (string, error) {
		return compliantText(), nil
	}}, 0, 0, 0, zap.NewNop())

	p := newPipeline(t, dir, gen, nil, Config{})
	result, err := p.Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Diagnostics.FallbackUsed != 0 {
		t.Fatalf("expected no fallbacks, diagnostics = %+v", result.Diagnostics)
	}
	for _, c := range result.Companies {
		if c.NarrativeProvenance != narrative.ProvenanceGenerated {
			t.Fatalf("company %s provenance = %s", c.CompanyID, c.NarrativeProvenance)
		}
	}
}

func TestRunMalformedOutputFallsBack(t *testing.T) {
	t.Parallel()

	dir := &stubDirectory{profiles: testProfiles()}
	gen := narrative.NewGenerator(&stubAI{response: func(string) (string, error) {
		return "one short run-on paragraph", nil
	}}, 0, 0, 0, zap.NewNop())

	p := newPipeline(t, dir, gen, nil, Config{})
	result, err := p.Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Malformed output is not a failure; every company completes via fallback.
	if result.Diagnostics.Completed != 2 || result.Diagnostics.FallbackUsed != 2 {
		t.Fatalf("diagnostics = %+v", result.Diagnostics)
	}
	if result.Diagnostics.Omitted != 0 || len(result.Diagnostics.Failures) != 0 {
		t.Fatalf("unexpected failures: %+v", result.Diagnostics)
	}
}

func TestRunGenerationFailurePolicies(t *testing.T) {
	t.Parallel()

	failingGen := func() *narrative.Generator {
		return narrative.NewGenerator(&stubAI{response: func(string) (string, error) {
			return "", errors.New("provider unavailable")
		}}, 0, 0, 0, zap.NewNop())
	}

	t.Run("omit drops failed companies", func(t *testing.T) {
		t.Parallel()
		dir := &stubDirectory{profiles: testProfiles()}
		p := newPipeline(t, dir, failingGen(), nil, Config{OnFailure: OnFailureOmit})

		result, err := p.Run(context.Background(), testInput())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Diagnostics.Omitted != 2 || result.Diagnostics.Completed != 0 {
			t.Fatalf("diagnostics = %+v", result.Diagnostics)
		}
		if len(result.Diagnostics.Failures) != 2 {
			t.Fatalf("failures = %v", result.Diagnostics.Failures)
		}
		if len(result.Companies) != 0 {
			t.Fatalf("expected no companies, got %d", len(result.Companies))
		}
	})

	t.Run("degrade keeps failed companies with fallback narratives", func(t *testing.T) {
		t.Parallel()
		dir := &stubDirectory{profiles: testProfiles()}
		p := newPipeline(t, dir, failingGen(), nil, Config{OnFailure: OnFailureDegrade})

		result, err := p.Run(context.Background(), testInput())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Diagnostics.Completed != 2 || result.Diagnostics.Degraded != 2 {
			t.Fatalf("diagnostics = %+v", result.Diagnostics)
		}
		if len(result.Diagnostics.Failures) != 2 {
			t.Fatalf("failures = %v", result.Diagnostics.Failures)
		}
		for _, c := range result.Companies {
			if c.NarrativeProvenance != narrative.ProvenanceFallback {
				t.Fatalf("company %s provenance = %s", c.CompanyID, c.NarrativeProvenance)
			}
		}
	})
}

func TestRunCancelledDiscardsResults(t *testing.T) {
	t.Parallel()

	dir := &stubDirectory{profiles: testProfiles()}
	gen := narrative.NewGenerator(&stubAI{response: func(string) (string, error) {
		return "", context.Canceled
	}}, 0, 0, 0, zap.NewNop())

	// Even under degrade, a cancelled run is abandoned: no synthesized
	// stand-ins, no partial results.
	p := newPipeline(t, dir, gen, nil, Config{OnFailure: OnFailureDegrade})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.Run(ctx, testInput())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result != nil {
		t.Fatalf("expected discarded result, got %+v", result)
	}
}

func TestRunIsolatesPanickingWorker(t *testing.T) {
	t.Parallel()

	dir := &stubDirectory{profiles: testProfiles()}
	// The prompt embeds the company profile, so the panic can target a
	// single company.
	gen := narrative.NewGenerator(&stubAI{response: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Beta Corp") {
			panic("corrupt profile")
		}
		return compliantText(), nil
	}}, 0, 0, 0, zap.NewNop())

	p := newPipeline(t, dir, gen, nil, Config{OnFailure: OnFailureOmit})

	result, err := p.Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Diagnostics.Completed != 1 || result.Diagnostics.Omitted != 1 {
		t.Fatalf("diagnostics = %+v", result.Diagnostics)
	}
	if len(result.Companies) != 1 || result.Companies[0].CompanyID != "c1" {
		t.Fatalf("expected only Alpha to survive, got %+v", result.Companies)
	}
	if len(result.Diagnostics.Failures) != 1 || !strings.Contains(result.Diagnostics.Failures[0], "panic") {
		t.Fatalf("failures = %v", result.Diagnostics.Failures)
	}
}

func TestRunWithWebsiteValidator(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>Cybersecurity and cloud computing for federal agencies.</p></body></html>"))
	}))
	t.Cleanup(srv.Close)

	profiles := testProfiles()
	for _, p := range profiles {
		p.Website = srv.URL
		p.Capabilities = []string{"Cybersecurity"}
	}
	dir := &stubDirectory{profiles: profiles}

	p, err := New(
		dir,
		matching.New(matching.DefaultWeights(), zap.NewNop()),
		nil,
		website.NewValidator("", 0, zap.NewNop()),
		nil,
		narrative.NewValidator(zap.NewNop()),
		report.NewAggregator(zap.NewNop()),
		Config{},
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("building pipeline: %v", err)
	}

	result, err := p.Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, c := range result.Companies {
		wv := c.WebsiteValidation
		if wv == nil || !wv.Accessible {
			t.Fatalf("company %s validation = %+v", c.CompanyID, wv)
		}
		if len(wv.Confirmed) != 1 || wv.Confirmed[0] != "Cybersecurity" {
			t.Fatalf("company %s confirmed = %v", c.CompanyID, wv.Confirmed)
		}
	}
}

func TestRunEnrichmentDegradation(t *testing.T) {
	t.Parallel()

	dir := &stubDirectory{profiles: testProfiles()}
	enricher := enrichment.New([]enrichment.Source{&stubSource{err: errors.New("timeout")}}, nil, true, zap.NewNop())

	p := newPipeline(t, dir, nil, enricher, Config{})
	input := testInput()
	input.Enrich = true

	result, err := p.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Diagnostics.EnrichmentDegraded != 2 {
		t.Fatalf("diagnostics = %+v", result.Diagnostics)
	}
	// Degraded enrichment never blocks completion.
	if result.Diagnostics.Completed != 2 {
		t.Fatalf("completed = %d", result.Diagnostics.Completed)
	}
}

func TestRunInvalidInput(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, &stubDirectory{}, nil, nil, Config{})

	_, err := p.Run(context.Background(), &solicitation.Input{Title: "T"})
	var inputErr *solicitation.InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %v", err)
	}

	_, err = p.Run(context.Background(), nil)
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError for nil input, got %v", err)
	}
}

func TestRunDirectoryError(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, &stubDirectory{err: errors.New("connection refused")}, nil, nil, Config{})

	_, err := p.Run(context.Background(), testInput())
	if err == nil || !strings.Contains(err.Error(), "list company directory") {
		t.Fatalf("expected directory error, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"", OnFailureOmit, OnFailureDegrade} {
		cfg := Config{OnFailure: valid}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected error for %q: %v", valid, err)
		}
	}

	cfg := Config{OnFailure: "retry"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
