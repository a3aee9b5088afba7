package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/nofone/solmatch/internal/ai"
	"github.com/nofone/solmatch/internal/company"
	"github.com/nofone/solmatch/internal/enrichment"
	"github.com/nofone/solmatch/internal/logger"
	"github.com/nofone/solmatch/internal/solicitation"
)

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	defaultMaxTokens    = 800
	defaultTemperature  = 0.3
)

// GenerationError signals that the generative capability failed to return
// any usable content for a company. Unlike a structural validation failure,
// this is surfaced per-company rather than absorbed by fallback synthesis.
type GenerationError struct {
	CompanyID string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("narrative generation for company %s: %v", e.CompanyID, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// RawOutput is the unvalidated generator response plus call metadata.
type RawOutput struct {
	Text    string
	Elapsed time.Duration
	Chars   int
}

// Generator builds the structured alignment prompt and invokes the
// generative-text capability exactly once per company. Retry policy, if any,
// lives inside the ai.Generator implementation.
type Generator struct {
	gen         ai.Generator
	maxTokens   int
	temperature float32
	maxLogLen   int
	logger      *zap.Logger
}

func NewGenerator(gen ai.Generator, maxTokens int, temperature float32, maxLogLength int, log *zap.Logger) *Generator {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		gen:         gen,
		maxTokens:   maxTokens,
		temperature: temperature,
		maxLogLen:   maxLogLength,
		logger:      log,
	}
}

// Generate builds the prompt and performs the single outbound call. The
// returned text is raw and unvalidated; a transport failure or fully empty
// response yields a GenerationError.
func (g *Generator) Generate(ctx context.Context, req *solicitation.Request, profile *company.Profile, enr *enrichment.Context) (*RawOutput, error) {
	if req == nil {
		return nil, fmt.Errorf("solicitation request is required")
	}
	if profile == nil {
		return nil, fmt.Errorf("company profile is required")
	}

	prompt, err := BuildPrompt(req, profile, enr)
	if err != nil {
		return nil, err
	}

	g.logger.Debug("alignment narrative request",
		zap.String("company_id", profile.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, g.maxLogLen)),
	)

	started := time.Now()
	raw, err := g.gen.Complete(ctx, ai.Request{
		Prompt:      prompt,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	elapsed := time.Since(started)

	if err != nil {
		return nil, &GenerationError{CompanyID: profile.ID, Err: err}
	}
	if strings.TrimSpace(raw) == "" {
		return nil, &GenerationError{CompanyID: profile.ID, Err: fmt.Errorf("empty response")}
	}

	g.logger.Debug("alignment narrative response",
		zap.String("company_id", profile.ID),
		zap.Duration("elapsed", elapsed),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, g.maxLogLen)),
	)

	return &RawOutput{
		Text:    raw,
		Elapsed: elapsed,
		Chars:   len(raw),
	}, nil
}

// BuildPrompt renders the embedded template with the solicitation, company
// and enrichment facts. Deterministic for identical inputs.
func BuildPrompt(req *solicitation.Request, profile *company.Profile, enr *enrichment.Context) (string, error) {
	solJSON, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal solicitation payload: %w", err)
	}

	companyJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal company payload: %w", err)
	}

	enrichmentBlock := "none"
	if !enr.Empty() {
		parts := make([]string, 0, 1+len(enr.AwardSignals))
		if enr.Summary != "" {
			parts = append(parts, enr.Summary)
		}
		parts = append(parts, enr.AwardSignals...)
		enrichmentBlock = strings.Join(parts, "\n")
	}

	prompt := promptTemplate
	prompt = strings.ReplaceAll(prompt, "{{LEAD_IN_A}}", LeadInResearch)
	prompt = strings.ReplaceAll(prompt, "{{LEAD_IN_B}}", LeadInAnalysts)
	prompt = strings.ReplaceAll(prompt, "{{MIN_WORDS}}", strconv.Itoa(DefaultMinWords))
	prompt = strings.ReplaceAll(prompt, "{{MAX_WORDS}}", strconv.Itoa(DefaultMaxWords))
	prompt = strings.ReplaceAll(prompt, "{{SOLICITATION_JSON}}", string(solJSON))
	prompt = strings.ReplaceAll(prompt, "{{COMPANY_JSON}}", string(companyJSON))
	prompt = strings.ReplaceAll(prompt, "{{ENRICHMENT}}", enrichmentBlock)

	return prompt, nil
}
