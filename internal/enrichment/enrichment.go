package enrichment

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/nofone/solmatch/internal/company"
)

// Context carries supplementary company intelligence consumed by the
// narrative generator and the aggregator. Absence is a degraded state, not
// an error.
type Context struct {
	Summary      string   `json:"summary"`
	AwardSignals []string `json:"award_signals"`
	Sources      []string `json:"sources"`
}

// Empty reports whether the context carries no usable enrichment.
func (c *Context) Empty() bool {
	return c == nil || (strings.TrimSpace(c.Summary) == "" && len(c.AwardSignals) == 0)
}

// Source supplies enrichment for a single company from one upstream system.
type Source interface {
	Name() string
	Fetch(ctx context.Context, profile *company.Profile) (*Context, error)
}

// Cache stores enrichment contexts keyed by company and source. A cache
// failure on either side is treated as a miss and never surfaced.
type Cache interface {
	Get(ctx context.Context, key string) (*Context, bool)
	Set(ctx context.Context, key string, value *Context)
}

// Enricher runs the configured sources for a shortlisted company, degrading
// to an empty context on any failure. It does not retry.
type Enricher struct {
	sources []Source
	cache   Cache
	enabled bool
	logger  *zap.Logger
}

func New(sources []Source, cache Cache, enabled bool, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = noopCache{}
	}
	return &Enricher{
		sources: sources,
		cache:   cache,
		enabled: enabled,
		logger:  logger,
	}
}

// Enabled reports whether enrichment calls will be attempted at all.
func (e *Enricher) Enabled() bool {
	return e != nil && e.enabled && len(e.sources) > 0
}

// Enrich gathers context for the profile from all sources. The second return
// value reports whether any source degraded (failed or returned nothing
// usable); callers record it as a diagnostic.
func (e *Enricher) Enrich(ctx context.Context, profile *company.Profile) (*Context, bool) {
	if !e.Enabled() {
		return &Context{}, false
	}

	merged := &Context{}
	degraded := false

	for _, source := range e.sources {
		key := cacheKey(source.Name(), profile.ID)
		if cached, ok := e.cache.Get(ctx, key); ok {
			merge(merged, cached, source.Name())
			continue
		}

		fetched, err := source.Fetch(ctx, profile)
		if err != nil {
			degraded = true
			e.logger.Warn("enrichment source failed; degrading to empty context",
				zap.String("source", source.Name()),
				zap.String("company_id", profile.ID),
				zap.Error(err),
			)
			continue
		}

		if fetched.Empty() {
			continue
		}

		e.cache.Set(ctx, key, fetched)
		merge(merged, fetched, source.Name())
	}

	return merged, degraded
}

func merge(dst, src *Context, sourceName string) {
	if src.Empty() {
		return
	}
	if dst.Summary == "" {
		dst.Summary = src.Summary
	} else if src.Summary != "" {
		dst.Summary += " " + src.Summary
	}
	dst.AwardSignals = append(dst.AwardSignals, src.AwardSignals...)
	dst.Sources = append(dst.Sources, sourceName)
}

func cacheKey(source, companyID string) string {
	return source + ":" + companyID
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*Context, bool) { return nil, false }
func (noopCache) Set(context.Context, string, *Context)        {}
