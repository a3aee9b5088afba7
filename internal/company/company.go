package company

import (
	"context"
	"strings"
)

// Profile describes a candidate company as read from the company directory.
// The pipeline treats profiles as read-only.
type Profile struct {
	ID               string   `json:"company_id" mapstructure:"company_id"`
	Name             string   `json:"name" mapstructure:"name"`
	NAICSCodes       []string `json:"naics_codes" mapstructure:"naics_codes"`
	SetAsideStatuses []string `json:"set_aside_statuses" mapstructure:"set_aside_statuses"`
	Capabilities     []string `json:"capabilities" mapstructure:"capabilities"`
	Certifications   []string `json:"certifications" mapstructure:"certifications"`
	Clearances       []string `json:"clearances" mapstructure:"clearances"`
	Keywords         []string `json:"keywords" mapstructure:"keywords"`
	PastPerformance  []string `json:"past_performance" mapstructure:"past_performance"`
	Website          string   `json:"website" mapstructure:"website"`
	Description      string   `json:"description" mapstructure:"description"`
}

// PrimaryCapabilities returns up to limit capability tags, trimmed, for use
// in prose and prompts.
func (p *Profile) PrimaryCapabilities(limit int) []string {
	if limit <= 0 {
		limit = 3
	}
	out := make([]string, 0, limit)
	for _, cap := range p.Capabilities {
		cap = strings.TrimSpace(cap)
		if cap == "" {
			continue
		}
		out = append(out, cap)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Filter narrows a directory search. Empty fields match everything.
type Filter struct {
	NAICSCodes []string
	Keyword    string
	Capability string
}

// Directory is the company directory collaborator. Implementations are
// read-only from the pipeline's perspective.
type Directory interface {
	Lookup(ctx context.Context, id string) (*Profile, error)
	Search(ctx context.Context, filter Filter) ([]*Profile, error)
	List(ctx context.Context) ([]*Profile, error)
}
