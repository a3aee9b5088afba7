package solicitation

import (
	"fmt"
	"sort"
	"strings"
)

const (
	defaultTopK = 5
	maxTopK     = 50
)

// Input is the raw, possibly incomplete solicitation payload supplied by the
// caller. RawText, when present, is mined for fields the caller left empty.
type Input struct {
	Title            string   `json:"title" mapstructure:"title"`
	Agency           string   `json:"agency" mapstructure:"agency"`
	Program          string   `json:"program" mapstructure:"program"`
	NAICSCodes       []string `json:"naics_codes" mapstructure:"naics_codes"`
	SetAsides        []string `json:"set_asides" mapstructure:"set_asides"`
	Clearances       []string `json:"clearances" mapstructure:"clearances"`
	Keywords         []string `json:"keywords" mapstructure:"keywords"`
	RawText          string   `json:"raw_text" mapstructure:"raw_text"`
	Enrich           bool     `json:"enrich" mapstructure:"enrich"`
	TopK             int      `json:"top_k" mapstructure:"top_k"`
	DisableFiltering bool     `json:"disable_filtering" mapstructure:"disable_filtering"`
}

// Request is the canonical solicitation consumed by the pipeline. It is never
// mutated after Normalize returns it.
type Request struct {
	Title            string   `json:"title"`
	Agency           string   `json:"agency"`
	Program          string   `json:"program"`
	NAICSCodes       []string `json:"naics_codes"`
	SetAsides        []string `json:"set_asides"`
	Clearances       []string `json:"clearances"`
	Keywords         []string `json:"keywords"`
	Enrich           bool     `json:"enrich"`
	TopK             int      `json:"top_k"`
	DisableFiltering bool     `json:"disable_filtering"`
}

// InputError signals a malformed or incomplete solicitation. It is surfaced
// to the caller before any external call and is never retried.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid solicitation: %s", e.Reason)
}

// Normalize converts a raw Input into a canonical Request. Fields are
// trimmed and de-duplicated, RawText extractions fill fields the caller left
// empty, and TopK is clamped to [1, 50] with a default of 5.
func Normalize(in Input) (*Request, error) {
	req := &Request{
		Title:            strings.TrimSpace(in.Title),
		Agency:           strings.TrimSpace(in.Agency),
		Program:          strings.TrimSpace(in.Program),
		NAICSCodes:       normalizeList(in.NAICSCodes),
		SetAsides:        normalizeList(in.SetAsides),
		Clearances:       normalizeList(in.Clearances),
		Keywords:         normalizeList(in.Keywords),
		Enrich:           in.Enrich,
		TopK:             in.TopK,
		DisableFiltering: in.DisableFiltering,
	}

	if raw := strings.TrimSpace(in.RawText); raw != "" {
		ext := ParseText(raw)
		if len(req.NAICSCodes) == 0 {
			req.NAICSCodes = ext.NAICSCodes
		}
		if len(req.SetAsides) == 0 {
			req.SetAsides = ext.SetAsides
		}
		if len(req.Clearances) == 0 {
			req.Clearances = ext.Clearances
		}
		if len(req.Keywords) == 0 {
			req.Keywords = ext.Keywords
		}
	}

	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}
	if req.TopK > maxTopK {
		req.TopK = maxTopK
	}

	if req.Title == "" {
		return nil, &InputError{Reason: "title is required"}
	}
	if req.Agency == "" {
		return nil, &InputError{Reason: "agency is required"}
	}
	if len(req.NAICSCodes) == 0 && len(req.Keywords) == 0 && len(req.Clearances) == 0 {
		return nil, &InputError{Reason: "at least one of naics_codes, keywords or clearances is required"}
	}

	return req, nil
}

// ProgramOrTitle returns the program name, falling back to the title when the
// solicitation has no named program.
func (r *Request) ProgramOrTitle() string {
	if r.Program != "" {
		return r.Program
	}
	return r.Title
}

func normalizeList(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
