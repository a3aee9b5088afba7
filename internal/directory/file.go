// Package directory provides the company.Directory implementations: a JSON
// file directory for local runs and a Postgres directory for shared
// deployments.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nofone/solmatch/internal/company"
)

// FileDirectory serves profiles from a JSON array loaded once at startup.
type FileDirectory struct {
	profiles []*company.Profile
	byID     map[string]*company.Profile
}

// NewFileDirectory loads the directory file. Profiles without an ID are
// assigned one so downstream identity checks always have something to hold.
func NewFileDirectory(path string, log *zap.Logger) (*FileDirectory, error) {
	if log == nil {
		log = zap.NewNop()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read company directory %s: %w", path, err)
	}

	var profiles []*company.Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("parse company directory %s: %w", path, err)
	}

	dir := &FileDirectory{
		profiles: profiles,
		byID:     make(map[string]*company.Profile, len(profiles)),
	}
	for _, p := range profiles {
		if strings.TrimSpace(p.ID) == "" {
			p.ID = uuid.NewString()
			log.Warn("company profile has no id; assigned one",
				zap.String("name", p.Name),
				zap.String("company_id", p.ID),
			)
		}
		if _, dup := dir.byID[p.ID]; dup {
			return nil, fmt.Errorf("company directory %s: duplicate company id %s", path, p.ID)
		}
		dir.byID[p.ID] = p
	}

	log.Info("company directory loaded",
		zap.String("path", path),
		zap.Int("companies", len(profiles)),
	)

	return dir, nil
}

func (d *FileDirectory) Lookup(_ context.Context, id string) (*company.Profile, error) {
	p, ok := d.byID[id]
	if !ok {
		return nil, fmt.Errorf("company %s not found", id)
	}
	return p, nil
}

func (d *FileDirectory) List(_ context.Context) ([]*company.Profile, error) {
	out := make([]*company.Profile, len(d.profiles))
	copy(out, d.profiles)
	return out, nil
}

func (d *FileDirectory) Search(_ context.Context, filter company.Filter) ([]*company.Profile, error) {
	var out []*company.Profile
	for _, p := range d.profiles {
		if matchesFilter(p, filter) {
			out = append(out, p)
		}
	}
	return out, nil
}

func matchesFilter(p *company.Profile, filter company.Filter) bool {
	if len(filter.NAICSCodes) > 0 && !anyOverlap(p.NAICSCodes, filter.NAICSCodes) {
		return false
	}
	if filter.Capability != "" && !containsFold(p.Capabilities, filter.Capability) {
		return false
	}
	if filter.Keyword != "" {
		kw := strings.ToLower(filter.Keyword)
		if !containsFold(p.Keywords, filter.Keyword) &&
			!strings.Contains(strings.ToLower(p.Description), kw) {
			return false
		}
	}
	return true
}

func anyOverlap(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, v := range have {
		set[v] = struct{}{}
	}
	for _, v := range want {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return true
		}
	}
	return false
}
