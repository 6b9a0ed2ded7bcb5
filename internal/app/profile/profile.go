// Package profile loads and validates user-authored profile documents.
// Profiles are YAML files bundling time blocks, rule sets, scoring
// weights, criterion multipliers, the M/F/P point policy and strategy
// flags.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/airgrid-tv/airgrid/internal/app/blocks"
	"github.com/airgrid-tv/airgrid/internal/domain"
)

// Load reads and validates a profile document.
func Load(path string) (*domain.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", filepath.Base(path), err)
	}
	if p.ID == "" {
		p.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// Parse decodes and validates a profile document.
func Parse(data []byte) (*domain.Profile, error) {
	var p domain.Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedProfile, err)
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks structural requirements: at least one parseable time
// block, non-empty unique block names, weights within 0-100, and
// non-negative criterion multipliers.
func Validate(p *domain.Profile) error {
	if len(p.TimeBlocks) == 0 {
		return fmt.Errorf("%w: no time blocks", domain.ErrMalformedProfile)
	}
	if _, err := blocks.New(p, nil); err != nil {
		return err
	}

	seen := map[string]bool{}
	for _, tb := range p.TimeBlocks {
		if tb.Name == "" {
			return fmt.Errorf("%w: time block without a name", domain.ErrMalformedProfile)
		}
		if seen[tb.Name] {
			return fmt.Errorf("%w: duplicate time block %q", domain.ErrMalformedProfile, tb.Name)
		}
		seen[tb.Name] = true
	}

	for key, weight := range p.ScoringWeights {
		if weight < 0 || weight > 100 {
			return fmt.Errorf("%w: weight %q = %.1f outside [0,100]", domain.ErrMalformedProfile, key, weight)
		}
	}
	for name, multiplier := range p.CriterionMultipliers {
		if multiplier < 0 {
			return fmt.Errorf("%w: negative multiplier for %q", domain.ErrMalformedProfile, name)
		}
	}
	return nil
}

// Coverage reports whether the profile's blocks cover the full 24 hours,
// with a description of each gap.
func Coverage(p *domain.Profile) (bool, []string) {
	s, err := blocks.New(p, nil)
	if err != nil {
		return false, []string{err.Error()}
	}
	return s.ValidateCoverage()
}

// LoadDir loads every profile document in a directory, keyed by ID.
func LoadDir(dir string) (map[string]*domain.Profile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read profile dir: %w", err)
	}
	profiles := map[string]*domain.Profile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		p, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		profiles[p.ID] = p
	}
	return profiles, nil
}
