package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

const sampleProfile = `
name: Family Evening
libraries: [movies, shows]
time_blocks:
  - name: daytime
    start_time: "06:00"
    end_time: "20:00"
    criteria:
      preferred_types: [episode]
      max_age_rating: PG
  - name: prime
    start_time: "20:00"
    end_time: "23:00"
    criteria:
      preferred_types: [movie]
      allowed_genres: [comedy, family]
      genre_rules:
        preferred_values: [adventure]
      mfp_policy:
        forbidden_detected_penalty: -250
  - name: night
    start_time: "23:00"
    end_time: "06:00"
mandatory_forbidden_criteria:
  forbidden:
    genres: [horror]
  exclude_keywords: [massacre]
scoring_weights:
  type: 20
  genre: 25
  timing: 15
criterion_multipliers:
  genre: 1.5
mfp_policy:
  mandatory_missed_penalty: -30
strategies:
  marathon_mode: true
  filler_insertion:
    enabled: true
    types: [trailer, clip]
`

func TestParse_FullProfile(t *testing.T) {
	p, err := Parse([]byte(sampleProfile))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Name != "Family Evening" {
		t.Errorf("Name = %q", p.Name)
	}
	if len(p.TimeBlocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(p.TimeBlocks))
	}

	prime := p.BlockByName("prime")
	if prime == nil {
		t.Fatal("prime block missing")
	}
	if got := prime.Criteria.GenreRules.PreferredValues; len(got) != 1 || got[0] != "adventure" {
		t.Errorf("genre_rules preferred = %v", got)
	}

	// Block-level policy overrides profile-level, which overrides the
	// defaults for the fields it leaves unset.
	policy := p.PolicyFor(prime)
	if policy.ForbiddenDetectedPenalty != -250 {
		t.Errorf("block policy penalty = %.0f, want -250", policy.ForbiddenDetectedPenalty)
	}
	policy = p.PolicyFor(nil)
	if policy.MandatoryMissedPenalty != -30 {
		t.Errorf("profile policy penalty = %.0f, want -30", policy.MandatoryMissedPenalty)
	}

	if m := p.Multiplier("genre", nil); m != 1.5 {
		t.Errorf("genre multiplier = %.1f, want 1.5", m)
	}
	if m := p.Multiplier("type", nil); m != 1.0 {
		t.Errorf("type multiplier = %.1f, want 1.0", m)
	}

	if w := p.Weight("genre", 10); w != 25 {
		t.Errorf("genre weight = %.0f, want 25", w)
	}
	if w := p.Weight("rating", 20); w != 20 {
		t.Errorf("unset weight = %.0f, want the default 20", w)
	}

	if got := p.Strategies.FillerTypes(); len(got) != 2 {
		t.Errorf("filler types = %v", got)
	}

	if ok, gaps := Coverage(p); !ok {
		t.Errorf("expected full coverage, gaps: %v", gaps)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no_blocks", "name: empty\n"},
		{"bad_time", "name: x\ntime_blocks:\n  - name: a\n    start_time: \"26:00\"\n    end_time: \"08:00\"\n"},
		{"unnamed_block", "name: x\ntime_blocks:\n  - start_time: \"06:00\"\n    end_time: \"08:00\"\n"},
		{"duplicate_block", "name: x\ntime_blocks:\n  - name: a\n    start_time: \"06:00\"\n    end_time: \"08:00\"\n  - name: a\n    start_time: \"08:00\"\n    end_time: \"10:00\"\n"},
		{"bad_weight", "name: x\ntime_blocks:\n  - name: a\n    start_time: \"06:00\"\n    end_time: \"08:00\"\nscoring_weights:\n  type: 150\n"},
		{"not_yaml", ": ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); !errors.Is(err, domain.ErrMalformedProfile) {
				t.Errorf("err = %v, want ErrMalformedProfile", err)
			}
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "family.yaml"), []byte(sampleProfile), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	profiles, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("profiles = %d, want 1", len(profiles))
	}
	p, ok := profiles["family"]
	if !ok {
		t.Fatal("profile keyed by file stem missing")
	}
	if p.ID != "family" {
		t.Errorf("ID = %q, want family", p.ID)
	}
}
