package schedule

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadFile(t *testing.T) {
	doc := `
schedules:
  - name: nightly
    enabled: true
    daily: "03:30"
    channel_id: ch1
    profile_id: family
    iterations: 12
    replace_forbidden: true
  - name: refresh
    enabled: false
    every_hours: 6
    channel_id: ch2
    profile_id: sports
`
	path := filepath.Join(t.TempDir(), "schedules.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Daily != "03:30" || !entries[0].ReplaceForbidden {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].EveryHours != 6 || entries[1].Enabled {
		t.Errorf("entry 1 = %+v", entries[1])
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no_trigger", "schedules:\n  - name: x\n    channel_id: c\n    profile_id: p\n"},
		{"bad_daily", "schedules:\n  - name: x\n    daily: \"25:00\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "schedules.yaml")
			if err := os.WriteFile(path, []byte(tt.doc), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFile(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunner_UntilNextDaily(t *testing.T) {
	r := NewRunner(nil, nil, zerolog.Nop())
	now := time.Date(2025, 1, 10, 2, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	// Later today.
	wait := r.untilNext(Entry{Daily: "03:30"})
	if wait != 90*time.Minute {
		t.Errorf("wait = %v, want 90m", wait)
	}

	// Already passed: tomorrow.
	wait = r.untilNext(Entry{Daily: "01:00"})
	if wait != 23*time.Hour {
		t.Errorf("wait = %v, want 23h", wait)
	}

	// Interval entries wait their interval.
	wait = r.untilNext(Entry{EveryHours: 6})
	if wait != 6*time.Hour {
		t.Errorf("wait = %v, want 6h", wait)
	}
}

func TestRunner_StartWaitsFullInterval(t *testing.T) {
	fired := make(chan string, 2)
	entries := []Entry{
		{Name: "on", Enabled: true, EveryHours: 1, ChannelID: "ch1", ProfileID: "p1"},
		{Name: "off", Enabled: false, EveryHours: 1},
	}
	r := NewRunner(entries, func(entry Entry) { fired <- entry.Name }, zerolog.Nop())

	// An interval entry waits its full interval before the first firing,
	// so nothing fires right after Start.
	r.Start()
	defer r.Stop()

	select {
	case name := <-fired:
		t.Fatalf("entry %q fired immediately, want a full interval wait", name)
	case <-time.After(50 * time.Millisecond):
	}
}
