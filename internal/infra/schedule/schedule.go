// Package schedule runs recurring generation jobs: YAML-defined entries
// fire daily at a fixed local time or on a fixed interval, executing
// through a trigger callback. The runner is deliberately small — the
// heavy lifting happens in the job it triggers.
package schedule

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ─── Definitions ────────────────────────────────────────────────────────────

// Entry is one recurring run definition.
type Entry struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`

	// Daily fires once a day at the given local "HH:MM". Mutually
	// exclusive with EveryHours.
	Daily string `yaml:"daily,omitempty"`

	// EveryHours fires on a fixed interval.
	EveryHours int `yaml:"every_hours,omitempty"`

	ChannelID string `yaml:"channel_id"`
	ProfileID string `yaml:"profile_id"`

	Iterations       int     `yaml:"iterations,omitempty"`
	Randomness       float64 `yaml:"randomness,omitempty"`
	DurationDays     int     `yaml:"duration_days,omitempty"`
	ReplaceForbidden bool    `yaml:"replace_forbidden,omitempty"`
	ImproveBest      bool    `yaml:"improve_best,omitempty"`
}

// File is the schedule document layout.
type File struct {
	Schedules []Entry `yaml:"schedules"`
}

// LoadFile reads a schedule document.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedules: %w", err)
	}
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schedules: %w", err)
	}
	for i, entry := range file.Schedules {
		if entry.Daily == "" && entry.EveryHours <= 0 {
			return nil, fmt.Errorf("schedule %q: needs daily or every_hours", entry.Name)
		}
		if entry.Daily != "" {
			if _, err := parseDaily(entry.Daily); err != nil {
				return nil, fmt.Errorf("schedule %q: %w", entry.Name, err)
			}
		}
		if entry.Name == "" {
			file.Schedules[i].Name = fmt.Sprintf("schedule-%d", i+1)
		}
	}
	return file.Schedules, nil
}

func parseDaily(v string) (int, error) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad daily time %q", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad daily hour %q", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad daily minute %q", v)
	}
	return h*60 + m, nil
}

// ─── Runner ─────────────────────────────────────────────────────────────────

// TriggerFunc launches one scheduled run.
type TriggerFunc func(entry Entry)

// Runner owns the timer goroutines behind the entries.
type Runner struct {
	entries []Entry
	trigger TriggerFunc
	now     func() time.Time
	log     zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	lastRun map[string]time.Time
}

// NewRunner creates a schedule runner.
func NewRunner(entries []Entry, trigger TriggerFunc, log zerolog.Logger) *Runner {
	return &Runner{
		entries: entries,
		trigger: trigger,
		now:     time.Now,
		log:     log,
		lastRun: make(map[string]time.Time),
	}
}

// Start launches one goroutine per enabled entry. Stop cancels them.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	started := 0
	for _, entry := range r.entries {
		if !entry.Enabled {
			continue
		}
		go r.loop(ctx, entry)
		started++
	}
	r.log.Info().Int("schedules", started).Msg("schedule runner started")
}

// Stop cancels all timer goroutines.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// LastRun reports when an entry last fired.
func (r *Runner) LastRun(name string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.lastRun[name]
	return t, ok
}

func (r *Runner) loop(ctx context.Context, entry Entry) {
	for {
		wait := r.untilNext(entry)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		r.log.Info().Str("schedule", entry.Name).Msg("schedule fired")
		r.mu.Lock()
		r.lastRun[entry.Name] = r.now()
		r.mu.Unlock()
		r.trigger(entry)
	}
}

// untilNext computes the wait to the entry's next firing.
func (r *Runner) untilNext(entry Entry) time.Duration {
	now := r.now()
	if entry.Daily != "" {
		minute, err := parseDaily(entry.Daily)
		if err != nil {
			return 24 * time.Hour
		}
		next := time.Date(now.Year(), now.Month(), now.Day(), minute/60, minute%60, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next.Sub(now)
	}
	return time.Duration(entry.EveryHours) * time.Hour
}
