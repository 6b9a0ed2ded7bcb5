package blocks

import (
	"testing"
	"time"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

// ─── Helpers ────────────────────────────────────────────────────────────────

func mkProfile(blocks ...domain.TimeBlock) *domain.Profile {
	return &domain.Profile{Name: "test", TimeBlocks: blocks}
}

func mkSchedule(t *testing.T, blocks ...domain.TimeBlock) *Schedule {
	t.Helper()
	s, err := New(mkProfile(blocks...), time.UTC)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func at(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02 15:04", value, time.UTC)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return parsed
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestNew_NoBlocks(t *testing.T) {
	if _, err := New(&domain.Profile{}, time.UTC); err != domain.ErrNoBlocksDefined {
		t.Fatalf("err = %v, want ErrNoBlocksDefined", err)
	}
}

func TestNew_BadTime(t *testing.T) {
	_, err := New(mkProfile(domain.TimeBlock{Name: "bad", Start: "25:00", End: "06:00"}), time.UTC)
	if err == nil {
		t.Fatal("expected error for hour 25")
	}
}

func TestBlock_DurationMinutes(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		want  int
	}{
		{"daytime", "06:00", "12:00", 360},
		{"overnight", "22:00", "02:00", 240},
		{"full_day_wrap", "00:00", "00:00", 1440},
		{"almost_full", "00:00", "23:59", 1439},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mkSchedule(t, domain.TimeBlock{Name: tt.name, Start: tt.start, End: tt.end})
			b := &s.Blocks()[0]
			if got := b.DurationMinutes(); got != tt.want {
				t.Errorf("DurationMinutes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLocate_OvernightSpan(t *testing.T) {
	s := mkSchedule(t, domain.TimeBlock{Name: "night", Start: "22:00", End: "02:00"})

	tests := []struct {
		instant string
		found   bool
	}{
		{"2025-01-10 23:30", true},
		{"2025-01-11 01:30", true},
		{"2025-01-10 22:00", true},
		{"2025-01-11 02:00", false},
		{"2025-01-10 12:00", false},
	}
	for _, tt := range tests {
		block := s.Locate(at(t, tt.instant))
		if (block != nil) != tt.found {
			t.Errorf("Locate(%s): found = %v, want %v", tt.instant, block != nil, tt.found)
		}
	}
}

func TestBoundaries_OvernightSpan(t *testing.T) {
	s := mkSchedule(t, domain.TimeBlock{Name: "night", Start: "22:00", End: "02:00"})
	block := s.BlockNamed("night")
	if block == nil {
		t.Fatal("BlockNamed returned nil")
	}

	// Before midnight: the block instance ends tomorrow at 02:00.
	end := s.BlockEnd(at(t, "2025-01-10 23:30"), block)
	if want := at(t, "2025-01-11 02:00"); !end.Equal(want) {
		t.Errorf("BlockEnd(23:30) = %v, want %v", end, want)
	}

	// After midnight: the block instance started yesterday at 22:00.
	start := s.BlockStart(at(t, "2025-01-11 01:30"), block)
	if want := at(t, "2025-01-10 22:00"); !start.Equal(want) {
		t.Errorf("BlockStart(01:30) = %v, want %v", start, want)
	}

	// Before midnight the instance start is the same day.
	start = s.BlockStart(at(t, "2025-01-10 23:30"), block)
	if want := at(t, "2025-01-10 22:00"); !start.Equal(want) {
		t.Errorf("BlockStart(23:30) = %v, want %v", start, want)
	}
}

func TestValidateCoverage(t *testing.T) {
	full := mkSchedule(t,
		domain.TimeBlock{Name: "day", Start: "06:00", End: "22:00"},
		domain.TimeBlock{Name: "night", Start: "22:00", End: "06:00"},
	)
	if ok, gaps := full.ValidateCoverage(); !ok {
		t.Errorf("expected full coverage, gaps: %v", gaps)
	}

	gapped := mkSchedule(t, domain.TimeBlock{Name: "evening", Start: "18:00", End: "23:00"})
	ok, gaps := gapped.ValidateCoverage()
	if ok {
		t.Error("expected coverage gaps")
	}
	if len(gaps) != 2 {
		t.Errorf("gaps = %v, want 2 entries", gaps)
	}
}

func TestEnumerateSlots(t *testing.T) {
	s := mkSchedule(t,
		domain.TimeBlock{Name: "day", Start: "06:00", End: "22:00"},
		domain.TimeBlock{Name: "night", Start: "22:00", End: "06:00"},
	)

	slots := s.EnumerateSlots(at(t, "2025-01-10 06:00"), 24)
	if len(slots) != 2 {
		t.Fatalf("slots = %d, want 2", len(slots))
	}

	want := []struct {
		name  string
		start string
		end   string
	}{
		{"day", "2025-01-10 06:00", "2025-01-10 22:00"},
		{"night", "2025-01-10 22:00", "2025-01-11 06:00"},
	}
	for i, w := range want {
		if slots[i].Block.Name != w.name {
			t.Errorf("slot %d block = %q, want %q", i, slots[i].Block.Name, w.name)
		}
		if !slots[i].Start.Equal(at(t, w.start)) || !slots[i].End.Equal(at(t, w.end)) {
			t.Errorf("slot %d = [%v, %v], want [%s, %s]", i, slots[i].Start, slots[i].End, w.start, w.end)
		}
	}

	total := 0
	for _, slot := range slots {
		total += slot.DurationMinutes()
	}
	if total != 24*60 {
		t.Errorf("total slot minutes = %d, want %d", total, 24*60)
	}
}
