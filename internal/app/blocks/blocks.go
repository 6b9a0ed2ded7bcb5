// Package blocks implements the time-block model: locating the block for a
// wall-clock instant (including overnight spans), resolving absolute block
// instance boundaries, validating 24h coverage, and enumerating slots
// across multi-day ranges.
//
// Block boundaries are defined in local time. All lookups convert the
// instant to the configured zone once and operate on minutes-of-day in
// that zone, which keeps the arithmetic stable across DST transitions.
package blocks

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

const minutesPerDay = 24 * 60

// Block is a parsed time block. Start and End are minutes since local
// midnight; End <= Start marks an overnight block wrapping past midnight.
type Block struct {
	Name  string
	Start int
	End   int
	Def   *domain.TimeBlock
}

// SpansMidnight reports whether the block wraps past midnight.
func (b *Block) SpansMidnight() bool { return b.End <= b.Start }

// DurationMinutes returns the block length in minutes.
func (b *Block) DurationMinutes() int {
	if b.SpansMidnight() {
		return (minutesPerDay - b.Start) + b.End
	}
	return b.End - b.Start
}

// contains reports whether a minute-of-day falls inside [Start, End),
// honoring overnight wrap.
func (b *Block) contains(minute int) bool {
	if b.SpansMidnight() {
		return minute >= b.Start || minute < b.End
	}
	return minute >= b.Start && minute < b.End
}

// StartHour returns the hour component of the block start.
func (b *Block) StartHour() int { return b.Start / 60 }

// Schedule holds a profile's parsed blocks and the local zone used for
// every lookup.
type Schedule struct {
	blocks []Block
	loc    *time.Location
}

// New parses the profile's time blocks. A nil location defaults to the
// process-local zone.
func New(profile *domain.Profile, loc *time.Location) (*Schedule, error) {
	if loc == nil {
		loc = time.Local
	}
	if profile == nil || len(profile.TimeBlocks) == 0 {
		return nil, domain.ErrNoBlocksDefined
	}
	s := &Schedule{loc: loc}
	for i := range profile.TimeBlocks {
		def := &profile.TimeBlocks[i]
		start, err := parseHHMM(def.Start)
		if err != nil {
			return nil, fmt.Errorf("block %q start: %w", def.Name, err)
		}
		end, err := parseHHMM(def.End)
		if err != nil {
			return nil, fmt.Errorf("block %q end: %w", def.Name, err)
		}
		s.blocks = append(s.blocks, Block{
			Name:  def.Name,
			Start: start,
			End:   end,
			Def:   def,
		})
	}
	return s, nil
}

// parseHHMM converts "HH:MM" to minutes since midnight.
func parseHHMM(v string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(v), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad time %q: %w", v, domain.ErrMalformedProfile)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour %q: %w", v, domain.ErrMalformedProfile)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute %q: %w", v, domain.ErrMalformedProfile)
	}
	return h*60 + m, nil
}

// Location returns the zone the schedule operates in.
func (s *Schedule) Location() *time.Location { return s.loc }

// Blocks returns the parsed blocks in profile order.
func (s *Schedule) Blocks() []Block { return s.blocks }

// BlockNamed returns the parsed block with the given name, or nil.
func (s *Schedule) BlockNamed(name string) *Block {
	for i := range s.blocks {
		if s.blocks[i].Name == name {
			return &s.blocks[i]
		}
	}
	return nil
}

// minuteOfDay converts an instant to minutes since local midnight.
func (s *Schedule) minuteOfDay(t time.Time) int {
	lt := t.In(s.loc)
	return lt.Hour()*60 + lt.Minute()
}

// Locate returns the block containing the given instant, or nil when no
// block covers its time of day.
func (s *Schedule) Locate(t time.Time) *Block {
	minute := s.minuteOfDay(t)
	for i := range s.blocks {
		if s.blocks[i].contains(minute) {
			return &s.blocks[i]
		}
	}
	return nil
}

// BlockStart returns the absolute start of the block instance containing
// the given instant. For an overnight block observed after midnight, the
// start falls on the previous calendar day.
func (s *Schedule) BlockStart(t time.Time, b *Block) time.Time {
	lt := t.In(s.loc)
	day := time.Date(lt.Year(), lt.Month(), lt.Day(), b.Start/60, b.Start%60, 0, 0, s.loc)
	if b.SpansMidnight() && s.minuteOfDay(t) < b.Start {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// BlockEnd returns the absolute end of the block instance containing the
// given instant. For an overnight block observed before midnight, the end
// falls on the next calendar day.
func (s *Schedule) BlockEnd(t time.Time, b *Block) time.Time {
	lt := t.In(s.loc)
	day := time.Date(lt.Year(), lt.Month(), lt.Day(), b.End/60, b.End%60, 0, 0, s.loc)
	if b.SpansMidnight() && s.minuteOfDay(t) >= b.Start {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// ValidateCoverage verifies the blocks collectively cover all 1440 minutes
// of the day. Gaps are a warning surface, not a hard failure.
func (s *Schedule) ValidateCoverage() (bool, []string) {
	if len(s.blocks) == 0 {
		return false, []string{"no blocks defined"}
	}
	var covered [minutesPerDay]bool
	for i := range s.blocks {
		b := &s.blocks[i]
		if b.SpansMidnight() {
			for m := b.Start; m < minutesPerDay; m++ {
				covered[m] = true
			}
			for m := 0; m < b.End; m++ {
				covered[m] = true
			}
		} else {
			for m := b.Start; m < b.End; m++ {
				covered[m] = true
			}
		}
	}

	var gaps []string
	gapStart := -1
	for m := 0; m < minutesPerDay; m++ {
		switch {
		case !covered[m] && gapStart < 0:
			gapStart = m
		case covered[m] && gapStart >= 0:
			gaps = append(gaps, fmt.Sprintf("gap from %s to %s", fmtMinute(gapStart), fmtMinute(m)))
			gapStart = -1
		}
	}
	if gapStart >= 0 {
		gaps = append(gaps, fmt.Sprintf("gap from %s to 24:00", fmtMinute(gapStart)))
	}
	return len(gaps) == 0, gaps
}

func fmtMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// Slot is one contiguous stretch of a single block within a range.
type Slot struct {
	Block *Block
	Start time.Time
	End   time.Time
}

// DurationMinutes returns the slot length in minutes.
func (sl Slot) DurationMinutes() int {
	return int(sl.End.Sub(sl.Start).Minutes())
}

// EnumerateSlots partitions [start, start+durationHours) into consecutive
// (block, sliceStart, sliceEnd) tuples. Uncovered minutes are skipped.
func (s *Schedule) EnumerateSlots(start time.Time, durationHours int) []Slot {
	end := start.Add(time.Duration(durationHours) * time.Hour)
	var slots []Slot
	current := start
	for current.Before(end) {
		b := s.Locate(current)
		if b == nil {
			current = current.Add(time.Minute)
			continue
		}
		blockEnd := s.BlockEnd(current, b)
		sliceEnd := blockEnd
		if sliceEnd.After(end) {
			sliceEnd = end
		}
		slots = append(slots, Slot{Block: b, Start: current, End: sliceEnd})
		current = sliceEnd
	}
	return slots
}
