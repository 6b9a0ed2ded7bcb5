// Package report renders scoring results for export.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

// csvCriteria is the fixed criterion column order of the scoring export.
var csvCriteria = []string{"type", "duration", "genre", "timing", "strategy", "age", "rating", "filter", "bonus"}

// csvHeader is the scoring export header.
var csvHeader = []string{
	"Position", "Title", "Start Time", "Duration (min)", "Total Score",
	"Type", "Duration", "Genre", "Timing", "Strategy", "Age", "Rating", "Filter", "Bonus",
	"Mandatory Met", "Forbidden Violated",
}

// WriteScoringCSV renders a schedule's per-program scoring breakdown as
// CSV. Skipped criteria render as blank cells.
func WriteScoringCSV(w io.Writer, programs []*domain.ScheduledProgram) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, prog := range programs {
		record := []string{
			strconv.Itoa(prog.Position),
			prog.Content.Title,
			prog.StartTime.Format(time.RFC3339),
			fmt.Sprintf("%.1f", prog.DurationMinutes()),
			fmt.Sprintf("%.2f", prog.Score.Total()),
		}
		for _, name := range csvCriteria {
			record = append(record, criterionCell(prog.Score, name))
		}
		record = append(record,
			strconv.FormatBool(prog.Score.MandatoryMet()),
			strconv.FormatBool(prog.Score.Forbidden()),
		)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// criterionCell formats one criterion score; skipped criteria are blank.
func criterionCell(score *domain.ScoringResult, name string) string {
	if score == nil {
		return ""
	}
	result, ok := score.Criteria[name]
	if !ok || result == nil || result.Skipped {
		return ""
	}
	return fmt.Sprintf("%.2f", result.Score)
}
