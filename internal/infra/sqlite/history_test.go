package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

// ─── Helpers ────────────────────────────────────────────────────────────────

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mkStored(id, channel string, createdAt time.Time) *domain.StoredResult {
	return &domain.StoredResult{
		ID:        id,
		ChannelID: channel,
		ProfileID: "profile-1",
		Programs: []*domain.ScheduledProgram{
			{
				Content: domain.Content{
					ID:             "c1",
					Title:          "Opening Movie",
					Type:           domain.TypeMovie,
					DurationMillis: 90 * 60000,
				},
				StartTime: createdAt,
				EndTime:   createdAt.Add(90 * time.Minute),
				BlockName: "prime",
				Score: &domain.ScoringResult{
					TotalScore:        82.5,
					WeightedTotal:     82.5,
					KeywordMultiplier: 1,
					Criteria: map[string]*domain.CriterionResult{
						"type": {Name: "type", Score: 100, Weight: 20, WeightedScore: 20, Multiplier: 1, MultipliedWeightedScore: 20},
					},
				},
			},
		},
		TotalScore:       82.5,
		AverageScore:     82.5,
		TotalDurationMin: 90,
		Iteration:        3,
		TotalIterations:  10,
		TimeBlocks: []domain.TimeBlock{
			{Name: "prime", Start: "20:00", End: "23:00"},
		},
		AIResponse: "looks fine",
		CreatedAt:  createdAt,
	}
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestHistory_SaveAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	createdAt := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	if err := db.SaveResult(ctx, mkStored("r1", "ch1", createdAt)); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	got, err := db.GetResult(ctx, "r1")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if got.ChannelID != "ch1" || got.ProfileID != "profile-1" {
		t.Errorf("ids = %q/%q", got.ChannelID, got.ProfileID)
	}
	if len(got.Programs) != 1 {
		t.Fatalf("programs = %d, want 1", len(got.Programs))
	}
	program := got.Programs[0]
	if program.Content.Title != "Opening Movie" {
		t.Errorf("title = %q", program.Content.Title)
	}
	if program.Score == nil || program.Score.TotalScore != 82.5 {
		t.Errorf("score = %+v", program.Score)
	}
	if cr := program.Score.Criteria["type"]; cr == nil || cr.WeightedScore != 20 {
		t.Errorf("nested criterion = %+v", cr)
	}
	if len(got.TimeBlocks) != 1 || got.TimeBlocks[0].Name != "prime" {
		t.Errorf("time blocks = %+v", got.TimeBlocks)
	}
	if got.AIResponse != "looks fine" {
		t.Errorf("AIResponse = %q", got.AIResponse)
	}
	if !got.CreatedAt.Equal(createdAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, createdAt)
	}
}

func TestHistory_GetMissing(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetResult(context.Background(), "nope"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("err = %v, want ErrResultNotFound", err)
	}
}

func TestHistory_ListByChannel(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	for i, row := range []struct{ id, channel string }{
		{"r1", "ch1"}, {"r2", "ch1"}, {"r3", "ch2"},
	} {
		if err := db.SaveResult(ctx, mkStored(row.id, row.channel, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("SaveResult %s: %v", row.id, err)
		}
	}

	ch1, err := db.ListResults(ctx, "ch1", 10)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(ch1) != 2 {
		t.Fatalf("ch1 results = %d, want 2", len(ch1))
	}
	// Newest first.
	if ch1[0].ID != "r2" || ch1[1].ID != "r1" {
		t.Errorf("order = %s, %s", ch1[0].ID, ch1[1].ID)
	}

	all, err := db.ListResults(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListResults all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all results = %d, want 3", len(all))
	}

	limited, err := db.ListResults(ctx, "", 1)
	if err != nil {
		t.Fatalf("ListResults limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "r3" {
		t.Errorf("limited = %+v", limited)
	}
}

func TestHistory_Delete(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.SaveResult(ctx, mkStored("r1", "ch1", time.Now().UTC())); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := db.DeleteResult(ctx, "r1"); err != nil {
		t.Fatalf("DeleteResult: %v", err)
	}
	if _, err := db.GetResult(ctx, "r1"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Errorf("err = %v, want ErrResultNotFound", err)
	}
	if err := db.DeleteResult(ctx, "r1"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Errorf("second delete err = %v, want ErrResultNotFound", err)
	}
}

func TestHistory_UpsertOverwrites(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	createdAt := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	first := mkStored("r1", "ch1", createdAt)
	if err := db.SaveResult(ctx, first); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	second := mkStored("r1", "ch1", createdAt)
	second.TotalScore = 91
	if err := db.SaveResult(ctx, second); err != nil {
		t.Fatalf("SaveResult upsert: %v", err)
	}

	got, err := db.GetResult(ctx, "r1")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if got.TotalScore != 91 {
		t.Errorf("TotalScore = %.1f, want 91", got.TotalScore)
	}
}
