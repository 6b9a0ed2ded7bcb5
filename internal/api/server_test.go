package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/airgrid-tv/airgrid/internal/app/jobs"
	"github.com/airgrid-tv/airgrid/internal/app/programming"
	"github.com/airgrid-tv/airgrid/internal/app/runner"
	"github.com/airgrid-tv/airgrid/internal/app/scoring"
	"github.com/airgrid-tv/airgrid/internal/domain"
)

// ─── Helpers ────────────────────────────────────────────────────────────────

// stubHistory is an in-memory HistoryStore.
type stubHistory struct {
	results map[string]*domain.StoredResult
}

func (s *stubHistory) SaveResult(_ context.Context, result *domain.StoredResult) error {
	s.results[result.ID] = result
	return nil
}

func (s *stubHistory) GetResult(_ context.Context, id string) (*domain.StoredResult, error) {
	result, ok := s.results[id]
	if !ok {
		return nil, domain.ErrResultNotFound
	}
	return result, nil
}

func (s *stubHistory) ListResults(_ context.Context, channelID string, limit int) ([]*domain.StoredResult, error) {
	var out []*domain.StoredResult
	for _, r := range s.results {
		if channelID == "" || r.ChannelID == channelID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubHistory) DeleteResult(_ context.Context, id string) error {
	if _, ok := s.results[id]; !ok {
		return domain.ErrResultNotFound
	}
	delete(s.results, id)
	return nil
}

func testServer(t *testing.T) (*Server, *jobs.Coordinator, *stubHistory) {
	t.Helper()
	coordinator := jobs.New(jobs.DefaultConfig(), zerolog.Nop())
	engine := scoring.NewEngine()
	generator := programming.NewGenerator(engine)
	resolver := func(id string) (*domain.Profile, error) { return nil, domain.ErrProfileNotFound }
	svc := runner.New(runner.DefaultConfig(), coordinator, generator, resolver, zerolog.Nop())
	history := &stubHistory{results: map[string]*domain.StoredResult{}}
	server := NewServer(svc, coordinator, history, 25*time.Second, zerolog.Nop())
	return server, coordinator, history
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && strings.Contains(rec.Header().Get("Content-Type"), "json") {
		json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestServer_Health(t *testing.T) {
	server, _, _ := testServer(t)
	rec, body := doJSON(t, server.Handler(), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", rec.Code, body)
	}
}

func TestServer_ProgrammingRun_UnknownProfile(t *testing.T) {
	server, _, _ := testServer(t)
	rec, _ := doJSON(t, server.Handler(), http.MethodPost, "/api/programming/run",
		`{"channel_id":"ch1","profile_id":"missing"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestServer_ProgrammingRun_BadBody(t *testing.T) {
	server, _, _ := testServer(t)
	rec, _ := doJSON(t, server.Handler(), http.MethodPost, "/api/programming/run", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestServer_JobsEndpoints(t *testing.T) {
	server, coordinator, _ := testServer(t)
	handler := server.Handler()

	id := coordinator.CreateJob(domain.JobProgramming, "run", jobs.CreateOptions{})

	rec, body := doJSON(t, handler, http.MethodGet, "/api/jobs/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if jobsList, ok := body["jobs"].([]any); !ok || len(jobsList) != 1 {
		t.Errorf("jobs = %v", body["jobs"])
	}

	rec, body = doJSON(t, handler, http.MethodGet, "/api/jobs/"+id, "")
	if rec.Code != http.StatusOK || body["id"] != id {
		t.Errorf("get = %d %v", rec.Code, body)
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/api/jobs/"+id+"/cancel", "")
	if rec.Code != http.StatusOK {
		t.Errorf("cancel status = %d", rec.Code)
	}

	// Cancelling again conflicts.
	rec, _ = doJSON(t, handler, http.MethodPost, "/api/jobs/"+id+"/cancel", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("second cancel status = %d, want 409", rec.Code)
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/api/jobs/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", rec.Code)
	}
}

func TestServer_ResultsAndCSV(t *testing.T) {
	server, _, history := testServer(t)
	handler := server.Handler()

	history.results["r1"] = &domain.StoredResult{
		ID:        "r1",
		ChannelID: "ch1",
		Programs: []*domain.ScheduledProgram{
			{
				Content: domain.Content{ID: "c1", Title: "Movie", Type: domain.TypeMovie, DurationMillis: 90 * 60000},
				Score: &domain.ScoringResult{
					TotalScore:        75,
					KeywordMultiplier: 1,
					Criteria: map[string]*domain.CriterionResult{
						"type": {Name: "type", Score: 75, Weight: 20, Multiplier: 1},
					},
				},
			},
		},
	}

	rec, body := doJSON(t, handler, http.MethodGet, "/api/results/r1", "")
	if rec.Code != http.StatusOK || body["id"] != "r1" {
		t.Errorf("get result = %d %v", rec.Code, body)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/results/r1/export/csv", nil)
	csvRec := httptest.NewRecorder()
	handler.ServeHTTP(csvRec, req)
	if csvRec.Code != http.StatusOK {
		t.Fatalf("csv status = %d", csvRec.Code)
	}
	if ct := csvRec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.HasPrefix(csvRec.Body.String(), "Position,Title,Start Time") {
		t.Errorf("csv body = %q", csvRec.Body.String()[:40])
	}

	rec, _ = doJSON(t, handler, http.MethodDelete, "/api/results/r1", "")
	if rec.Code != http.StatusOK {
		t.Errorf("delete status = %d", rec.Code)
	}
	rec, _ = doJSON(t, handler, http.MethodGet, "/api/results/r1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}
