package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/heredeirxs/internal/countdown"
	"github.com/hitoshi/heredeirxs/internal/lineup"
	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/weather"
)

// --- モック定義 ---

type mockMatchService struct {
	listFn func(ctx context.Context, scope string) ([]*model.Match, error)
	getFn  func(ctx context.Context, id string) (*model.Match, error)
}

func (m *mockMatchService) List(ctx context.Context, scope string) ([]*model.Match, error) {
	if m.listFn != nil {
		return m.listFn(ctx, scope)
	}
	return nil, nil
}

func (m *mockMatchService) Get(ctx context.Context, id string) (*model.Match, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewMatchNotFoundError(id)
}

type mockWeatherService struct {
	forMatchFn func(ctx context.Context, m *model.Match) weather.Report
}

func (m *mockWeatherService) ForMatch(ctx context.Context, match *model.Match) weather.Report {
	if m.forMatchFn != nil {
		return m.forMatchFn(ctx, match)
	}
	return weather.Report{}
}

type mockLineupService struct {
	getFn      func(ctx context.Context, userID, matchID string) (*lineup.View, error)
	submitFn   func(ctx context.Context, userID, matchID string, players []string) (*model.LineupPick, error)
	publishFn  func(ctx context.Context, matchID string, players []string) (*model.OfficialLineup, error)
	rankingsFn func(ctx context.Context) []model.RankingEntry
}

func (m *mockLineupService) Get(ctx context.Context, userID, matchID string) (*lineup.View, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, matchID)
	}
	return &lineup.View{MatchID: matchID}, nil
}

func (m *mockLineupService) Submit(ctx context.Context, userID, matchID string, players []string) (*model.LineupPick, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, userID, matchID, players)
	}
	return &model.LineupPick{UserID: userID, MatchID: matchID, Players: players}, nil
}

func (m *mockLineupService) Publish(ctx context.Context, matchID string, players []string) (*model.OfficialLineup, error) {
	if m.publishFn != nil {
		return m.publishFn(ctx, matchID, players)
	}
	return &model.OfficialLineup{MatchID: matchID, Players: players}, nil
}

func (m *mockLineupService) Rankings(ctx context.Context) []model.RankingEntry {
	if m.rankingsFn != nil {
		return m.rankingsFn(ctx)
	}
	return nil
}

type mockCountdownService struct {
	cd countdown.Countdown
}

func (m *mockCountdownService) Get(ctx context.Context) countdown.Countdown {
	return m.cd
}

// withURLParam はchiのURLパラメータをリクエストに設定する。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func newTestMatchHandler(matches *mockMatchService, lineups *mockLineupService) *MatchHandler {
	if matches == nil {
		matches = &mockMatchService{}
	}
	if lineups == nil {
		lineups = &mockLineupService{}
	}
	return NewMatchHandler(matches, &mockWeatherService{}, lineups, &mockCountdownService{})
}

var testMatch = &model.Match{
	ID:          "match-1",
	Competition: "LaLiga",
	HomeTeam:    "RC Celta",
	AwayTeam:    "Deportivo Alavés",
	Venue:       "Abanca-Balaídos",
	KickoffAt:   time.Date(2026, 10, 25, 16, 15, 0, 0, time.UTC),
}

// --- テスト ---

func TestMatchHandler_List_PassesScope(t *testing.T) {
	var gotScope string
	h := newTestMatchHandler(&mockMatchService{
		listFn: func(ctx context.Context, scope string) ([]*model.Match, error) {
			gotScope = scope
			return []*model.Match{testMatch}, nil
		},
	}, nil)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/matches?scope=past", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotScope != "past" {
		t.Errorf("scope = %q, want %q", gotScope, "past")
	}
	var resp []matchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].HomeTeam != "RC Celta" {
		t.Errorf("response = %+v", resp)
	}
}

func TestMatchHandler_List_InvalidScope_Returns400(t *testing.T) {
	h := newTestMatchHandler(&mockMatchService{
		listFn: func(ctx context.Context, scope string) ([]*model.Match, error) {
			return nil, model.NewInvalidScopeError(scope)
		},
	}, nil)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/matches?scope=tomorrow", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestMatchHandler_Get_NotFound_Returns404(t *testing.T) {
	h := newTestMatchHandler(nil, nil)

	rec := httptest.NewRecorder()
	h.Get(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/api/matches/missing", nil), "id", "missing"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestMatchHandler_Weather_UnavailableStillReturns200(t *testing.T) {
	var called bool
	matches := &mockMatchService{
		getFn: func(ctx context.Context, id string) (*model.Match, error) { return testMatch, nil },
	}
	h := NewMatchHandler(matches, &mockWeatherService{
		forMatchFn: func(ctx context.Context, m *model.Match) weather.Report {
			called = true
			if m.Venue != "Abanca-Balaídos" {
				t.Errorf("venue = %q", m.Venue)
			}
			return weather.Report{}
		},
	}, &mockLineupService{}, &mockCountdownService{})

	rec := httptest.NewRecorder()
	h.Weather(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/api/matches/match-1/weather", nil), "id", "match-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !called {
		t.Error("ForMatch should be called")
	}
}

func TestMatchHandler_SubmitLineup(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"success", nil, http.StatusOK},
		{"locked after kickoff", model.NewLineupLockedError(), http.StatusConflict},
		{"invalid lineup", model.NewInvalidLineupError("xogadores repetidos"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestMatchHandler(nil, &mockLineupService{
				submitFn: func(ctx context.Context, userID, matchID string, players []string) (*model.LineupPick, error) {
					if userID != "user-1" || matchID != "match-1" {
						t.Errorf("userID=%q matchID=%q", userID, matchID)
					}
					if tt.err != nil {
						return nil, tt.err
					}
					return &model.LineupPick{Players: players}, nil
				},
			})

			req := jsonRequest(http.MethodPut, "/api/matches/match-1/lineup", lineupRequest{Players: []string{"Aspas"}})
			req = withURLParam(withIdentity(req, testIdentity), "id", "match-1")
			rec := httptest.NewRecorder()
			h.SubmitLineup(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestMatchHandler_Lineup_ReturnsScore(t *testing.T) {
	score := 7
	h := newTestMatchHandler(nil, &mockLineupService{
		getFn: func(ctx context.Context, userID, matchID string) (*lineup.View, error) {
			return &lineup.View{
				MatchID:  matchID,
				Locked:   true,
				Pick:     &model.LineupPick{Players: []string{"Aspas"}},
				Official: &model.OfficialLineup{Players: []string{"Aspas"}},
				Score:    &score,
			}, nil
		},
	})

	req := withURLParam(withIdentity(httptest.NewRequest(http.MethodGet, "/api/matches/match-1/lineup", nil), testIdentity), "id", "match-1")
	rec := httptest.NewRecorder()
	h.Lineup(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp lineupResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Locked || resp.Score == nil || *resp.Score != 7 || resp.Official == nil {
		t.Errorf("response = %+v", resp)
	}
}

func TestMatchHandler_Rankings_EmptyIsArray(t *testing.T) {
	h := newTestMatchHandler(nil, nil)

	rec := httptest.NewRecorder()
	h.Rankings(rec, httptest.NewRequest(http.MethodGet, "/api/rankings", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty array", got)
	}
}
