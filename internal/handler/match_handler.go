package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/heredeirxs/internal/countdown"
	"github.com/hitoshi/heredeirxs/internal/lineup"
	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/weather"
)

// MatchService は試合ハンドラーが必要とするサービスインターフェース。
type MatchService interface {
	List(ctx context.Context, scope string) ([]*model.Match, error)
	Get(ctx context.Context, id string) (*model.Match, error)
}

// WeatherService は試合の天気予報を返すインターフェース。
type WeatherService interface {
	ForMatch(ctx context.Context, m *model.Match) weather.Report
}

// LineupService はラインナップゲームのサービスインターフェース。
type LineupService interface {
	Get(ctx context.Context, userID, matchID string) (*lineup.View, error)
	Submit(ctx context.Context, userID, matchID string, players []string) (*model.LineupPick, error)
	Publish(ctx context.Context, matchID string, players []string) (*model.OfficialLineup, error)
	Rankings(ctx context.Context) []model.RankingEntry
}

// CountdownService はカウントダウンのサービスインターフェース。
type CountdownService interface {
	Get(ctx context.Context) countdown.Countdown
}

// MatchHandler は試合・天気・ラインナップ・ランキングのHTTPハンドラー。
type MatchHandler struct {
	matches   MatchService
	weather   WeatherService
	lineups   LineupService
	countdown CountdownService
}

// NewMatchHandler はMatchHandlerを生成する。
func NewMatchHandler(matches MatchService, weather WeatherService, lineups LineupService, countdown CountdownService) *MatchHandler {
	return &MatchHandler{
		matches:   matches,
		weather:   weather,
		lineups:   lineups,
		countdown: countdown,
	}
}

type matchResponse struct {
	ID          string    `json:"id"`
	Competition string    `json:"competition"`
	HomeTeam    string    `json:"home_team"`
	AwayTeam    string    `json:"away_team"`
	Venue       string    `json:"venue"`
	KickoffAt   time.Time `json:"kickoff_at"`
	HomeScore   *int      `json:"home_score"`
	AwayScore   *int      `json:"away_score"`
}

func toMatchResponse(m *model.Match) matchResponse {
	return matchResponse{
		ID:          m.ID,
		Competition: m.Competition,
		HomeTeam:    m.HomeTeam,
		AwayTeam:    m.AwayTeam,
		Venue:       m.Venue,
		KickoffAt:   m.KickoffAt,
		HomeScore:   m.HomeScore,
		AwayScore:   m.AwayScore,
	}
}

type lineupRequest struct {
	Players []string `json:"players"`
}

type pickResponse struct {
	Players   []string  `json:"players"`
	UpdatedAt time.Time `json:"updated_at"`
}

type officialResponse struct {
	Players     []string  `json:"players"`
	PublishedAt time.Time `json:"published_at"`
}

type lineupResponse struct {
	MatchID  string            `json:"match_id"`
	Locked   bool              `json:"locked"`
	Pick     *pickResponse     `json:"pick"`
	Official *officialResponse `json:"official"`
	Score    *int              `json:"score"`
}

type rankingResponse struct {
	Position    int    `json:"position"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Points      int    `json:"points"`
	Picks       int    `json:"picks"`
}

func toPickResponse(p *model.LineupPick) *pickResponse {
	if p == nil {
		return nil
	}
	return &pickResponse{Players: p.Players, UpdatedAt: p.UpdatedAt}
}

func toOfficialResponse(o *model.OfficialLineup) *officialResponse {
	if o == nil {
		return nil
	}
	return &officialResponse{Players: o.Players, PublishedAt: o.PublishedAt}
}

// List は試合一覧を返す。
// GET /api/matches?scope=upcoming|past
func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	matches, err := h.matches.List(r.Context(), r.URL.Query().Get("scope"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]matchResponse, len(matches))
	for i, m := range matches {
		resp[i] = toMatchResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get は試合の詳細を返す。
// GET /api/matches/{id}
func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.matches.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(m))
}

// Weather は試合会場のキックオフ時刻の天気予報を返す。
// GET /api/matches/{id}/weather
// 取得できない場合もプレースホルダーを200で返す。
func (h *MatchHandler) Weather(w http.ResponseWriter, r *http.Request) {
	m, err := h.matches.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.weather.ForMatch(r.Context(), m))
}

// Lineup は自分の予想と公式ラインナップを返す。
// GET /api/matches/{id}/lineup
func (h *MatchHandler) Lineup(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	v, err := h.lineups.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lineupResponse{
		MatchID:  v.MatchID,
		Locked:   v.Locked,
		Pick:     toPickResponse(v.Pick),
		Official: toOfficialResponse(v.Official),
		Score:    v.Score,
	})
}

// SubmitLineup はキックオフ前の予想を保存する。
// PUT /api/matches/{id}/lineup
func (h *MatchHandler) SubmitLineup(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req lineupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pick, err := h.lineups.Submit(r.Context(), userID, chi.URLParam(r, "id"), req.Players)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPickResponse(pick))
}

// PublishLineup は公式ラインナップを公開する。管理者専用。
// PUT /api/admin/matches/{id}/lineup
func (h *MatchHandler) PublishLineup(w http.ResponseWriter, r *http.Request) {
	var req lineupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	official, err := h.lineups.Publish(r.Context(), chi.URLParam(r, "id"), req.Players)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOfficialResponse(official))
}

// Rankings はラインナップゲームのランキングを返す。
// GET /api/rankings
func (h *MatchHandler) Rankings(w http.ResponseWriter, r *http.Request) {
	entries := h.lineups.Rankings(r.Context())

	resp := make([]rankingResponse, len(entries))
	for i, e := range entries {
		resp[i] = rankingResponse{
			Position:    e.Position,
			UserID:      e.UserID,
			DisplayName: e.DisplayName,
			Points:      e.Points,
			Picks:       e.Picks,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Countdown は次の試合のキックオフまでの残り時間を返す。
// GET /api/countdown
func (h *MatchHandler) Countdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.countdown.Get(r.Context()))
}
