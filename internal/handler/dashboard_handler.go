package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/heredeirxs/internal/countdown"
	"github.com/hitoshi/heredeirxs/internal/dashboard"
	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/weather"
)

// maxNewsLimit はニュース一覧で指定できる件数の上限。
const maxNewsLimit = 50

// DashboardService はダッシュボードのサービスインターフェース。
type DashboardService interface {
	Get(ctx context.Context, userID string) dashboard.Dashboard
}

// NewsService はニュースのサービスインターフェース。
type NewsService interface {
	Latest(ctx context.Context, limit int) []*model.NewsItem
}

// DashboardHandler はダッシュボードとニュースのHTTPハンドラー。
type DashboardHandler struct {
	dashboard DashboardService
	news      NewsService
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(dashboard DashboardService, news NewsService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, news: news}
}

type newsResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Summary     string     `json:"summary"`
	ImageURL    string     `json:"image_url,omitempty"`
	PublishedAt *time.Time `json:"published_at"`
}

type dashboardResponse struct {
	DisplayName string              `json:"display_name"`
	NextMatch   *matchResponse      `json:"next_match"`
	Countdown   countdown.Countdown `json:"countdown"`
	Weather     weather.Report      `json:"weather"`
	Unread      int                 `json:"unread"`
	News        []newsResponse      `json:"news"`
}

func toNewsResponses(items []*model.NewsItem) []newsResponse {
	resp := make([]newsResponse, len(items))
	for i, n := range items {
		resp[i] = newsResponse{
			ID:          n.ID,
			Title:       n.Title,
			Link:        n.Link,
			Summary:     n.Summary,
			ImageURL:    n.ImageURL,
			PublishedAt: n.PublishedAt,
		}
	}
	return resp
}

// Dashboard はダッシュボードの表示内容を返す。
// GET /api/dashboard
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	d := h.dashboard.Get(r.Context(), userID)
	resp := dashboardResponse{
		DisplayName: d.DisplayName,
		Countdown:   d.Countdown,
		Weather:     d.Weather,
		Unread:      d.Unread,
		News:        toNewsResponses(d.News),
	}
	if d.NextMatch != nil {
		m := toMatchResponse(d.NextMatch)
		resp.NextMatch = &m
	}
	writeJSON(w, http.StatusOK, resp)
}

// News は最新のニュースを返す。
// GET /api/news?limit=N
func (h *DashboardHandler) News(w http.ResponseWriter, r *http.Request) {
	limit := dashboard.NewsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxNewsLimit {
			handleServiceError(w, r, model.NewValidationError("limit", "O número de novas debe estar entre 1 e 50."))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, toNewsResponses(h.news.Latest(r.Context(), limit)))
}
