package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/heredeirxs/internal/middleware"
	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/navigation"
)

// mockSessionReader はmiddleware.SessionReaderのモック実装。
type mockSessionReader struct {
	sessions map[string]*model.Identity
}

func (m *mockSessionReader) Current(ctx context.Context, sessionID, location string) (*model.Identity, error) {
	return m.sessions[sessionID], nil
}

const testCSRFToken = "csrf-test-token"

func newTestRouter(t *testing.T, profiles *mockProfileService) http.Handler {
	t.Helper()
	if profiles == nil {
		profiles = &mockProfileService{
			getFn: func(ctx context.Context, userID string) (*model.Profile, error) {
				return &model.Profile{ID: userID, Email: "fan@example.com"}, nil
			},
		}
	}
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		SessionReader:       &mockSessionReader{sessions: map[string]*model.Identity{"sess-1": testIdentity}},
		AdminChecker:        profiles,
		RateLimiter:         rl,
		CORSAllowedOrigin:   "http://localhost:3000",
		Cookies:             testCookies,
		HealthChecker:       &mockHealthChecker{},
		MetricsHandler:      http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
		AuthService:         &mockAuthService{},
		Reconciler:          &mockReconciler{},
		Renderer:            &mockRenderer{},
		ProfileService:      profiles,
		MatchService:        &mockMatchService{},
		WeatherService:      &mockWeatherService{},
		LineupService:       &mockLineupService{},
		CountdownService:    &mockCountdownService{},
		NotificationService: &mockNotificationService{},
		DashboardService:    &mockDashboardService{},
		NewsService:         &mockNewsService{},
	})
}

// authed はセッションCookieとCSRFトークンを付与する。
func authed(r *http.Request) *http.Request {
	r.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "sess-1"})
	r.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	r.Header.Set("X-CSRF-Token", testCSRFToken)
	return r
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		authed     bool
		wantStatus int
	}{
		{"health", http.MethodGet, "/health", false, http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", false, http.StatusOK},
		{"csrf token", http.MethodGet, "/api/csrf-token", false, http.StatusOK},
		{"home page", http.MethodGet, "/", false, http.StatusOK},
		{"unknown page", http.MethodGet, "/non-existe", false, http.StatusNotFound},
		{"legacy page", http.MethodGet, "/salir", false, http.StatusMovedPermanently},
		{"api requires auth", http.MethodGet, "/api/profile", false, http.StatusUnauthorized},
		{"profile", http.MethodGet, "/api/profile", true, http.StatusOK},
		{"matches", http.MethodGet, "/api/matches", true, http.StatusOK},
		{"countdown", http.MethodGet, "/api/countdown", true, http.StatusOK},
		{"rankings", http.MethodGet, "/api/rankings", true, http.StatusOK},
		{"news", http.MethodGet, "/api/news", true, http.StatusOK},
		{"dashboard", http.MethodGet, "/api/dashboard", true, http.StatusOK},
		{"inbox", http.MethodGet, "/api/notifications", true, http.StatusOK},
		{"mark read", http.MethodPost, "/api/notifications/n-1/read", true, http.StatusNoContent},
		{"admin requires role", http.MethodGet, "/api/admin/notifications", true, http.StatusForbidden},
		{"unknown api", http.MethodGet, "/api/unknown", true, http.StatusNotFound},
		{"me", http.MethodGet, "/auth/me", true, http.StatusOK},
		{"touch", http.MethodPost, "/auth/touch", true, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.authed {
				req = authed(req)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("%s %s status = %d, want %d: %s", tt.method, tt.path, w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestRouter_AdminRoutes_AllowAdmin(t *testing.T) {
	router := newTestRouter(t, &mockProfileService{
		getFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return &model.Profile{ID: userID, Role: model.RoleAdmin}, nil
		},
	})

	req := authed(httptest.NewRequest(http.MethodGet, "/api/admin/notifications", nil))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_StateChangeWithoutCSRFToken_Returns403(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/n-1/read", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "sess-1"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestRouter_PageIssuesClientAndCSRFCookies(t *testing.T) {
	router := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, navigation.PathLogin, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if findResponseCookie(w, middleware.ClientCookieName) == nil {
		t.Error("client cookie should be issued")
	}
	if findResponseCookie(w, "csrf_token") == nil {
		t.Error("csrf cookie should be issued")
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers should be set")
	}
}

func TestRouter_HealthDoesNotIssueCookies(t *testing.T) {
	router := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if len(w.Result().Cookies()) != 0 {
		t.Errorf("cookies = %v, want none", w.Result().Cookies())
	}
}
