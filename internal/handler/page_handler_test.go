package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/xid"

	"github.com/hitoshi/heredeirxs/internal/auth"
	"github.com/hitoshi/heredeirxs/internal/middleware"
	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/navigation"
)

// mockRenderer はShellRendererのモック実装。
type mockRenderer struct {
	renderFn func(w http.ResponseWriter, status int, data navigation.ShellData) error
	calls    []navigation.ShellData
	statuses []int
}

func (m *mockRenderer) Render(w http.ResponseWriter, status int, data navigation.ShellData) error {
	m.calls = append(m.calls, data)
	m.statuses = append(m.statuses, status)
	if m.renderFn != nil {
		return m.renderFn(w, status, data)
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte("<html>" + data.View + "</html>"))
	return nil
}

func servePage(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	navigation.NewPageMiddleware()(h).ServeHTTP(rec, req)
	return rec
}

func TestPageHandler_KnownPath_MountsAndRenders(t *testing.T) {
	var gotLocation string
	rc := &mockReconciler{
		mountFn: func(ctx context.Context, identity *model.Identity) navigation.Decision {
			gotLocation = navigation.LocationFromContext(ctx)
			if identity == nil || identity.ID != "user-1" {
				t.Errorf("identity = %+v, want user-1", identity)
			}
			return navigation.Decision{}
		},
	}
	renderer := &mockRenderer{}
	h := NewPageHandler(&mockAuthService{}, rc, renderer, testCookies)

	rec := servePage(h, withIdentity(httptest.NewRequest(http.MethodGet, "/perfil", nil), testIdentity))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotLocation != "/perfil" {
		t.Errorf("location = %q, want %q", gotLocation, "/perfil")
	}
	if len(renderer.calls) != 1 {
		t.Fatalf("render calls = %d, want 1", len(renderer.calls))
	}
	if got := renderer.calls[0]; got.View != "profile" || !got.Authenticated {
		t.Errorf("shell data = %+v", got)
	}
}

func TestPageHandler_PrivatePathAnonymous_RedirectsWithoutRender(t *testing.T) {
	rc := &mockReconciler{
		mountFn: func(ctx context.Context, identity *model.Identity) navigation.Decision {
			navigateTo(ctx, navigation.PathLogin)
			return navigation.Decision{Navigated: true, Target: navigation.PathLogin}
		},
	}
	renderer := &mockRenderer{}
	h := NewPageHandler(&mockAuthService{}, rc, renderer, testCookies)

	rec := servePage(h, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if got := rec.Header().Get("Location"); got != navigation.PathLogin {
		t.Errorf("Location = %q, want %q", got, navigation.PathLogin)
	}
	if len(renderer.calls) != 0 {
		t.Errorf("render should not be called, got %d calls", len(renderer.calls))
	}
}

func TestPageHandler_SPARequest_ClientNavigationStillRenders(t *testing.T) {
	rc := &mockReconciler{
		mountFn: func(ctx context.Context, identity *model.Identity) navigation.Decision {
			navigateTo(ctx, navigation.PathLogin)
			return navigation.Decision{Navigated: true, Target: navigation.PathLogin}
		},
	}
	renderer := &mockRenderer{}
	h := NewPageHandler(&mockAuthService{}, rc, renderer, testCookies)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set(navigation.HeaderSPA, "1")
	rec := servePage(h, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get(navigation.HeaderNavigate); got != navigation.PathLogin {
		t.Errorf("%s = %q, want %q", navigation.HeaderNavigate, got, navigation.PathLogin)
	}
}

func TestPageHandler_LegacyPath_PermanentRedirectKeepsQuery(t *testing.T) {
	rc := &mockReconciler{
		mountFn: func(ctx context.Context, identity *model.Identity) navigation.Decision {
			t.Error("Mount should not be called for legacy paths")
			return navigation.Decision{}
		},
	}
	h := NewPageHandler(&mockAuthService{}, rc, &mockRenderer{}, testCookies)

	rec := servePage(h, httptest.NewRequest(http.MethodGet, "/proximos?competicion=liga", nil))

	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMovedPermanently)
	}
	if got := rec.Header().Get("Location"); got != navigation.PathUpcoming+"?competicion=liga" {
		t.Errorf("Location = %q", got)
	}
}

func TestPageHandler_UnknownPath_Renders404(t *testing.T) {
	renderer := &mockRenderer{}
	h := NewPageHandler(&mockAuthService{}, &mockReconciler{}, renderer, testCookies)

	rec := servePage(h, httptest.NewRequest(http.MethodGet, "/non-existe", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if len(renderer.calls) != 1 || renderer.calls[0].View != navigation.ViewNotFound {
		t.Errorf("render calls = %+v", renderer.calls)
	}
}

func TestPageHandler_Logout_SignsOutAndClearsCookie(t *testing.T) {
	var signedOut string
	svc := &mockAuthService{
		signOutFn: func(ctx context.Context, sessionID, location string) error {
			signedOut = sessionID
			navigateTo(ctx, navigation.PathLogin)
			return nil
		},
	}
	rc := &mockReconciler{
		mountFn: func(ctx context.Context, identity *model.Identity) navigation.Decision {
			t.Error("Mount should not be called on logout")
			return navigation.Decision{}
		},
	}
	h := NewPageHandler(svc, rc, &mockRenderer{}, testCookies)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "sess-1"})
	rec := servePage(h, req)

	if signedOut != "sess-1" {
		t.Errorf("SignOut sessionID = %q, want %q", signedOut, "sess-1")
	}
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if c := findResponseCookie(rec, middleware.SessionCookieName); c == nil || c.MaxAge >= 0 {
		t.Errorf("session cookie should be cleared, got %+v", c)
	}
}

func TestPageHandler_RenderFailure_Panics(t *testing.T) {
	renderer := &mockRenderer{
		renderFn: func(w http.ResponseWriter, status int, data navigation.ShellData) error {
			return errors.New("template exploded")
		},
	}
	h := NewPageHandler(&mockAuthService{}, &mockReconciler{}, renderer, testCookies)

	rec := httptest.NewRecorder()
	chain := middleware.NewRecoveryMiddleware()(navigation.NewPageMiddleware()(h))
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

// stubSyncer はnavigation.ProfileSyncerのスタブ実装。
type stubSyncer struct {
	calls int
}

func (s *stubSyncer) Sync(ctx context.Context, identity *model.Identity) model.SyncResult {
	s.calls++
	return model.SyncResult{Outcome: model.OutcomeSuccess}
}

func TestPageHandler_AnonymousOnPrivate_EveryRequestRedirects(t *testing.T) {
	renderer := &mockRenderer{}
	rc := navigation.NewReconciler(&stubSyncer{}, nil, nil)
	h := NewPageHandler(&mockAuthService{}, rc, renderer, testCookies)
	chain := middleware.NewClientKeyMiddleware(testCookies)(navigation.NewPageMiddleware()(h))
	browser := xid.New().String()

	// 1回目の遷移がブラウザに届かなかった場合も、次のリクエストで再度ログインへ送る
	for i := 1; i <= 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/perfil", nil)
		req.AddCookie(&http.Cookie{Name: middleware.ClientCookieName, Value: browser})
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)

		if rec.Code != http.StatusSeeOther {
			t.Errorf("request %d: status = %d, want %d", i, rec.Code, http.StatusSeeOther)
		}
		if got := rec.Header().Get("Location"); got != navigation.PathLogin {
			t.Errorf("request %d: Location = %q, want %q", i, got, navigation.PathLogin)
		}
	}
	if len(renderer.calls) != 0 {
		t.Errorf("private shell rendered %d times to an anonymous visitor", len(renderer.calls))
	}
}

func TestPageHandler_AuthenticatedOnPublic_SyncsOncePerRequest(t *testing.T) {
	syncer := &stubSyncer{}
	rc := navigation.NewReconciler(syncer, nil, nil)
	h := NewPageHandler(&mockAuthService{}, rc, &mockRenderer{}, testCookies)

	// セッション読み取り中のリフレッシュで同期と遷移が済んでいる
	page := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rc.OnAuthEvent(ctx, auth.Event{Type: auth.EventTokenRefreshed, Identity: testIdentity, Location: "/login"})
		h.ServeHTTP(w, r)
	})

	rec := servePage(page, withIdentity(httptest.NewRequest(http.MethodGet, "/login", nil), testIdentity))

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if got := rec.Header().Get("Location"); got != navigation.PathDashboard {
		t.Errorf("Location = %q, want %q", got, navigation.PathDashboard)
	}
	if syncer.calls != 1 {
		t.Errorf("profile writes = %d, want 1", syncer.calls)
	}
}
