package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/heredeirxs/internal/auth"
	"github.com/hitoshi/heredeirxs/internal/middleware"
	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/navigation"
	"github.com/hitoshi/heredeirxs/internal/profile"
)

// --- モック定義 ---

// mockAuthService はAuthServiceのモック実装。
type mockAuthService struct {
	signInFn  func(ctx context.Context, email, password, location string) (*model.Session, *model.Identity, error)
	signUpFn  func(ctx context.Context, in auth.SignUpInput, location string) (*model.Session, *model.Identity, error)
	signOutFn func(ctx context.Context, sessionID, location string) error
}

func (m *mockAuthService) SignIn(ctx context.Context, email, password, location string) (*model.Session, *model.Identity, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password, location)
	}
	return nil, nil, errors.New("not implemented")
}

func (m *mockAuthService) SignUp(ctx context.Context, in auth.SignUpInput, location string) (*model.Session, *model.Identity, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, in, location)
	}
	return nil, nil, errors.New("not implemented")
}

func (m *mockAuthService) SignOut(ctx context.Context, sessionID, location string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, sessionID, location)
	}
	return nil
}

// mockReconciler はReconcilerのモック実装。
type mockReconciler struct {
	mountFn      func(ctx context.Context, identity *model.Identity) navigation.Decision
	visibilityFn func(ctx context.Context, sessionID string, identity *model.Identity) navigation.Decision
}

func (m *mockReconciler) Mount(ctx context.Context, identity *model.Identity) navigation.Decision {
	if m.mountFn != nil {
		return m.mountFn(ctx, identity)
	}
	return navigation.Decision{}
}

func (m *mockReconciler) VisibilityRegained(ctx context.Context, sessionID string, identity *model.Identity) navigation.Decision {
	if m.visibilityFn != nil {
		return m.visibilityFn(ctx, sessionID, identity)
	}
	return navigation.Decision{}
}

// mockProfileService はProfileServiceのモック実装。
type mockProfileService struct {
	getFn    func(ctx context.Context, userID string) (*model.Profile, error)
	updateFn func(ctx context.Context, userID string, edit profile.Edit) (*model.Profile, error)
}

func (m *mockProfileService) Get(ctx context.Context, userID string) (*model.Profile, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, model.NewUserNotFoundError()
}

func (m *mockProfileService) Update(ctx context.Context, userID string, edit profile.Edit) (*model.Profile, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, edit)
	}
	return nil, errors.New("not implemented")
}

// --- ヘルパー ---

var testCookies = middleware.CookieConfig{MaxAge: 3600}

var testIdentity = &model.Identity{
	ID:        "user-1",
	Email:     "fan@example.com",
	ExpiresAt: time.Now().Add(time.Hour),
}

func newTestAuthHandler(svc *mockAuthService, rec *mockReconciler, profiles *mockProfileService) *AuthHandler {
	if svc == nil {
		svc = &mockAuthService{}
	}
	if rec == nil {
		rec = &mockReconciler{}
	}
	if profiles == nil {
		profiles = &mockProfileService{}
	}
	return NewAuthHandler(svc, rec, profiles, testCookies)
}

// withIdentity はリクエストに認証済みidentityを注入する。
func withIdentity(r *http.Request, identity *model.Identity) *http.Request {
	return r.WithContext(middleware.ContextWithIdentity(r.Context(), "sess-1", identity))
}

func jsonRequest(method, target string, body any) *http.Request {
	b, _ := json.Marshal(body)
	r := httptest.NewRequest(method, target, bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func findResponseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// navigateTo はサービス呼び出し中の認証イベント配信による遷移を再現する。
func navigateTo(ctx context.Context, target string) {
	if nav := navigation.NavigatorFromContext(ctx); nav != nil {
		_ = nav.Navigate(target)
	}
}

// --- POST /auth/login ---

func TestAuthHandler_Login_Success_SetsCookieAndReturnsUser(t *testing.T) {
	svc := &mockAuthService{
		signInFn: func(ctx context.Context, email, password, location string) (*model.Session, *model.Identity, error) {
			if email != "fan@example.com" || password != "secret123" {
				t.Errorf("credentials = (%q, %q)", email, password)
			}
			return &model.Session{ID: "sess-new", UserID: "user-1"}, testIdentity, nil
		},
	}
	profiles := &mockProfileService{
		getFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return &model.Profile{ID: userID, Email: "fan@example.com", FullName: "Iago Aspas"}, nil
		},
	}
	h := newTestAuthHandler(svc, nil, profiles)

	rec := httptest.NewRecorder()
	req := jsonRequest(http.MethodPost, "/auth/login", loginRequest{Email: "fan@example.com", Password: "secret123"})
	navigation.NewAPIMiddleware()(http.HandlerFunc(h.Login)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	c := findResponseCookie(rec, middleware.SessionCookieName)
	if c == nil || c.Value != "sess-new" {
		t.Fatalf("session cookie = %+v, want sess-new", c)
	}

	var resp signedInResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.User.DisplayName != "Iago Aspas" {
		t.Errorf("DisplayName = %q, want %q", resp.User.DisplayName, "Iago Aspas")
	}
}

func TestAuthHandler_Login_FormNavigation_RedirectsWithCookie(t *testing.T) {
	svc := &mockAuthService{
		signInFn: func(ctx context.Context, email, password, location string) (*model.Session, *model.Identity, error) {
			if location != navigation.PathLogin {
				t.Errorf("location = %q, want %q", location, navigation.PathLogin)
			}
			navigateTo(ctx, navigation.PathDashboard)
			return &model.Session{ID: "sess-new"}, testIdentity, nil
		},
	}
	h := newTestAuthHandler(svc, nil, nil)

	form := url.Values{"email": {"fan@example.com"}, "password": {"secret123"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", "http://example.com/login")
	rec := httptest.NewRecorder()
	navigation.NewActionMiddleware()(http.HandlerFunc(h.Login)).ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if got := rec.Header().Get("Location"); got != navigation.PathDashboard {
		t.Errorf("Location = %q, want %q", got, navigation.PathDashboard)
	}
	if c := findResponseCookie(rec, middleware.SessionCookieName); c == nil || c.Value != "sess-new" {
		t.Errorf("session cookie should be set before the redirect is written, got %+v", c)
	}
	if strings.Contains(rec.Body.String(), `"user"`) {
		t.Errorf("body should not contain user JSON: %s", rec.Body.String())
	}
}

func TestAuthHandler_Login_InvalidCredentials_Returns401(t *testing.T) {
	svc := &mockAuthService{
		signInFn: func(ctx context.Context, email, password, location string) (*model.Session, *model.Identity, error) {
			return nil, nil, model.NewInvalidCredentialsError()
		},
	}
	h := newTestAuthHandler(svc, nil, nil)

	rec := httptest.NewRecorder()
	req := jsonRequest(http.MethodPost, "/auth/login", loginRequest{Email: "fan@example.com", Password: "wrong"})
	navigation.NewAPIMiddleware()(http.HandlerFunc(h.Login)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if c := findResponseCookie(rec, middleware.SessionCookieName); c != nil {
		t.Errorf("session cookie should not be set, got %+v", c)
	}
}

func TestAuthHandler_Login_MalformedJSON_Returns400(t *testing.T) {
	h := newTestAuthHandler(nil, nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	h.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// --- POST /auth/register ---

func TestAuthHandler_Register_ConfirmationRequired_Returns202(t *testing.T) {
	svc := &mockAuthService{
		signUpFn: func(ctx context.Context, in auth.SignUpInput, location string) (*model.Session, *model.Identity, error) {
			if in.FirstName != "Iago" || in.Phone != "+34600000000" {
				t.Errorf("input = %+v", in)
			}
			return nil, nil, auth.ErrConfirmationRequired
		},
	}
	h := newTestAuthHandler(svc, nil, nil)

	rec := httptest.NewRecorder()
	req := jsonRequest(http.MethodPost, "/auth/register", registerRequest{
		Email: "fan@example.com", Password: "secret123", PasswordConfirm: "secret123",
		FirstName: "Iago", LastName: "Aspas", Phone: "+34600000000",
	})
	navigation.NewAPIMiddleware()(http.HandlerFunc(h.Register)).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if c := findResponseCookie(rec, middleware.SessionCookieName); c != nil {
		t.Errorf("session cookie should not be set, got %+v", c)
	}
}

func TestAuthHandler_Register_EmailTaken_Returns409(t *testing.T) {
	svc := &mockAuthService{
		signUpFn: func(ctx context.Context, in auth.SignUpInput, location string) (*model.Session, *model.Identity, error) {
			return nil, nil, model.NewEmailTakenError()
		},
	}
	h := newTestAuthHandler(svc, nil, nil)

	rec := httptest.NewRecorder()
	req := jsonRequest(http.MethodPost, "/auth/register", registerRequest{Email: "fan@example.com"})
	h.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

// --- POST /auth/logout ---

func TestAuthHandler_Logout_ClearsCookieEvenWhenSignOutFails(t *testing.T) {
	var gotSessionID string
	svc := &mockAuthService{
		signOutFn: func(ctx context.Context, sessionID, location string) error {
			gotSessionID = sessionID
			return errors.New("auth service down")
		},
	}
	h := newTestAuthHandler(svc, nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set(navigation.HeaderSPA, "1")
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "sess-1"})
	navigation.NewActionMiddleware()(http.HandlerFunc(h.Logout)).ServeHTTP(rec, req)

	if gotSessionID != "sess-1" {
		t.Errorf("SignOut sessionID = %q, want %q", gotSessionID, "sess-1")
	}
	c := findResponseCookie(rec, middleware.SessionCookieName)
	if c == nil || c.MaxAge >= 0 {
		t.Fatalf("session cookie should be cleared, got %+v", c)
	}

	var resp navigationResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Target != navigation.PathLogin {
		t.Errorf("Target = %q, want %q", resp.Target, navigation.PathLogin)
	}
}

func TestAuthHandler_Logout_WithoutSession_RedirectsToLogin(t *testing.T) {
	called := false
	svc := &mockAuthService{
		signOutFn: func(ctx context.Context, sessionID, location string) error {
			called = true
			return nil
		},
	}
	h := newTestAuthHandler(svc, nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	navigation.NewActionMiddleware()(http.HandlerFunc(h.Logout)).ServeHTTP(rec, req)

	if called {
		t.Error("SignOut should not be called without a session")
	}
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if got := rec.Header().Get("Location"); got != navigation.PathLogin {
		t.Errorf("Location = %q, want %q", got, navigation.PathLogin)
	}
}

// --- POST /auth/touch ---

func TestAuthHandler_Touch_RefreshesWithoutIdentity(t *testing.T) {
	var gotSessionID string
	var gotIdentity *model.Identity
	rec := &mockReconciler{
		visibilityFn: func(ctx context.Context, sessionID string, identity *model.Identity) navigation.Decision {
			gotSessionID = sessionID
			gotIdentity = identity
			return navigation.Decision{}
		},
	}
	h := newTestAuthHandler(nil, rec, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/touch", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "sess-1"})
	h.Touch(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if gotSessionID != "sess-1" {
		t.Errorf("sessionID = %q, want %q", gotSessionID, "sess-1")
	}
	if gotIdentity != nil {
		t.Errorf("identity = %+v, want nil", gotIdentity)
	}
}

func TestAuthHandler_Touch_NoCookie_DoesNothing(t *testing.T) {
	rec := &mockReconciler{
		visibilityFn: func(ctx context.Context, sessionID string, identity *model.Identity) navigation.Decision {
			t.Error("VisibilityRegained should not be called without a cookie")
			return navigation.Decision{}
		},
	}
	h := newTestAuthHandler(nil, rec, nil)

	w := httptest.NewRecorder()
	h.Touch(w, httptest.NewRequest(http.MethodPost, "/auth/touch", nil))

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

// --- GET /auth/me ---

func TestAuthHandler_Me(t *testing.T) {
	profiles := &mockProfileService{
		getFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return &model.Profile{ID: userID, Email: "fan@example.com", Role: model.RoleAdmin}, nil
		},
	}
	h := newTestAuthHandler(nil, nil, profiles)

	t.Run("unauthenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Me(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("authenticated admin", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Me(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/auth/me", nil), testIdentity))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var resp meResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !resp.Admin {
			t.Error("Admin should be true")
		}
		if resp.DisplayName != "fan@example.com" {
			t.Errorf("DisplayName = %q, want email fallback", resp.DisplayName)
		}
	})

	t.Run("profile unavailable falls back to identity", func(t *testing.T) {
		h := newTestAuthHandler(nil, nil, &mockProfileService{})
		rec := httptest.NewRecorder()
		h.Me(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/auth/me", nil), testIdentity))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var resp meResponse
		_ = json.NewDecoder(rec.Body).Decode(&resp)
		if resp.Admin || resp.ID != "user-1" {
			t.Errorf("response = %+v", resp)
		}
	})
}

// --- POST /auth/reconcile ---

func TestAuthHandler_Reconcile(t *testing.T) {
	tests := []struct {
		name       string
		body       reconcileRequest
		wantStatus int
		wantMount  bool
		wantVisib  bool
	}{
		{"mount by default", reconcileRequest{Path: "/perfil/"}, http.StatusOK, true, false},
		{"explicit mount", reconcileRequest{Path: "/perfil", Trigger: "mount"}, http.StatusOK, true, false},
		{"visibility", reconcileRequest{Path: "/perfil", Trigger: "visibility"}, http.StatusOK, false, true},
		{"unknown trigger", reconcileRequest{Path: "/perfil", Trigger: "SIGNED_IN"}, http.StatusBadRequest, false, false},
		{"missing path", reconcileRequest{}, http.StatusBadRequest, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mounted, visible bool
			rc := &mockReconciler{
				mountFn: func(ctx context.Context, identity *model.Identity) navigation.Decision {
					mounted = true
					if got := navigation.LocationFromContext(ctx); got != "/perfil" {
						t.Errorf("location = %q, want %q", got, "/perfil")
					}
					return navigation.Decision{}
				},
				visibilityFn: func(ctx context.Context, sessionID string, identity *model.Identity) navigation.Decision {
					visible = true
					if sessionID != "sess-1" {
						t.Errorf("sessionID = %q, want %q", sessionID, "sess-1")
					}
					return navigation.Decision{Navigated: true, Target: navigation.PathLogin}
				},
			}
			h := newTestAuthHandler(nil, rc, nil)

			rec := httptest.NewRecorder()
			req := withIdentity(jsonRequest(http.MethodPost, "/auth/reconcile", tt.body), testIdentity)
			h.Reconcile(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if mounted != tt.wantMount || visible != tt.wantVisib {
				t.Errorf("mount=%v visibility=%v, want %v/%v", mounted, visible, tt.wantMount, tt.wantVisib)
			}
			if tt.wantVisib {
				var resp navigationResponse
				_ = json.NewDecoder(rec.Body).Decode(&resp)
				if resp.Action != "navigate" || resp.Target != navigation.PathLogin {
					t.Errorf("response = %+v", resp)
				}
			}
		})
	}
}
