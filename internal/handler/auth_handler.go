package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/heredeirxs/internal/auth"
	"github.com/hitoshi/heredeirxs/internal/middleware"
	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/navigation"
)

// AuthService は認証ハンドラーが必要とするサービスインターフェース。
type AuthService interface {
	SignIn(ctx context.Context, email, password, location string) (*model.Session, *model.Identity, error)
	SignUp(ctx context.Context, in auth.SignUpInput, location string) (*model.Session, *model.Identity, error)
	SignOut(ctx context.Context, sessionID, location string) error
}

// Reconciler はセッション状態とロケーションの整合判定を行うインターフェース。
type Reconciler interface {
	Mount(ctx context.Context, identity *model.Identity) navigation.Decision
	VisibilityRegained(ctx context.Context, sessionID string, identity *model.Identity) navigation.Decision
}

// ProfileReader はプロフィールを読み取るインターフェース。
type ProfileReader interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service    AuthService
	reconciler Reconciler
	profiles   ProfileReader
	cookies    middleware.CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthService, reconciler Reconciler, profiles ProfileReader, cookies middleware.CookieConfig) *AuthHandler {
	return &AuthHandler{
		service:    service,
		reconciler: reconciler,
		profiles:   profiles,
		cookies:    cookies,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Phone           string `json:"phone"`
}

type reconcileRequest struct {
	Path    string `json:"path"`
	Trigger string `json:"trigger"`
}

// meResponse は現在のユーザーのAPIレスポンス。
type meResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Admin       bool   `json:"admin"`
}

// navigationResponse は遷移指示のAPIレスポンス。
type navigationResponse struct {
	Action string `json:"action"` // navigate | none
	Target string `json:"target,omitempty"`
}

type signedInResponse struct {
	User     meResponse `json:"user"`
	Navigate string     `json:"navigate,omitempty"`
}

// Login はメールアドレスとパスワードでサインインする。
// POST /auth/login
// 入力はJSONまたはHTMLフォーム。サインイン中に配信されるSIGNED_INで遷移が決まる。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if isFormRequest(r) {
		req = loginRequest{Email: r.PostFormValue("email"), Password: r.PostFormValue("password")}
	} else if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	session, identity, err := h.service.SignIn(ctx, req.Email, req.Password, navigation.LocationFromContext(ctx))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.signedIn(w, r, session, identity)
}

// Register はアカウントを作成する。
// POST /auth/register
// メール確認が必要な場合は202を返し、セッションは発行しない。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if isFormRequest(r) {
		req = registerRequest{
			Email:           r.PostFormValue("email"),
			Password:        r.PostFormValue("password"),
			PasswordConfirm: r.PostFormValue("password_confirm"),
			FirstName:       r.PostFormValue("first_name"),
			LastName:        r.PostFormValue("last_name"),
			Phone:           r.PostFormValue("phone"),
		}
	} else if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	session, identity, err := h.service.SignUp(ctx, auth.SignUpInput{
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
	}, navigation.LocationFromContext(ctx))
	if errors.Is(err, auth.ErrConfirmationRequired) {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"confirmation_required": true,
			"message":               "Enviámosche un correo para confirmar a conta.",
		})
		return
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.signedIn(w, r, session, identity)
}

// signedIn はセッションCookieを設定し、遷移済みでなければユーザー情報を返す。
func (h *AuthHandler) signedIn(w http.ResponseWriter, r *http.Request, session *model.Session, identity *model.Identity) {
	middleware.SetSessionCookie(w, session.ID, h.cookies)

	result := navigation.ResultFromContext(r.Context())
	if result.Committed() {
		return
	}
	writeJSON(w, http.StatusOK, signedInResponse{
		User:     h.me(r.Context(), identity),
		Navigate: result.Target(),
	})
}

// Logout はセッションを破棄する。
// POST /auth/logout
// 認証サービス側の失敗に関わらずCookieはクリアし、ログイン画面へ遷移する。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	signOut(ctx, h.service, sessionCookie(r), navigation.LocationFromContext(ctx))
	middleware.ClearSessionCookie(w, h.cookies)

	result := navigation.ResultFromContext(ctx)
	if result.Committed() {
		return
	}
	writeJSON(w, http.StatusOK, navigationResponse{Action: actionFor(result.Target()), Target: result.Target()})
}

// Touch はタブが可視状態に戻ったときのセッション維持を行う。
// POST /auth/touch
// トークンのリフレッシュだけを行い、遷移はしない。セッションミドルウェアを通さずに呼ぶ。
func (h *AuthHandler) Touch(w http.ResponseWriter, r *http.Request) {
	if id := sessionCookie(r); id != "" {
		h.reconciler.VisibilityRegained(r.Context(), id, nil)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}
	writeJSON(w, http.StatusOK, h.me(r.Context(), identity))
}

// Reconcile はSPAシェルでのクライアント側の画面遷移後に整合判定を行う。
// POST /auth/reconcile
func (h *AuthHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("path", "Falta a ruta."))
		return
	}

	ctx := navigation.WithLocation(r.Context(), navigation.Normalize(req.Path))
	identity := middleware.IdentityFromContext(ctx)

	var d navigation.Decision
	switch navigation.Trigger(req.Trigger) {
	case navigation.TriggerMount, "":
		d = h.reconciler.Mount(ctx, identity)
	case navigation.TriggerVisibility:
		d = h.reconciler.VisibilityRegained(ctx, middleware.SessionIDFromContext(ctx), identity)
	default:
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("trigger", "Evento descoñecido."))
		return
	}

	writeJSON(w, http.StatusOK, navigationResponse{Action: actionFor(d.Target), Target: d.Target})
}

// me はidentityと保存済みプロフィールからレスポンスを組み立てる。
// プロフィールの読み取りに失敗した場合はidentityの値だけを返す。
func (h *AuthHandler) me(ctx context.Context, identity *model.Identity) meResponse {
	resp := meResponse{ID: identity.ID, Email: identity.Email, DisplayName: identity.Email}
	p, err := h.profiles.Get(ctx, identity.ID)
	if err != nil {
		slog.Debug("profile not available for me", slog.String("user_id", identity.ID))
		return resp
	}
	resp.DisplayName = p.DisplayName()
	resp.Admin = p.IsAdmin()
	return resp
}

// signOut はセッションを破棄する。失敗はログに残すだけ。
// セッションがない場合は整合判定が走らないため、ここでログイン画面に遷移する。
func signOut(ctx context.Context, service AuthService, sessionID, location string) {
	if sessionID != "" {
		if err := service.SignOut(ctx, sessionID, location); err != nil {
			slog.Error("failed to sign out", slog.String("error", err.Error()))
		} else {
			return
		}
	}
	if nav := navigation.NavigatorFromContext(ctx); nav != nil && navigation.ResultFromContext(ctx).Mode() == navigation.ModeNone {
		if err := nav.Navigate(navigation.PathLogin); err != nil {
			slog.Warn("navigation failed", slog.String("error", err.Error()))
		}
	}
}

func sessionCookie(r *http.Request) string {
	c, err := r.Cookie(middleware.SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func isFormRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}

func actionFor(target string) string {
	if target == "" {
		return "none"
	}
	return "navigate"
}
