// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/navigation"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	identityContextKey  = contextKey("identity")
	sessionIDContextKey = contextKey("session_id")
	requestIDContextKey = contextKey("request_id")
)

// SessionReader は現在のセッション状態を読み取るインターフェース。
// auth.Serviceが実装する。
type SessionReader interface {
	Current(ctx context.Context, sessionID, location string) (*model.Identity, error)
}

// AdminChecker はユーザーが管理者ロールを持つかを判定するインターフェース。
type AdminChecker interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
}

// CookieConfig はCookieの属性。
type CookieConfig struct {
	Secure bool
	Domain string
	MaxAge int
}

// NewSessionMiddleware はセッションCookieから現在のidentityを読み取るミドルウェアを返す。
// 認証は必須ではなく、匿名のリクエストもそのまま通す。
// ナビゲーションのミドルウェアより内側に置くこと。読み取り中に配信される
// 認証イベントが、このリクエストのNavigatorで遷移を発行するため。
func NewSessionMiddleware(reader SessionReader, cfg CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			identity, err := reader.Current(ctx, cookie.Value, navigation.LocationFromContext(ctx))
			if err != nil {
				slog.Error("failed to read session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if identity == nil {
				ClearSessionCookie(w, cfg)
				next.ServeHTTP(w, r)
				return
			}

			if info := requestInfoFromContext(ctx); info != nil {
				info.userID = identity.ID
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(ctx, cookie.Value, identity)))
		})
	}
}

// RequireAuth は認証済みでないリクエストを401で拒否する。
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFromContext(r.Context()) == nil {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewRequireAdmin は管理者ロールを持たないリクエストを403で拒否するミドルウェアを返す。
// ロールは認証サービスのクレームではなく、保存済みプロフィールから判定する。
func NewRequireAdmin(checker AdminChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			p, err := checker.Get(r.Context(), userID)
			if err != nil {
				var apiErr *model.APIError
				if !errors.As(err, &apiErr) {
					slog.Error("failed to check admin role",
						slog.String("user_id", userID),
						slog.String("error", err.Error()),
					)
				}
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			if !p.IsAdmin() {
				slog.Warn("admin access denied", slog.String("user_id", userID))
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetSessionCookie はセッションCookieを設定する。
func SetSessionCookie(w http.ResponseWriter, sessionID string, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   cfg.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はセッションCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// IdentityFromContext はリクエストコンテキストのidentityを返す。匿名ならnil。
func IdentityFromContext(ctx context.Context) *model.Identity {
	id, _ := ctx.Value(identityContextKey).(*model.Identity)
	return id
}

// SessionIDFromContext は認証済みリクエストのセッションIDを返す。
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDContextKey).(string)
	return id
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	id := IdentityFromContext(ctx)
	if id == nil || id.ID == "" {
		return "", errors.New("user ID not found in context")
	}
	return id.ID, nil
}

// ContextWithIdentity はコンテキストにidentityとセッションIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, sessionID string, identity *model.Identity) context.Context {
	ctx = context.WithValue(ctx, sessionIDContextKey, sessionID)
	return context.WithValue(ctx, identityContextKey, identity)
}
