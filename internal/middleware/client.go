package middleware

import (
	"net/http"

	"github.com/rs/xid"

	"github.com/hitoshi/heredeirxs/internal/navigation"
)

const (
	// ClientCookieName はブラウザを識別するCookieの名前。
	ClientCookieName   = "client_id"
	clientCookieMaxAge = 365 * 24 * 60 * 60
)

// NewClientKeyMiddleware はブラウザごとの識別子をCookieで発行し、
// 遷移ログで同じブラウザを追跡するキーとしてコンテキストに格納するミドルウェアを返す。
func NewClientKeyMiddleware(cfg CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if c, err := r.Cookie(ClientCookieName); err == nil {
				if id, err := xid.FromString(c.Value); err == nil {
					key = id.String()
				}
			}
			if key == "" {
				key = xid.New().String()
				http.SetCookie(w, &http.Cookie{
					Name:     ClientCookieName,
					Value:    key,
					Path:     "/",
					Domain:   cfg.Domain,
					MaxAge:   clientCookieMaxAge,
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(navigation.WithClientKey(r.Context(), key)))
		})
	}
}
