package middleware

import (
	"context"
	"net/http"

	"github.com/rs/xid"
)

// RequestIDHeader はリクエストIDを返すレスポンスヘッダー。
const RequestIDHeader = "X-Request-ID"

// requestInfo は外側のミドルウェアが内側で判明した値を参照するための共有領域。
type requestInfo struct {
	id     string
	userID string
}

// NewRequestIDMiddleware はリクエストごとにxidを採番するミドルウェアを返す。
func NewRequestIDMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := requestInfoFromContext(r.Context())
			if info == nil {
				info = &requestInfo{}
				r = r.WithContext(context.WithValue(r.Context(), requestIDContextKey, info))
			}
			if info.id == "" {
				info.id = xid.New().String()
			}
			w.Header().Set(RequestIDHeader, info.id)
			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDFromContext はリクエストIDを返す。未採番なら空文字。
func RequestIDFromContext(ctx context.Context) string {
	if info := requestInfoFromContext(ctx); info != nil {
		return info.id
	}
	return ""
}

func requestInfoFromContext(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestIDContextKey).(*requestInfo)
	return info
}
