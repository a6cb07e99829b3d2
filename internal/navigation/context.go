package navigation

import (
	"context"
	"net/http"
	"net/url"
)

type contextKey string

var (
	navigatorContextKey = contextKey("navigator")
	resultContextKey    = contextKey("navigation_result")
	locationContextKey  = contextKey("location")
	clientKeyContextKey = contextKey("client_key")
)

// WithNavigator はコンテキストにNavigatorと遷移記録を格納する。
func WithNavigator(ctx context.Context, nav Navigator, result *Result) context.Context {
	ctx = context.WithValue(ctx, navigatorContextKey, nav)
	return context.WithValue(ctx, resultContextKey, result)
}

// NavigatorFromContext はコンテキストのNavigatorを返す。未設定ならnil。
func NavigatorFromContext(ctx context.Context) Navigator {
	nav, _ := ctx.Value(navigatorContextKey).(Navigator)
	return nav
}

// ResultFromContext はコンテキストの遷移記録を返す。未設定ならnil。
func ResultFromContext(ctx context.Context) *Result {
	res, _ := ctx.Value(resultContextKey).(*Result)
	return res
}

// WithLocation はコンテキストにブラウザの表示中パスを格納する。
func WithLocation(ctx context.Context, location string) context.Context {
	return context.WithValue(ctx, locationContextKey, location)
}

// LocationFromContext はブラウザの表示中パスを返す。不明な場合は空文字。
func LocationFromContext(ctx context.Context) string {
	loc, _ := ctx.Value(locationContextKey).(string)
	return loc
}

// WithClientKey はコンテキストにブラウザを識別するキーを格納する。
func WithClientKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, clientKeyContextKey, key)
}

// ClientKeyFromContext はブラウザを識別するキーを返す。
func ClientKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(clientKeyContextKey).(string)
	return key
}

// NewPageMiddleware はページ表示用の遷移コンテキストを用意するミドルウェアを返す。
// ロケーションはリクエストパス。遷移はクライアント側を優先し、失敗時は303にフォールバックする。
// 303はハンドラーの終了後に書き込むため、遷移後もCookieを設定できる。
func NewPageMiddleware() func(next http.Handler) http.Handler {
	return newMiddleware(pageLocation, true)
}

// NewActionMiddleware はフォーム送信などの操作用の遷移コンテキストを用意するミドルウェアを返す。
// ロケーションはSPAシェルのヘッダー、なければ同一ホストのRefererから取得する。
func NewActionMiddleware() func(next http.Handler) http.Handler {
	return newMiddleware(actionLocation, true)
}

// NewAPIMiddleware はAPI用の遷移コンテキストを用意するミドルウェアを返す。
// 遷移はクライアント側のみ行い、レスポンスをリダイレクトで確定させない。
func NewAPIMiddleware() func(next http.Handler) http.Handler {
	return newMiddleware(headerLocation, false)
}

func newMiddleware(locate func(*http.Request) string, fallback bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := &Result{}
			var nav Navigator = NewClientNavigator(w, r, result)
			var full *FullNavigator
			if fallback {
				full = NewDeferredNavigator(w, r, result)
				nav = WithFallback(nav, full)
			}
			ctx := WithNavigator(r.Context(), nav, result)
			ctx = WithLocation(ctx, locate(r))
			next.ServeHTTP(w, r.WithContext(ctx))
			if full != nil {
				full.Finish()
			}
		})
	}
}

func headerLocation(r *http.Request) string {
	if !IsSPARequest(r) {
		return ""
	}
	return r.Header.Get(HeaderLocation)
}

func pageLocation(r *http.Request) string {
	if loc := headerLocation(r); loc != "" {
		return loc
	}
	return r.URL.Path
}

func actionLocation(r *http.Request) string {
	if loc := headerLocation(r); loc != "" {
		return loc
	}
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != r.Host) {
		return ""
	}
	return ref.Path
}
