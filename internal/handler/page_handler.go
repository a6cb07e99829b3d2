package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/heredeirxs/internal/middleware"
	"github.com/hitoshi/heredeirxs/internal/navigation"
)

// ShellRenderer はSPAシェルを描画するインターフェース。
type ShellRenderer interface {
	Render(w http.ResponseWriter, status int, data navigation.ShellData) error
}

// PageHandler はルートテーブルのパスを解決してSPAシェルを返すハンドラー。
type PageHandler struct {
	auth       AuthService
	reconciler Reconciler
	renderer   ShellRenderer
	cookies    middleware.CookieConfig
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(auth AuthService, reconciler Reconciler, renderer ShellRenderer, cookies middleware.CookieConfig) *PageHandler {
	return &PageHandler{
		auth:       auth,
		reconciler: reconciler,
		renderer:   renderer,
		cookies:    cookies,
	}
}

// ServeHTTP はページ表示を処理する。
// 旧パスは正規パスへ301で転送し、未知のパスは404のビューを返す。
// ログアウトのパスではセッションを破棄し、それ以外は整合判定の後にシェルを描画する。
func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res := navigation.Resolve(r.URL.Path)

	switch res.Kind {
	case navigation.KindRedirect:
		target := res.Target
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		return
	case navigation.KindNotFound:
		h.render(w, r, http.StatusNotFound, navigation.ViewNotFound, res.Path)
		return
	}

	ctx := r.Context()
	if res.Path == navigation.PathLogout {
		signOut(ctx, h.auth, sessionCookie(r), res.Path)
		middleware.ClearSessionCookie(w, h.cookies)
		if navigation.ResultFromContext(ctx).Committed() {
			return
		}
		h.render(w, r, http.StatusOK, res.View, res.Path)
		return
	}

	h.reconciler.Mount(ctx, middleware.IdentityFromContext(ctx))
	if navigation.ResultFromContext(ctx).Committed() {
		return
	}
	h.render(w, r, http.StatusOK, res.View, res.Path)
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, view, path string) {
	ctx := r.Context()
	err := h.renderer.Render(w, status, navigation.ShellData{
		View:          view,
		Path:          path,
		Authenticated: middleware.IdentityFromContext(ctx) != nil,
		CSRFToken:     middleware.CSRFTokenFromContext(ctx),
	})
	if err != nil {
		// 描画の失敗はリカバリーミドルウェアのエラーパネルに置き換える
		slog.Error("failed to render shell",
			slog.String("view", view),
			slog.String("error", err.Error()),
		)
		panic(err)
	}
}
