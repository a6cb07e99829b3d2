package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
)

// errorPanel はレンダリング中のpanicを置き換える静的なエラーパネル。
const errorPanel = `<!DOCTYPE html>
<html lang="gl">
<head><meta charset="utf-8"><title>Erro | Heredeirxs do Celta</title></head>
<body>
<main class="error-panel" role="alert">
<h1>Algo saíu mal</h1>
<p>Non puidemos amosar esta páxina. Recarga ou volve ao <a href="/">inicio</a>.</p>
</main>
</body>
</html>
`

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、
// APIにはJSONの500レスポンスを、ページには静的なエラーパネルを返すミドルウェアを生成する。
// 技術的な詳細はログにのみ記録する。
func NewRecoveryMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					slog.Error("panic recovered",
						slog.Any("panic", rec),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("request_id", RequestIDFromContext(r.Context())),
						slog.String("stack", string(debug.Stack())),
					)
					if wantsJSON(r) {
						WriteInternalServerError(w)
						return
					}
					w.Header().Set("Content-Type", "text/html; charset=utf-8")
					w.Header().Set("Cache-Control", "no-store")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(errorPanel))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/auth/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
