package navigation

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

// ViewNotFound は未知のパスに対するビュー名。
const ViewNotFound = "not-found"

var viewTitles = map[string]string{
	"home":                "Inicio",
	"login":               "Entrar",
	"register":            "Rexistro",
	"logout":              "Saír",
	"dashboard":           "Panel",
	"profile":             "Perfil",
	"matches":             "Partidos",
	"matches-upcoming":    "Próximos partidos",
	"matches-past":        "Partidos xogados",
	"lineup-game":         "Xogo da aliñación",
	"rankings":            "Clasificación",
	"news":                "Novas",
	"notifications":       "Notificacións",
	"admin":               "Administración",
	"admin-notifications": "Enviar notificacións",
	ViewNotFound:          "Páxina non atopada",
}

// ShellData はSPAシェルに埋め込む値。
type ShellData struct {
	View          string
	Path          string
	Authenticated bool
	CSRFToken     string
}

// Renderer はSPAシェルを描画する。
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer は埋め込みテンプレートからRendererを生成する。
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/shell.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render はシェルを描画してレスポンスに書き込む。
// テンプレートの実行に失敗した場合は何も書き込まずにエラーを返す。
func (r *Renderer) Render(w http.ResponseWriter, status int, data ShellData) error {
	title := viewTitles[data.View]
	if title == "" {
		title = data.View
	}

	var buf bytes.Buffer
	err := r.tmpl.ExecuteTemplate(&buf, "shell.html", struct {
		ShellData
		Title string
	}{data, title})
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", data.View, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}
