// Package navigation はルートテーブル、ロケーション分類、
// セッション状態とロケーションを整合させるリコンサイラーを提供する。
package navigation

import (
	"path"
	"strings"
)

// 主要なパス
const (
	PathHome      = "/"
	PathLogin     = "/login"
	PathRegister  = "/register"
	PathLogout    = "/logout"
	PathDashboard = "/dashboard"
	PathUpcoming  = "/partidos/proximos"
	PathPast      = "/partidos/pasados"
)

// Routes はパスとビュー名の対応表。
var Routes = map[string]string{
	PathHome:               "home",
	PathLogin:              "login",
	PathRegister:           "register",
	PathLogout:             "logout",
	PathDashboard:          "dashboard",
	"/perfil":              "profile",
	"/partidos":            "matches",
	PathUpcoming:           "matches-upcoming",
	PathPast:               "matches-past",
	"/xogo":                "lineup-game",
	"/clasificacion":       "rankings",
	"/noticias":            "news",
	"/notificacions":       "notifications",
	"/admin":               "admin",
	"/admin/notificacions": "admin-notifications",
}

// LegacyRedirects は旧パスから正規パスへの転送表。
var LegacyRedirects = map[string]string{
	"/salir":        PathLogout,
	"/cerrar":       PathLogout,
	"/out":          PathLogout,
	"/force-logout": PathLogout,
	"/proximos":     PathUpcoming,
}

// publicPaths は匿名で閲覧できるパス。
var publicPaths = map[string]bool{
	PathHome:     true,
	PathLogin:    true,
	PathRegister: true,
}

// Partition はロケーションの分類。
type Partition string

const (
	Public  Partition = "public"
	Private Partition = "private"
)

// Classify はパスをpublic/privateに分類する。
// 全ての呼び出し元はこの関数を使う。
func Classify(p string) Partition {
	if publicPaths[Normalize(p)] {
		return Public
	}
	return Private
}

// Normalize はパスを比較用に正規化する。
// クエリを除き、末尾のスラッシュを取り除く。
func Normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return PathHome
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// ResolutionKind はパス解決の種別。
type ResolutionKind int

const (
	// KindView はビューを表示する。
	KindView ResolutionKind = iota
	// KindRedirect は旧パスからの転送。
	KindRedirect
	// KindNotFound は未知のパス。
	KindNotFound
)

// Resolution はパス解決の結果。
type Resolution struct {
	Kind   ResolutionKind
	Path   string // 正規化されたパス
	View   string // KindViewの場合のビュー名
	Target string // KindRedirectの場合の転送先
}

// Resolve はパスをルートテーブルで解決する。
func Resolve(p string) Resolution {
	p = Normalize(p)
	if target, ok := LegacyRedirects[p]; ok {
		return Resolution{Kind: KindRedirect, Path: p, Target: target}
	}
	if view, ok := Routes[p]; ok {
		return Resolution{Kind: KindView, Path: p, View: view}
	}
	return Resolution{Kind: KindNotFound, Path: p}
}
