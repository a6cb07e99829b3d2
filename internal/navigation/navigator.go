package navigation

import (
	"errors"
	"mime"
	"net/http"
	"strings"
)

// SPAシェルとの取り決め
const (
	// HeaderSPA はSPAシェルからのリクエストに付与されるヘッダー。
	HeaderSPA = "X-Heredeirxs-SPA"
	// HeaderLocation はSPAシェルが表示中のパスを伝えるヘッダー。
	HeaderLocation = "X-Heredeirxs-Location"
	// HeaderNavigate はSPAシェルにクライアント側遷移を指示するレスポンスヘッダー。
	HeaderNavigate = "X-Heredeirxs-Navigate"
)

// ErrClientNavigationUnavailable はリクエスト元がSPAシェルでない場合に返される。
var ErrClientNavigationUnavailable = errors.New("navigation: client-side navigation unavailable")

// ErrAlreadyCommitted はレスポンスが既にリダイレクトで確定している場合に返される。
var ErrAlreadyCommitted = errors.New("navigation: response already committed")

// Mode は遷移の方法。
type Mode int

const (
	ModeNone Mode = iota
	ModeClient
	ModeFull
)

// Navigator は指定パスへの遷移を行う。
type Navigator interface {
	Navigate(target string) error
}

// Result は1リクエスト内で行われた遷移とプロフィール同期を記録する。
type Result struct {
	target string
	mode   Mode
	synced bool
}

// Target は最後の遷移先を返す。
func (r *Result) Target() string {
	if r == nil {
		return ""
	}
	return r.target
}

// Mode は最後の遷移方法を返す。
func (r *Result) Mode() Mode {
	if r == nil {
		return ModeNone
	}
	return r.mode
}

// Committed はリダイレクトレスポンスが書き込まれたかを返す。
// trueの場合、ハンドラーはそれ以上レスポンスを書き込んではならない。
func (r *Result) Committed() bool {
	return r.Mode() == ModeFull
}

// Synced はこのリクエストでプロフィールを同期済みかを返す。
func (r *Result) Synced() bool {
	return r != nil && r.synced
}

func (r *Result) markSynced() {
	if r != nil {
		r.synced = true
	}
}

func (r *Result) record(target string, mode Mode) {
	r.target = target
	r.mode = mode
}

// IsSPARequest はリクエストがSPAシェルからのものかを返す。
func IsSPARequest(r *http.Request) bool {
	if r.Header.Get(HeaderSPA) == "" {
		return false
	}
	accept := r.Header.Get("Accept")
	if accept == "" {
		return true
	}
	for _, part := range strings.Split(accept, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && (mt == "application/json" || mt == "*/*") {
			return true
		}
	}
	return false
}

// ClientNavigator はSPAシェルに遷移指示ヘッダーを返す。
type ClientNavigator struct {
	w       http.ResponseWriter
	enabled bool
	result  *Result
}

// NewClientNavigator はClientNavigatorを生成する。
func NewClientNavigator(w http.ResponseWriter, r *http.Request, result *Result) *ClientNavigator {
	return &ClientNavigator{w: w, enabled: IsSPARequest(r), result: result}
}

// Navigate は遷移指示ヘッダーを設定する。
func (n *ClientNavigator) Navigate(target string) error {
	if !n.enabled {
		return ErrClientNavigationUnavailable
	}
	if n.result.Committed() {
		return ErrAlreadyCommitted
	}
	n.w.Header().Set(HeaderNavigate, target)
	n.result.record(target, ModeClient)
	return nil
}

// FullNavigator は303 See Otherでページ全体を遷移させる。
type FullNavigator struct {
	w        http.ResponseWriter
	r        *http.Request
	result   *Result
	deferred bool
	finished bool
}

// NewFullNavigator はFullNavigatorを生成する。リダイレクトは即座に書き込む。
func NewFullNavigator(w http.ResponseWriter, r *http.Request, result *Result) *FullNavigator {
	return &FullNavigator{w: w, r: r, result: result}
}

// NewDeferredNavigator はリダイレクトのステータス書き込みをFinishまで遅らせるFullNavigatorを生成する。
// 遷移の後にハンドラーがCookieを設定できる。
func NewDeferredNavigator(w http.ResponseWriter, r *http.Request, result *Result) *FullNavigator {
	return &FullNavigator{w: w, r: r, result: result, deferred: true}
}

// Navigate はリダイレクトレスポンスを書き込む。
func (n *FullNavigator) Navigate(target string) error {
	if n.result.Committed() {
		return ErrAlreadyCommitted
	}
	n.w.Header().Del(HeaderNavigate)
	n.result.record(target, ModeFull)
	if n.deferred {
		n.w.Header().Set("Location", target)
		return nil
	}
	http.Redirect(n.w, n.r, target, http.StatusSeeOther)
	return nil
}

// Finish は遅延したリダイレクトのステータスを書き込む。
// 遷移していない場合や即時モードでは何もしない。
func (n *FullNavigator) Finish() {
	if !n.deferred || n.finished || !n.result.Committed() {
		return
	}
	n.finished = true
	n.w.WriteHeader(http.StatusSeeOther)
}

type fallbackNavigator struct {
	primary   Navigator
	secondary Navigator
}

// WithFallback はprimaryが失敗したときにsecondaryで遷移するNavigatorを返す。
func WithFallback(primary, secondary Navigator) Navigator {
	return &fallbackNavigator{primary: primary, secondary: secondary}
}

func (n *fallbackNavigator) Navigate(target string) error {
	if err := n.primary.Navigate(target); err != nil {
		if errors.Is(err, ErrAlreadyCommitted) {
			return err
		}
		return n.secondary.Navigate(target)
	}
	return nil
}
