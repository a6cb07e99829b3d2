// Package security は外部由来のHTMLとURLを安全に扱うための機能を提供する。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer は用途ごとのbluemondayポリシーを保持する。
// ポリシーは生成後に変更しないため、複数のゴルーチンから同時に使用できる。
type Sanitizer struct {
	news         *bluemonday.Policy
	notification *bluemonday.Policy
	plain        *bluemonday.Policy
}

// NewSanitizer はSanitizerを生成する。
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		news:         newsPolicy(),
		notification: notificationPolicy(),
		plain:        bluemonday.StrictPolicy(),
	}
}

// newsPolicy はクラブのニュース本文向けのポリシー。
// URLはhttpsのみ許可し、リンクは新しいタブで開く。
func newsPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "ul", "ol", "li", "blockquote", "strong", "em", "h3", "h4")

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(*url.URL) bool { return true })
	return p
}

// notificationPolicy は管理パネルから送信する通知本文向けのポリシー。
// 書式とリンクのみ許可し、画像は許可しない。
func notificationPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "em", "ul", "li")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	return p
}

// News はニュース本文をサニタイズする。
func (s *Sanitizer) News(raw string) string {
	return strings.TrimSpace(s.news.Sanitize(raw))
}

// Notification は通知本文をサニタイズする。
func (s *Sanitizer) Notification(raw string) string {
	return strings.TrimSpace(s.notification.Sanitize(raw))
}

// PlainText は全てのタグを除去したテキストを返す。見出しやタイトルに使用する。
// 結果はHTMLではないため、エスケープされた文字は元に戻す。
func (s *Sanitizer) PlainText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.plain.Sanitize(raw)))
}
