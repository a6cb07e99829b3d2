package news

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// LeadImage は記事HTML内の最初の画像URLを返す。
// 相対URLはbaseで解決し、httpsでないものは無視する。
func LeadImage(body, base string) string {
	baseURL, _ := url.Parse(base)

	z := html.NewTokenizer(strings.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "img" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "src" {
					if src := resolveHTTPS(baseURL, string(val)); src != "" {
						return src
					}
				}
				if !more {
					break
				}
			}
		}
	}
}

func resolveHTTPS(base *url.URL, ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || ref == "" {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "https" || u.Host == "" {
		return ""
	}
	return u.String()
}
