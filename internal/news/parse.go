// Package news はクラブのニュースフィードの取得と配信を提供する。
package news

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/heredeirxs/internal/model"
)

// Parse はRSS/Atomの本文をパースして記事に変換する。
func Parse(body []byte) (*gofeed.Feed, []model.ParsedNewsItem, error) {
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return feed, convertItems(feed.Items), nil
}

// convertItems はgofeedの記事をParsedNewsItemに変換する。
// GUIDがない記事はリンク、それもなければタイトルと公開日時のハッシュで識別する。
func convertItems(items []*gofeed.Item) []model.ParsedNewsItem {
	parsed := make([]model.ParsedNewsItem, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}

		p := model.ParsedNewsItem{
			GUID:    strings.TrimSpace(it.GUID),
			Title:   strings.TrimSpace(it.Title),
			Link:    strings.TrimSpace(it.Link),
			Content: it.Content,
			Summary: it.Description,
		}
		if p.Content == "" {
			p.Content = it.Description
		}

		switch {
		case it.PublishedParsed != nil:
			t := it.PublishedParsed.UTC()
			p.PublishedAt = &t
		case it.UpdatedParsed != nil:
			t := it.UpdatedParsed.UTC()
			p.PublishedAt = &t
		}

		if p.Link == "" && isHTTPURL(p.GUID) {
			p.Link = p.GUID
		}
		if p.GUID == "" {
			p.GUID = p.Link
		}
		if p.GUID == "" {
			p.GUID = hashGUID(p.Title, p.PublishedAt)
		}

		p.ImageURL = feedImage(it)
		parsed = append(parsed, p)
	}
	return parsed
}

// feedImage はフィード自体が持つ画像URLを返す。
func feedImage(it *gofeed.Item) string {
	if it.Image != nil && it.Image.URL != "" {
		return it.Image.URL
	}
	for _, enc := range it.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}

func hashGUID(title string, published *time.Time) string {
	var pub string
	if published != nil {
		pub = published.Format(time.RFC3339)
	}
	sum := sha256.Sum256([]byte(title + "\x00" + pub))
	return fmt.Sprintf("sha256:%x", sum)
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
