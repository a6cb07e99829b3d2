package news

import (
	"strings"
	"testing"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>RC Celta</title>
  <link>https://rccelta.es</link>
  <item>
    <title>Convocatoria para Sevilla</title>
    <link>https://rccelta.es/noticias/convocatoria</link>
    <guid>celta-1001</guid>
    <pubDate>Sat, 14 Mar 2026 10:00:00 +0100</pubDate>
    <description><![CDATA[<p>Lista de <strong>convocados</strong></p>]]></description>
    <enclosure url="https://rccelta.es/img/convocatoria.jpg" type="image/jpeg" length="1000"/>
  </item>
  <item>
    <title>Sen GUID</title>
    <link>https://rccelta.es/noticias/sen-guid</link>
    <description>texto</description>
  </item>
  <item>
    <title>Sen nada</title>
  </item>
</channel>
</rss>`

func TestParse_RSS(t *testing.T) {
	feed, items, err := Parse([]byte(sampleRSS))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if feed.Link != "https://rccelta.es" {
		t.Errorf("feed.Link = %q", feed.Link)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}

	first := items[0]
	if first.GUID != "celta-1001" || first.Title != "Convocatoria para Sevilla" {
		t.Errorf("first = %+v", first)
	}
	if first.PublishedAt == nil || first.PublishedAt.Hour() != 9 {
		t.Errorf("PublishedAt = %v, want 09:00 UTC", first.PublishedAt)
	}
	if first.ImageURL != "https://rccelta.es/img/convocatoria.jpg" {
		t.Errorf("ImageURL = %q", first.ImageURL)
	}
	if !strings.Contains(first.Content, "convocados") {
		t.Errorf("Content should fall back to description, got %q", first.Content)
	}

	if items[1].GUID != "https://rccelta.es/noticias/sen-guid" {
		t.Errorf("GUID without guid element = %q, want link", items[1].GUID)
	}
	if !strings.HasPrefix(items[2].GUID, "sha256:") {
		t.Errorf("GUID without guid or link = %q, want hash", items[2].GUID)
	}
}

func TestParse_HashGUIDIsStable(t *testing.T) {
	_, a, _ := Parse([]byte(sampleRSS))
	_, b, _ := Parse([]byte(sampleRSS))
	if a[2].GUID != b[2].GUID {
		t.Errorf("hash GUID differs between parses: %q vs %q", a[2].GUID, b[2].GUID)
	}
}

func TestParse_Atom(t *testing.T) {
	atom := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Celta</title>
  <entry>
    <title>Vitoria</title>
    <id>https://rccelta.es/noticias/vitoria</id>
    <updated>2026-03-15T20:00:00Z</updated>
    <content type="html">&lt;p&gt;2-0&lt;/p&gt;</content>
  </entry>
</feed>`

	_, items, err := Parse([]byte(atom))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d", len(items))
	}
	if items[0].Link != "https://rccelta.es/noticias/vitoria" {
		t.Errorf("Link should fall back to the URL id, got %q", items[0].Link)
	}
	if items[0].PublishedAt == nil {
		t.Error("PublishedAt should fall back to updated")
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, _, err := Parse([]byte("<html><body>not a feed</body></html>")); err == nil {
		t.Error("expected error for non-feed content")
	}
}
