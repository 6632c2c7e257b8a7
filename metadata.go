package main

import (
	"bytes"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// probe is one place a metadata value may live: the text of sel when attr
// is empty, otherwise the named attribute of the first match.
type probe struct {
	sel  string
	attr string
}

func metaProbes(key string) []probe {
	return []probe{
		{`meta[property="` + key + `"]`, "content"},
		{`meta[name="` + key + `"]`, "content"},
	}
}

var (
	titleProbes = []probe{
		{"title", ""},
		{`meta[property="og:title"]`, "content"},
		{`meta[name="twitter:title"]`, "content"},
		{`meta[property="twitter:title"]`, "content"},
	}
	descriptionProbes = []probe{
		{`meta[name="description"]`, "content"},
		{`meta[property="description"]`, "content"},
		{`meta[property="og:description"]`, "content"},
	}
	authorProbes = []probe{
		{`meta[name="author"]`, "content"},
		{`meta[property="article:author"]`, "content"},
		{`meta[name="article:author"]`, "content"},
		{`[rel="author"]`, ""},
	}
	dateProbes = []probe{
		{`meta[property="article:published_time"]`, "content"},
		{`meta[name="datePublished"]`, "content"},
		{`meta[itemprop="datePublished"]`, "content"},
		{`meta[name="publish_date"]`, "content"},
		{`meta[name="publication_date"]`, "content"},
		{`meta[name="date"]`, "content"},
		{`meta[name="article-date"]`, "content"},
		{`time[datetime]`, "datetime"},
	}
	// Archives written by renderArchiveHTML carry their provenance in these,
	// so re-archiving a local copy keeps the original URL.
	localSourceProbes = []probe{
		{`meta[name="source-url"]`, "content"},
		{`meta[property="og:url"]`, "content"},
		{`link[rel="canonical"]`, "href"},
	}
)

func firstValue(doc *goquery.Document, probes []probe) string {
	for _, p := range probes {
		sel := doc.Find(p.sel).First()
		if sel.Length() == 0 {
			continue
		}
		var v string
		if p.attr == "" {
			v = sel.Text()
		} else {
			v, _ = sel.Attr(p.attr)
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// extractMetadata reads descriptive fields from a page. Nothing here can
// fail: absent fields stay empty.
func extractMetadata(body []byte, src *SourceDocument, now time.Time) Metadata {
	meta := Metadata{
		SourceFile:  src.Origin,
		DateScraped: now,
	}
	if src.FinalURL != nil {
		meta.SourceURL = src.FinalURL.String()
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		meta.SourceDomain = domainOf(meta.SourceURL)
		return meta
	}

	meta.Title = firstValue(doc, titleProbes)
	meta.Description = firstValue(doc, descriptionProbes)
	meta.Keywords = firstValue(doc, []probe{{`meta[name="keywords"]`, "content"}})
	meta.OGTitle = firstValue(doc, metaProbes("og:title"))
	meta.OGDescription = firstValue(doc, metaProbes("og:description"))
	meta.OGImage = firstValue(doc, metaProbes("og:image"))
	meta.OGType = firstValue(doc, metaProbes("og:type"))
	meta.TwitterCard = firstValue(doc, metaProbes("twitter:card"))
	meta.TwitterTitle = firstValue(doc, metaProbes("twitter:title"))
	meta.TwitterDescription = firstValue(doc, metaProbes("twitter:description"))
	meta.TwitterImage = firstValue(doc, metaProbes("twitter:image"))
	meta.Author = collapseSpace(firstValue(doc, authorProbes))
	meta.ArticleDate = bareDate(firstValue(doc, dateProbes))

	if src.IsLocal {
		if u := firstValue(doc, localSourceProbes); u != "" {
			meta.SourceURL = u
		}
	}
	meta.SourceDomain = domainOf(meta.SourceURL)
	return meta
}

// bareDate cuts an ISO 8601 timestamp down to its date part.
func bareDate(s string) string {
	if i := strings.IndexByte(s, 'T'); i > 0 {
		return s[:i]
	}
	return s
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "file" {
		return ""
	}
	return u.Hostname()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// isGenericTitle reports whether a <title> is too weak to name an article,
// in which case the title found by content extraction is used instead.
func isGenericTitle(title string) bool {
	t := strings.TrimSpace(title)
	if len([]rune(t)) < 10 {
		return true
	}
	switch strings.ToLower(t) {
	case "untitled", "document":
		return true
	}
	return false
}
