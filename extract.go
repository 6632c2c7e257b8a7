package main

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	readability "codeberg.org/readeck/go-readability"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	// A strategy must find more than this many visible characters to win.
	strategyMinText = 200
	// Whatever was chosen must have at least this many or the run fails.
	contentMinText = 100
)

// noiseSelector lists elements removed before the selector and body
// strategies look at the page.
const noiseSelector = "script, style, nav, header, footer, aside, noscript, " +
	"advertisement, sidebar, .ad, .ads, .advert, .advertisement, .sidebar, #sidebar"

// contentSelectors are probed in order by the selector strategy.
var contentSelectors = []string{
	"main",
	`[role="main"]`,
	"article",
	".article-content",
	".post-content",
	".entry-content",
	".content",
	"#content",
	".main-content",
	"#main-content",
	".article-body",
	".post-body",
}

// pageCandidates holds the parsed forms every strategy may look at.
type pageCandidates struct {
	readable      string // readability output, possibly empty
	readableTitle string
	stripped      *goquery.Document
}

// contentStrategy returns extracted content and true when it is satisfied
// with what it found.
type contentStrategy func(p *pageCandidates) (ExtractedContent, bool)

var contentStrategies = []contentStrategy{
	readabilityStrategy,
	selectorStrategy,
	bodyStrategy,
}

func readabilityStrategy(p *pageCandidates) (ExtractedContent, bool) {
	n := visibleTextLength(p.readable)
	return ExtractedContent{HTML: p.readable, Strategy: "readability", TextLength: n}, n > strategyMinText
}

func selectorStrategy(p *pageCandidates) (ExtractedContent, bool) {
	for _, sel := range contentSelectors {
		s := p.stripped.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		n := utf8.RuneCountInString(collapseSpace(s.Text()))
		if n <= strategyMinText {
			continue
		}
		frag, err := goquery.OuterHtml(s)
		if err != nil {
			continue
		}
		return ExtractedContent{HTML: frag, Strategy: "selector:" + sel, TextLength: n}, true
	}
	return ExtractedContent{}, false
}

// bodyStrategy takes the stripped <body> as is, falling back to the short
// readability result when the page has no body at all.
func bodyStrategy(p *pageCandidates) (ExtractedContent, bool) {
	body := p.stripped.Find("body").First()
	if body.Length() > 0 {
		if frag, err := body.Html(); err == nil && strings.TrimSpace(frag) != "" {
			n := utf8.RuneCountInString(collapseSpace(body.Text()))
			return ExtractedContent{HTML: strings.TrimSpace(frag), Strategy: "body-fallback", TextLength: n}, true
		}
	}
	n := visibleTextLength(p.readable)
	return ExtractedContent{HTML: p.readable, Strategy: "readability", TextLength: n}, true
}

// extractMainContent isolates the article in a page and names it. Lazy
// images are promoted first so every strategy sees real src attributes.
func extractMainContent(page []byte, pageURL *url.URL) (ExtractedContent, string, error) {
	page = promoteLazySrc(page)

	p := &pageCandidates{}
	if article, err := readability.FromReader(bytes.NewReader(page), pageURL); err == nil {
		p.readable = strings.TrimSpace(article.Content)
		p.readableTitle = strings.TrimSpace(article.Title)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ExtractedContent{}, "", fmt.Errorf("%w: %v", ErrContentExtraction, err)
	}
	title := pageTitle(doc, p.readableTitle)
	stripNoise(doc)
	p.stripped = doc

	var content ExtractedContent
	for _, strategy := range contentStrategies {
		c, ok := strategy(p)
		if ok {
			content = c
			break
		}
	}

	if content.TextLength < contentMinText {
		return ExtractedContent{}, title, fmt.Errorf("%w (%d characters of text)", ErrContentExtraction, content.TextLength)
	}
	return content, title, nil
}

// pageTitle picks the readability title, then <title>, then the first <h1>.
func pageTitle(doc *goquery.Document, readableTitle string) string {
	if readableTitle != "" {
		return collapseSpace(readableTitle)
	}
	if t := collapseSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t := collapseSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return "Untitled"
}

func stripNoise(doc *goquery.Document) {
	doc.Find(noiseSelector).Remove()
	for _, n := range doc.Nodes {
		removeComments(n)
	}
}

func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}

// visibleTextLength counts the characters a reader would see in an HTML
// fragment, with whitespace runs counted once.
func visibleTextLength(fragment string) int {
	if strings.TrimSpace(fragment) == "" {
		return 0
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return 0
	}
	doc.Find("script, style, noscript").Remove()
	return utf8.RuneCountInString(collapseSpace(doc.Text()))
}

// countWords counts whitespace-separated words in the visible text.
func countWords(fragment string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return 0
	}
	doc.Find("script, style, noscript").Remove()
	return len(strings.Fields(doc.Text()))
}
