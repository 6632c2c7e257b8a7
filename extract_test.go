package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPageURL, _ = url.Parse("https://example.com/blog/post")

// longArticle builds a page whose article body comfortably passes every
// length threshold.
func longArticle(title string, extraBody string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html><html><head><title>%s</title></head><body>", title)
	b.WriteString(`<nav><a href="/">Home</a> <a href="/about">About</a></nav>`)
	b.WriteString(`<header><p>Site banner that is not part of the article</p></header>`)
	fmt.Fprintf(&b, "<article><h1>%s</h1>", title)
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, "<p>Paragraph %d explains, in several complete sentences, why archiving the web "+
			"matters. Pages disappear, links rot and the context of a discussion is lost unless someone "+
			"keeps a copy that can be read offline years later.</p>", i+1)
	}
	b.WriteString(extraBody)
	b.WriteString(`</article><footer><p>Copyright notice</p></footer></body></html>`)
	return b.String()
}

func TestExtractMainContent_Readability(t *testing.T) {
	page := longArticle("Why We Archive The Web", "")
	content, title, err := extractMainContent([]byte(page), testPageURL)
	require.NoError(t, err)

	assert.Equal(t, "readability", content.Strategy)
	assert.Greater(t, content.TextLength, strategyMinText)
	assert.Contains(t, content.HTML, "Paragraph 3 explains")
	assert.NotContains(t, content.HTML, "Copyright notice")
	assert.Contains(t, title, "Why We Archive The Web")
}

func boundaryPage(n int) string {
	return "<html><head><title>Boundary check page</title></head><body><p>" +
		strings.Repeat("a", n) + "</p></body></html>"
}

func TestExtractMainContent_ExactlyMinimumPasses(t *testing.T) {
	content, _, err := extractMainContent([]byte(boundaryPage(contentMinText)), testPageURL)
	require.NoError(t, err)
	assert.Equal(t, contentMinText, content.TextLength)
}

func TestExtractMainContent_OneShortFails(t *testing.T) {
	_, _, err := extractMainContent([]byte(boundaryPage(contentMinText-1)), testPageURL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrContentExtraction), "got %v", err)
}

func TestSelectorStrategy_ProbesInOrder(t *testing.T) {
	text := strings.Repeat("Selector strategy content. ", 12)
	page := `<html><body><div class="sidebar">` + text + `</div>` +
		`<div class="post-content"><p>` + text + `</p></div></body></html>`
	doc := mustDoc(t, page)
	stripNoise(doc)

	c, ok := selectorStrategy(&pageCandidates{stripped: doc})
	require.True(t, ok)
	assert.Equal(t, "selector:.post-content", c.Strategy)
	assert.Contains(t, c.HTML, `class="post-content"`)
}

func TestSelectorStrategy_SkipsShortMatches(t *testing.T) {
	page := `<html><body><main>tiny</main><article>` + strings.Repeat("long enough text ", 20) + `</article></body></html>`
	doc := mustDoc(t, page)
	c, ok := selectorStrategy(&pageCandidates{stripped: doc})
	require.True(t, ok)
	assert.Equal(t, "selector:article", c.Strategy)
}

func TestBodyStrategy_FallsBackToBody(t *testing.T) {
	doc := mustDoc(t, `<html><body><div><p>only body text</p></div></body></html>`)
	c, ok := bodyStrategy(&pageCandidates{stripped: doc})
	require.True(t, ok)
	assert.Equal(t, "body-fallback", c.Strategy)
	assert.Equal(t, len("only body text"), c.TextLength)
}

func TestStripNoise(t *testing.T) {
	doc := mustDoc(t, `<html><body><script>var x;</script><!-- comment --><aside>aside</aside>`+
		`<div class="ads">buy</div><sidebar>side</sidebar><p>keep</p></body></html>`)
	stripNoise(doc)
	out, err := doc.Html()
	require.NoError(t, err)
	assert.Contains(t, out, "keep")
	for _, gone := range []string{"var x", "comment", "aside", "buy", "side"} {
		assert.NotContains(t, out, gone)
	}
}

func TestPageTitle(t *testing.T) {
	assert.Equal(t, "From Readability", pageTitle(mustDoc(t, `<title>From Title</title>`), " From  Readability "))
	assert.Equal(t, "From Title", pageTitle(mustDoc(t, `<title>From Title</title><h1>Heading</h1>`), ""))
	assert.Equal(t, "Heading", pageTitle(mustDoc(t, `<h1>Heading</h1>`), ""))
	assert.Equal(t, "Untitled", pageTitle(mustDoc(t, `<p>nothing</p>`), ""))
}

func TestExtractMainContent_PromotesLazyImages(t *testing.T) {
	page := longArticle("Lazy Images In Articles",
		`<p><img src="data:image/gif;base64,R0lGOD" data-src="/img/real.jpg" alt="real"></p>`)
	content, _, err := extractMainContent([]byte(page), testPageURL)
	require.NoError(t, err)
	assert.NotContains(t, content.HTML, "data-src")
	assert.Contains(t, content.HTML, "real.jpg")
}

func TestVisibleTextLength(t *testing.T) {
	assert.Equal(t, 0, visibleTextLength(""))
	assert.Equal(t, 11, visibleTextLength("<p>hello   \n world</p><script>ignored()</script>"))
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 4, countWords("<p>one two</p><p>three <b>four</b></p><style>p{}</style>"))
}
