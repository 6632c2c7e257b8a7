package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sampleMetadata() Metadata {
	return Metadata{
		Title:        `Tom & Jerry's "Great" Escape`,
		Description:  "A chase <across> the house",
		Keywords:     "cats, mice",
		Author:       "Hanna Barbera",
		ArticleDate:  "1940-02-10",
		SourceURL:    "https://cartoons.example.com/tom-and-jerry",
		SourceDomain: "cartoons.example.com",
		SourceFile:   "https://cartoons.example.com/tom-and-jerry",
		DateScraped:  time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC),
		OGImage:      "https://cartoons.example.com/card.png",
	}
}

func TestRenderArchiveHTML(t *testing.T) {
	out := renderArchiveHTML("<p>Body text</p>", sampleMetadata())

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<title>Tom &amp; Jerry&#39;s &#34;Great&#34; Escape</title>")
	assert.Contains(t, out, `<meta name="description" content="A chase &lt;across&gt; the house">`)
	assert.Contains(t, out, `<meta name="keywords" content="cats, mice">`)
	assert.Contains(t, out, `<meta name="author" content="Hanna Barbera">`)
	assert.Contains(t, out, `<meta name="source-url" content="https://cartoons.example.com/tom-and-jerry">`)
	assert.Contains(t, out, `<meta name="source-domain" content="cartoons.example.com">`)
	assert.Contains(t, out, `<meta name="date-scraped" content="2025-06-07 08:09:10">`)
	assert.Contains(t, out, `<meta name="article-date" content="1940-02-10">`)
	assert.Contains(t, out, "<main>\n<p>Body text</p>\n\t</main>")
	assert.Contains(t, out, "<strong>Published:</strong> 1940-02-10")
	assert.Contains(t, out, `<a href="https://cartoons.example.com/tom-and-jerry">cartoons.example.com</a>`)
	assert.Contains(t, out, "Archived on 2025-06-07 08:09:10")
}

func TestRenderArchiveHTML_PreviewCardDefaults(t *testing.T) {
	out := renderArchiveHTML("<p>x</p>", sampleMetadata())

	assert.Contains(t, out, `<meta property="og:title" content="Tom &amp; Jerry&#39;s &#34;Great&#34; Escape">`)
	assert.Contains(t, out, `<meta property="og:description" content="A chase &lt;across&gt; the house">`)
	assert.Contains(t, out, `<meta property="og:type" content="website">`)
	assert.Contains(t, out, `<meta name="twitter:card" content="summary">`)
	assert.Contains(t, out, `<meta name="twitter:image" content="https://cartoons.example.com/card.png">`)
}

func TestRenderArchiveHTML_DeclaredPreviewFieldsWin(t *testing.T) {
	meta := sampleMetadata()
	meta.OGType = "article"
	meta.TwitterCard = "summary_large_image"
	out := renderArchiveHTML("<p>x</p>", meta)

	assert.Contains(t, out, `<meta property="og:type" content="article">`)
	assert.Contains(t, out, `<meta name="twitter:card" content="summary_large_image">`)
	assert.NotContains(t, out, `content="website"`)
}

func TestRenderArchiveHTML_OmitsEmptyFields(t *testing.T) {
	out := renderArchiveHTML("<p>x</p>", Metadata{Title: "Bare", DateScraped: time.Now()})

	assert.NotContains(t, out, `name="author"`)
	assert.NotContains(t, out, "Published:")
	assert.NotContains(t, out, "Source:")
	assert.NotContains(t, out, "archived from")
}
