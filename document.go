package main

import (
	"fmt"
	"html"
	"strings"
)

const timestampLayout = "2006-01-02 15:04:05"

// archiveCSS is inlined into every archived page so it renders offline.
const archiveCSS = `
		body {
			font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
			line-height: 1.6;
			color: #333;
			background: #fff;
			max-width: 800px;
			margin: 0 auto;
			padding: 2rem 1rem;
		}
		img { max-width: 100%; height: auto; display: block; margin: 1.5rem auto; }
		h1, h2, h3, h4, h5, h6 { color: #1a1a1a; margin-top: 2em; margin-bottom: 0.5em; }
		a { color: #0b62a4; }
		pre { white-space: pre-wrap; word-wrap: break-word; background: #f6f8fa; padding: 1rem; border-radius: 4px; }
		code { font-family: Consolas, Monaco, monospace; }
		blockquote { border-left: 4px solid #ddd; padding-left: 1rem; margin-left: 0; color: #666; }
		.metadata { color: #666; font-size: 0.9em; border-bottom: 1px solid #eee; padding-bottom: 1rem; margin-bottom: 2rem; }
		.metadata p { margin: 0.25em 0; }
		footer { margin-top: 3em; padding-top: 1.5em; border-top: 1px solid #eee; text-align: center; color: #888; font-size: 0.85em; }
		@media (max-width: 600px) { body { padding: 1rem 0.75rem; } }
`

// withDefaults fills the preview-card fields a page did not declare from
// the plain metadata.
func withDefaults(meta Metadata) Metadata {
	if meta.OGTitle == "" {
		meta.OGTitle = meta.Title
	}
	if meta.OGDescription == "" {
		meta.OGDescription = meta.Description
	}
	if meta.OGType == "" {
		meta.OGType = "website"
	}
	if meta.TwitterCard == "" {
		meta.TwitterCard = "summary"
	}
	if meta.TwitterTitle == "" {
		meta.TwitterTitle = meta.Title
	}
	if meta.TwitterDescription == "" {
		meta.TwitterDescription = meta.Description
	}
	if meta.TwitterImage == "" {
		meta.TwitterImage = meta.OGImage
	}
	return meta
}

func metaTag(b *strings.Builder, attr, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "\t<meta %s=\"%s\" content=\"%s\">\n", attr, key, html.EscapeString(value))
}

// renderArchiveHTML wraps an article fragment in a standalone page whose
// head carries every piece of metadata we know about the source.
func renderArchiveHTML(content string, meta Metadata) string {
	meta = withDefaults(meta)
	scraped := meta.DateScraped.Format(timestampLayout)

	var head strings.Builder
	metaTag(&head, "name", "description", meta.Description)
	metaTag(&head, "name", "keywords", meta.Keywords)
	metaTag(&head, "name", "author", meta.Author)
	metaTag(&head, "name", "source-url", meta.SourceURL)
	metaTag(&head, "name", "source-domain", meta.SourceDomain)
	metaTag(&head, "name", "date-scraped", scraped)
	metaTag(&head, "name", "article-date", meta.ArticleDate)
	metaTag(&head, "property", "og:title", meta.OGTitle)
	metaTag(&head, "property", "og:description", meta.OGDescription)
	metaTag(&head, "property", "og:image", meta.OGImage)
	metaTag(&head, "property", "og:type", meta.OGType)
	metaTag(&head, "property", "og:url", meta.SourceURL)
	metaTag(&head, "name", "twitter:card", meta.TwitterCard)
	metaTag(&head, "name", "twitter:title", meta.TwitterTitle)
	metaTag(&head, "name", "twitter:description", meta.TwitterDescription)
	metaTag(&head, "name", "twitter:image", meta.TwitterImage)

	var info strings.Builder
	if meta.ArticleDate != "" {
		fmt.Fprintf(&info, "\t\t<p><strong>Published:</strong> %s</p>\n", html.EscapeString(meta.ArticleDate))
	}
	if meta.Author != "" {
		fmt.Fprintf(&info, "\t\t<p><strong>Author:</strong> %s</p>\n", html.EscapeString(meta.Author))
	}
	if meta.SourceURL != "" {
		label := meta.SourceDomain
		if label == "" {
			label = meta.SourceURL
		}
		fmt.Fprintf(&info, "\t\t<p><strong>Source:</strong> <a href=\"%s\">%s</a></p>\n",
			html.EscapeString(meta.SourceURL), html.EscapeString(label))
	}
	fmt.Fprintf(&info, "\t\t<p><strong>Archived:</strong> %s</p>\n", scraped)

	footer := fmt.Sprintf("\t\t<p>Archived on %s</p>\n", scraped)
	if meta.SourceURL != "" {
		footer = fmt.Sprintf("\t\t<p>This page was archived from <a href=\"%s\">%s</a></p>\n",
			html.EscapeString(meta.SourceURL), html.EscapeString(meta.SourceURL)) + footer
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<title>%s</title>
%s	<style>%s	</style>
</head>
<body>
	<div class="metadata">
		<h1>%s</h1>
%s	</div>
	<main>
%s
	</main>
	<footer>
%s	</footer>
</body>
</html>
`, html.EscapeString(meta.Title), head.String(), archiveCSS,
		html.EscapeString(meta.Title), info.String(), content, footer)
}
