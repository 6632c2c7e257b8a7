package main

import (
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	epub "github.com/go-shiori/go-epub"
)

// localImgRe matches <img src="images/..."> as written by rewriteImageRefs
// and rendered by renderXHTML.
var localImgRe = regexp.MustCompile(`(<img\b[^>]*?\bsrc=")images/([^"]+)(")`)

const epubCSS = `body { margin: 1em; line-height: 1.5; }
img { max-width: 100%; height: auto; }
pre, code { font-size: 0.85em; }
blockquote { margin-left: 1em; padding-left: 0.5em; border-left: 2px solid #999; }
.byline { font-size: 0.85em; color: #666; margin-bottom: 1.5em; }
.byline a { color: #666; }`

// epubByline renders the line under the chapter title: date, author and a
// link back to the source.
func epubByline(meta Metadata) string {
	var parts []string
	if meta.ArticleDate != "" {
		parts = append(parts, html.EscapeString(meta.ArticleDate))
	}
	if meta.Author != "" {
		parts = append(parts, html.EscapeString(meta.Author))
	}
	line := strings.Join(parts, " · ")
	if meta.SourceURL != "" && !strings.HasPrefix(meta.SourceURL, "file:") {
		display := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(meta.SourceURL, "https://"), "http://"), "/")
		link := fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(meta.SourceURL), html.EscapeString(display))
		if line != "" {
			line += "<br/>" + link
		} else {
			line = link
		}
	}
	if line == "" {
		return ""
	}
	return `<p class="byline">` + line + `</p>`
}

// buildEpub writes a single-chapter EPUB 3 for the article. Images already
// localized into imagesDir are embedded; other images keep their URLs.
func buildEpub(content string, meta Metadata, imagesDir, outPath string) error {
	e, err := epub.NewEpub(meta.Title)
	if err != nil {
		return fmt.Errorf("creating epub: %w", err)
	}
	e.SetLang("en")
	if meta.Author != "" {
		e.SetAuthor(meta.Author)
	} else if meta.SourceDomain != "" {
		e.SetAuthor(meta.SourceDomain)
	}
	if meta.Description != "" {
		e.SetDescription(meta.Description)
	}

	cssPath, err := e.AddCSS("data:text/css;base64,"+base64.StdEncoding.EncodeToString([]byte(epubCSS)), "styles.css")
	if err != nil {
		cssPath = ""
	}

	if png, err := generateCover(meta.Title, meta.SourceDomain, meta.SourceURL); err == nil {
		coverPath, err := e.AddImage("data:image/png;base64,"+base64.StdEncoding.EncodeToString(png), "cover.png")
		if err == nil {
			if err := e.SetCover(coverPath, ""); err != nil {
				return fmt.Errorf("setting cover: %w", err)
			}
		}
	}

	body := sanitizeForXHTML(content)
	body = localImgRe.ReplaceAllStringFunc(body, func(m string) string {
		parts := localImgRe.FindStringSubmatch(m)
		name := html.UnescapeString(parts[2])
		src := filepath.Join(imagesDir, filepath.FromSlash(name))
		if _, err := os.Stat(src); err != nil {
			return m
		}
		internal, err := e.AddImage(src, filepath.Base(src))
		if err != nil {
			return m
		}
		return parts[1] + internal + parts[3]
	})

	header := "<h1>" + html.EscapeString(meta.Title) + "</h1>\n"
	if byline := epubByline(meta); byline != "" {
		header += byline + "\n"
	}
	if _, err := e.AddSection(header+body, meta.Title, "article.xhtml", cssPath); err != nil {
		return fmt.Errorf("adding section: %w", err)
	}

	if err := e.Write(outPath); err != nil {
		return fmt.Errorf("writing epub: %w", err)
	}
	return nil
}
