package main

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const imagesDirName = "images"

func localImagePath(name string) string {
	return imagesDirName + "/" + name
}

// rewriteImageRefs points the images of content at their local copies.
// mapping goes from resolved URL to filename; references missing from it
// keep their original URL.
func rewriteImageRefs(content string, mapping map[string]string, base *url.URL) (string, error) {
	if len(mapping) == 0 {
		return content, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parsing content: %w", err)
	}

	lookup := func(raw string) (string, bool) {
		resolved, ok := normalizeImageURL(raw, base)
		if !ok {
			return "", false
		}
		name, ok := mapping[resolved]
		return name, ok
	}

	// Anchors first: the replacement drops any thumbnail <img> inside.
	doc.Find("a.image-link").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		name, ok := lookup(href)
		if !ok {
			return
		}
		alt, _ := a.Find("img").First().Attr("alt")
		a.ReplaceWithHtml(fmt.Sprintf(`<img src="%s" alt="%s">`,
			html.EscapeString(localImagePath(name)), html.EscapeString(alt)))
	})

	doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if name, ok := lookup(src); ok {
			img.SetAttr("src", localImagePath(name))
			img.RemoveAttr("srcset")
		}
	})

	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		rewritten := backgroundImageRe.ReplaceAllStringFunc(style, func(m string) string {
			sub := backgroundImageRe.FindStringSubmatch(m)
			if name, ok := lookup(sub[1]); ok {
				return "background-image:url(" + localImagePath(name) + ")"
			}
			return m
		})
		if rewritten != style {
			s.SetAttr("style", rewritten)
		}
	})

	return doc.Find("body").Html()
}

// countLocalImages counts <img> tags that point into images/.
func countLocalImages(content string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return 0
	}
	n := 0
	doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		if src, _ := img.Attr("src"); strings.HasPrefix(src, imagesDirName+"/") {
			n++
		}
	})
	return n
}
