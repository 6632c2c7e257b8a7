package main

import (
	"html"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	backgroundImageRe = regexp.MustCompile(`background-image:\s*url\(\s*["']?([^"')]+?)["']?\s*\)`)

	// Lazy-loading markup: data-src / data-srcset carry the real image.
	lazySrcRe    = regexp.MustCompile(`(<img\b[^>]*?)\bdata-src=`)
	lazySrcsetRe = regexp.MustCompile(`(<img\b[^>]*?)\bdata-srcset=`)
	lazyImgRe    = regexp.MustCompile(`<img\b[^>]*\bdata-src\s*=[^>]*>`)
	// The placeholder src that sits next to data-src, dropped so the
	// promoted attribute does not end up duplicated.
	placeholderSrcRe = regexp.MustCompile(`\bsrc\s*=\s*"data:image/[^"]*"\s*`)
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".avif", ".bmp"}

// imageCDNHosts are hosts whose links are images even without an extension.
var imageCDNHosts = []string{"substackcdn.com", "substack-post-media.s3.amazonaws.com", "cdn.sanity.io"}

// promoteLazySrc moves data-src and data-srcset onto src and srcset for
// lazy-loaded images, dropping the placeholder src they replace.
func promoteLazySrc(page []byte) []byte {
	page = lazyImgRe.ReplaceAllFunc(page, func(tag []byte) []byte {
		return placeholderSrcRe.ReplaceAll(tag, nil)
	})
	page = lazySrcRe.ReplaceAll(page, []byte("${1}src="))
	page = lazySrcsetRe.ReplaceAll(page, []byte("${1}srcset="))
	return page
}

// unwrapImageProxy recovers the original image behind a Next.js
// /_next/image?url=... optimizer link.
func unwrapImageProxy(raw string) string {
	if !strings.Contains(raw, "/_next/image") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.HasSuffix(u.Path, "/_next/image") {
		return raw
	}
	if inner := u.Query().Get("url"); inner != "" {
		return inner
	}
	return raw
}

// normalizeImageURL turns an image reference as written in the markup into
// the absolute URL used for de-duplication and download. It reports false
// for empty references and inline data: URIs.
func normalizeImageURL(raw string, base *url.URL) (string, bool) {
	raw = strings.TrimSpace(html.UnescapeString(raw))
	if raw == "" || strings.HasPrefix(strings.ToLower(raw), "data:") {
		return "", false
	}
	raw = unwrapImageProxy(raw)

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	u.Fragment = ""
	u.RawFragment = ""
	if u.Scheme == "" {
		return "", false
	}
	return u.String(), true
}

// looksLikeImageLink reports whether an image-link anchor's href points at
// an image rather than an article.
func looksLikeImageLink(href string) bool {
	lower := strings.ToLower(href)
	if strings.Contains(lower, "image") {
		return true
	}
	u, err := url.Parse(lower)
	if err != nil {
		return false
	}
	for _, host := range imageCDNHosts {
		if u.Hostname() == host || strings.HasSuffix(u.Hostname(), "."+host) {
			return true
		}
	}
	ext := path.Ext(u.Path)
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// resolveImages lists the images referenced by an extracted fragment in
// document order, one entry per distinct resolved URL. srcset is ignored:
// src is the only authoritative image of an <img>.
func resolveImages(content string, base *url.URL) []ImageReference {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}

	var refs []ImageReference
	seen := map[string]bool{}
	add := func(raw string, fromLink bool) {
		resolved, ok := normalizeImageURL(raw, base)
		if !ok || seen[resolved] {
			return
		}
		seen[resolved] = true
		refs = append(refs, ImageReference{OriginalURL: raw, ResolvedURL: resolved, FromLink: fromLink})
	}

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "img":
			if src, ok := s.Attr("src"); ok {
				add(src, false)
			}
		case "a":
			if href, ok := s.Attr("href"); ok && s.HasClass("image-link") && looksLikeImageLink(href) {
				add(href, true)
			}
		}
		if style, ok := s.Attr("style"); ok {
			for _, m := range backgroundImageRe.FindAllStringSubmatch(style, -1) {
				add(m[1], false)
			}
		}
	})
	return refs
}
