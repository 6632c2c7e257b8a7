package main

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolvedURLs(refs []ImageReference) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.ResolvedURL
	}
	return out
}

func TestResolveImages_UnwrapsNextImageProxy(t *testing.T) {
	content := `<p><img src="/_next/image?url=https%3A%2F%2Fcdn.example.com%2Fphoto.png&amp;w=640"></p>`
	refs := resolveImages(content, testPageURL)
	require.Len(t, refs, 1)
	assert.Equal(t, "https://cdn.example.com/photo.png", refs[0].ResolvedURL)
}

func TestResolveImages_DocumentOrderAndDedup(t *testing.T) {
	content := `
<img src="/a.png">
<div style="background-image: url('/b.jpg')"></div>
<img src="https://example.com/a.png#fragment">
<a class="image-link" href="/c.webp"><img src="/c-thumb.webp"></a>
<img src="a.png">`
	refs := resolveImages(content, testPageURL)

	assert.Equal(t, []string{
		"https://example.com/a.png",
		"https://example.com/b.jpg",
		"https://example.com/c.webp",
		"https://example.com/c-thumb.webp",
		"https://example.com/blog/a.png",
	}, resolvedURLs(refs))
	assert.True(t, refs[2].FromLink)
	assert.False(t, refs[0].FromLink)
}

func TestResolveImages_SkipsDataURIsAndSrcset(t *testing.T) {
	content := `<img src="data:image/png;base64,iVBORw0KGgo=">` +
		`<img src="/one.png" srcset="/one-2x.png 2x, /one-3x.png 3x">` +
		`<img src="">`
	refs := resolveImages(content, testPageURL)
	assert.Equal(t, []string{"https://example.com/one.png"}, resolvedURLs(refs))
}

func TestResolveImages_IgnoresArticleLinks(t *testing.T) {
	content := `<a class="image-link" href="/posts/next-article">next</a>` +
		`<a href="/photo.png">not an image-link</a>` +
		`<a class="image-link" href="https://substackcdn.com/abc123">cdn</a>`
	refs := resolveImages(content, testPageURL)
	assert.Equal(t, []string{"https://substackcdn.com/abc123"}, resolvedURLs(refs))
}

func TestNormalizeImageURL(t *testing.T) {
	base, _ := url.Parse("https://example.com/dir/page.html")
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"img.png", "https://example.com/dir/img.png", true},
		{"/img.png", "https://example.com/img.png", true},
		{"//cdn.example.net/x.jpg", "https://cdn.example.net/x.jpg", true},
		{"  https://a.test/x.gif#top ", "https://a.test/x.gif", true},
		{"https://a.test/q.png?a=1&amp;b=2", "https://a.test/q.png?a=1&b=2", true},
		{"/_next/image?url=%2Fstatic%2Fhero.jpg&w=1080&q=75", "https://example.com/static/hero.jpg", true},
		{"data:image/png;base64,AAAA", "", false},
		{"DATA:image/gif;base64,AAAA", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := normalizeImageURL(tt.raw, base)
		assert.Equal(t, tt.ok, ok, "normalizeImageURL(%q)", tt.raw)
		assert.Equal(t, tt.want, got, "normalizeImageURL(%q)", tt.raw)
	}
}

func TestLooksLikeImageLink(t *testing.T) {
	assert.True(t, looksLikeImageLink("https://example.com/pic.JPEG"))
	assert.True(t, looksLikeImageLink("https://example.com/images/123"))
	assert.True(t, looksLikeImageLink("https://cdn.sanity.io/abc"))
	assert.True(t, looksLikeImageLink("https://x.substackcdn.com/abc"))
	assert.False(t, looksLikeImageLink("https://example.com/article/42"))
}

func TestPromoteLazySrc(t *testing.T) {
	in := `<img class="lazy" src="data:image/gif;base64,R0lGOD" data-src="/real.jpg" data-srcset="/real-2x.jpg 2x">` +
		`<img src="/eager.png">`
	out := string(promoteLazySrc([]byte(in)))
	assert.Equal(t, `<img class="lazy" src="/real.jpg" srcset="/real-2x.jpg 2x">`+`<img src="/eager.png">`, out)
}
