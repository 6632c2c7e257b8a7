package main

import (
	"archive/zip"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readZip returns every entry of an EPUB keyed by name.
func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	out := map[string]string{}
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = string(data)
	}
	return out
}

func findEntry(entries map[string]string, suffix string) (string, bool) {
	for name, data := range entries {
		if strings.HasSuffix(name, suffix) {
			return data, true
		}
	}
	return "", false
}

func TestBuildEpub(t *testing.T) {
	dir := t.TempDir()
	imagesDir := filepath.Join(dir, imagesDirName)
	require.NoError(t, os.MkdirAll(imagesDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(imagesDir, "fig.png"), pngBytes(t, 4, 4, color.White), 0o644))

	meta := Metadata{
		Title:        "Epub & Friends",
		Author:       "Ann Author",
		Description:  "An article in a book",
		ArticleDate:  "2024-02-02",
		SourceURL:    "https://example.com/epub",
		SourceDomain: "example.com",
		DateScraped:  time.Now(),
	}
	content := `<p>Intro<br>text</p><p><img src="images/fig.png" alt="Figure"></p>` +
		`<p><img src="images/missing.png" alt="Missing"></p><script>x()</script>`
	out := filepath.Join(dir, epubFileName)

	require.NoError(t, buildEpub(content, meta, imagesDir, out))
	entries := readZip(t, out)

	assert.Equal(t, "application/epub+zip", entries["mimetype"])
	chapter, ok := findEntry(entries, "article.xhtml")
	require.True(t, ok, "article section missing")
	assert.Contains(t, chapter, "<h1>Epub &amp; Friends</h1>")
	assert.Contains(t, chapter, `<p class="byline">2024-02-02 · Ann Author`)
	assert.Contains(t, chapter, "Intro<br/>text")
	assert.Contains(t, chapter, "../images/fig.png")
	assert.Contains(t, chapter, `src="images/missing.png"`, "images that are not on disk keep their path")
	assert.NotContains(t, chapter, "x()")

	_, ok = findEntry(entries, "fig.png")
	assert.True(t, ok, "local image embedded")
	_, ok = findEntry(entries, "cover.png")
	assert.True(t, ok, "generated cover embedded")

	opf, ok := findEntry(entries, ".opf")
	require.True(t, ok)
	assert.Contains(t, opf, "Ann Author")
	assert.Contains(t, opf, "An article in a book")
}

func TestEpubByline(t *testing.T) {
	assert.Equal(t, "", epubByline(Metadata{}))
	assert.Equal(t, `<p class="byline">Jo &lt;3</p>`, epubByline(Metadata{Author: "Jo <3"}))
	assert.Equal(t,
		`<p class="byline"><a href="https://example.com/a">example.com/a</a></p>`,
		epubByline(Metadata{SourceURL: "https://example.com/a"}))
	assert.Equal(t, "", epubByline(Metadata{SourceURL: "file:///tmp/x.html"}))
}
