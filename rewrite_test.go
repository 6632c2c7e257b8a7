package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteImageRefs(t *testing.T) {
	content := `<p><img src="/a.png" srcset="/a-2x.png 2x" alt="A"></p>` +
		`<p><a class="image-link" href="/full/b.jpg"><img src="/thumb/b.jpg" alt="Bee"></a></p>` +
		`<div style="background-image: url(/bg.gif)"></div>` +
		`<p><img src="/unmapped.png"></p>`
	mapping := map[string]string{
		"https://example.com/a.png":      "a.png",
		"https://example.com/full/b.jpg": "b.jpg",
		"https://example.com/bg.gif":     "bg.gif",
	}

	out, err := rewriteImageRefs(content, mapping, testPageURL)
	require.NoError(t, err)

	assert.Contains(t, out, `<img src="images/a.png" alt="A"/>`)
	assert.NotContains(t, out, "srcset")
	assert.Contains(t, out, `<img src="images/b.jpg" alt="Bee"/>`)
	assert.NotContains(t, out, "image-link")
	assert.NotContains(t, out, "/thumb/b.jpg")
	assert.Contains(t, out, `background-image:url(images/bg.gif)`)
	assert.Contains(t, out, `<img src="/unmapped.png"/>`)
	assert.Equal(t, 2, countLocalImages(out))
}

func TestRewriteImageRefs_Idempotent(t *testing.T) {
	content := `<p><img src="https://example.com/a.png"></p><p><img src="/b.png"></p>`
	mapping := map[string]string{
		"https://example.com/a.png": "a.png",
		"https://example.com/b.png": "b.png",
	}

	once, err := rewriteImageRefs(content, mapping, testPageURL)
	require.NoError(t, err)
	twice, err := rewriteImageRefs(once, mapping, testPageURL)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, 2, countLocalImages(twice))
}

func TestRewriteImageRefs_EmptyMappingIsIdentity(t *testing.T) {
	content := `<p><img src="/a.png"></p>`
	out, err := rewriteImageRefs(content, nil, testPageURL)
	require.NoError(t, err)
	assert.Equal(t, content, out)
}

func TestRewriteImageRefs_SharedFileForDuplicates(t *testing.T) {
	content := `<img src="/a.png"><img src="https://example.com/a.png#again">`
	out, err := rewriteImageRefs(content, map[string]string{"https://example.com/a.png": "a.png"}, testPageURL)
	require.NoError(t, err)
	assert.Equal(t, `<img src="images/a.png"/><img src="images/a.png"/>`, out)
}
