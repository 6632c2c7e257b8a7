package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap/zaptest"
)

func mustDoc(t *testing.T, page string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

// testConfig writes into a temp dir and may reach httptest servers.
func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := defaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.AllowPrivateNetworks = true
	cfg.Timeout = 5 * time.Second
	cfg.ImageTimeout = 5 * time.Second
	return cfg
}

func testFetcher(t *testing.T) *fetcher {
	t.Helper()
	return newFetcher(testConfig(t), zaptest.NewLogger(t))
}

// pngBytes encodes a solid w×h image.
func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
