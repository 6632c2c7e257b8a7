// Cover art for EPUB output: a banded pattern seeded from the source URL
// with the article title and site name set in the middle.
package main

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	coverWidth  = 900
	coverHeight = 1350

	coverBandTop    = 480
	coverBandBottom = 870
	coverPadX       = 70
)

// generateCover renders a PNG cover. seed picks the pattern, so the same
// source always gets the same art.
func generateCover(title, site, seed string) ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, coverWidth, coverHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{0xFF}), image.Point{}, draw.Src)

	drawStripes(img, sha256.Sum256([]byte(seed)))

	titleFace, err := loadFace(gobold.TTF, 52)
	if err != nil {
		return nil, fmt.Errorf("loading title font: %w", err)
	}
	siteFace, err := loadFace(goregular.TTF, 28)
	if err != nil {
		return nil, fmt.Errorf("loading site font: %w", err)
	}
	drawTitleBand(img, title, site, titleFace, siteFace)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding cover: %w", err)
	}
	return buf.Bytes(), nil
}

// drawStripes paints vertical bars above and below the title band. Each
// hash byte sets one bar's width and shade.
func drawStripes(img *image.Gray, hash [32]byte) {
	x := 0
	for i := 0; x < coverWidth; i++ {
		b := hash[i%len(hash)] ^ byte(i*29)
		w := 12 + int(b)%48
		shade := uint8(0x40 + int(hash[(i+11)%len(hash)])*0x90/255)
		bar := image.NewUniform(color.Gray{shade})
		draw.Draw(img, image.Rect(x, 0, x+w, coverBandTop), bar, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(x, coverBandBottom, x+w, coverHeight), bar, image.Point{}, draw.Src)
		x += w + 4
	}
}

func drawTitleBand(img *image.Gray, title, site string, titleFace, siteFace font.Face) {
	maxWidth := coverWidth - coverPadX*2
	lines := wrapText(title, titleFace, maxWidth)
	if len(lines) > 4 {
		lines = append(lines[:3], lines[3]+"…")
	}
	lineHeight := titleFace.Metrics().Height.Ceil() + 6
	siteHeight := siteFace.Metrics().Height.Ceil() + 14
	total := len(lines)*lineHeight + siteHeight

	y := coverBandTop + (coverBandBottom-coverBandTop-total)/2 + titleFace.Metrics().Ascent.Ceil()
	for _, line := range lines {
		drawCentered(img, line, titleFace, y)
		y += lineHeight
	}
	if site != "" {
		drawCentered(img, site, siteFace, y+14)
	}
}

func drawCentered(img *image.Gray, s string, face font.Face, y int) {
	w := font.MeasureString(face, s).Ceil()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Gray{0x00}),
		Face: face,
		Dot:  fixed.P((coverWidth-w)/2, y),
	}
	d.DrawString(s)
}

// wrapText breaks text into lines no wider than maxWidth pixels. A single
// word longer than the line still gets a line of its own.
func wrapText(text string, face font.Face, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}
	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		trial := current + " " + word
		if font.MeasureString(face, trial).Ceil() <= maxWidth {
			current = trial
			continue
		}
		lines = append(lines, current)
		current = word
	}
	return append(lines, current)
}

func loadFace(ttf []byte, sizePt float64) (font.Face, error) {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePt,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
