package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

func humanSize(n int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	f := float64(n)
	for _, u := range units {
		if math.Abs(f) < 1024 {
			return fmt.Sprintf("%.1f%s", f, u)
		}
		f /= 1024
	}
	return fmt.Sprintf("%.1f%s", f, units[len(units)-1])
}

type optimizeOpts struct {
	maxWidth int // 0 keeps originals
	quality  int
}

// imageFetcher localizes the images of one document. It is not safe for
// concurrent use; each run builds its own.
type imageFetcher struct {
	http    *fetcher
	timeout time.Duration
	referer string
	opts    optimizeOpts
	log     *zap.Logger

	// localSource permits file:// images. Web pages never get to read the
	// local disk.
	localSource bool

	names map[string]string // local filename -> resolved URL that owns it
	files map[string]string // resolved URL -> local filename
}

func newImageFetcher(f *fetcher, referer string, localSource bool, timeout time.Duration, opts optimizeOpts, log *zap.Logger) *imageFetcher {
	return &imageFetcher{
		http:        f,
		timeout:     timeout,
		referer:     referer,
		opts:        opts,
		log:         log,
		localSource: localSource,
		names:       map[string]string{},
		files:       map[string]string{},
	}
}

// fetchAll downloads refs into destDir one at a time, keeping at most max
// of them (0 means none). Failures are logged and skipped. The returned
// mapping goes from resolved URL to local filename.
func (f *imageFetcher) fetchAll(ctx context.Context, refs []ImageReference, destDir string, max int) map[string]string {
	if len(refs) > max {
		refs = refs[:max]
	}
	mapping := make(map[string]string, len(refs))
	for i := range refs {
		if ctx.Err() != nil {
			break
		}
		name, err := f.fetch(ctx, refs[i], destDir)
		if err != nil {
			f.log.Warn("image skipped", zap.String("url", refs[i].ResolvedURL), zap.Error(err))
			continue
		}
		refs[i].LocalFilename = name
		mapping[refs[i].ResolvedURL] = name
	}
	return mapping
}

// fetch stores one image under destDir and returns its filename. A URL that
// was already stored in this run is not downloaded again.
func (f *imageFetcher) fetch(ctx context.Context, ref ImageReference, destDir string) (string, error) {
	if name, ok := f.files[ref.ResolvedURL]; ok {
		return name, nil
	}

	data, contentType, err := f.read(ctx, ref.ResolvedURL)
	if err != nil {
		return "", &ImageFetchError{URL: ref.ResolvedURL, Err: err}
	}

	name := imageFilename(ref.ResolvedURL, contentType)
	if f.opts.maxWidth > 0 {
		if out, ok := optimizeImage(data, contentType, f.opts); ok {
			data = out
			name = strings.TrimSuffix(name, path.Ext(name)) + ".jpg"
		}
	}
	name = f.claim(name, ref.ResolvedURL)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", &ImageFetchError{URL: ref.ResolvedURL, Err: err}
	}
	if err := os.WriteFile(filepath.Join(destDir, name), data, 0o644); err != nil {
		return "", &ImageFetchError{URL: ref.ResolvedURL, Err: err}
	}
	f.files[ref.ResolvedURL] = name
	f.log.Debug("image saved", zap.String("file", name), zap.String("size", humanSize(int64(len(data)))))
	return name, nil
}

// read loads image bytes from the web or, for file:// URLs of a local
// source, from disk.
func (f *imageFetcher) read(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", err
	}
	switch u.Scheme {
	case "http", "https":
		header := http.Header{
			"Accept":          {acceptImage},
			"Accept-Language": {"en-US,en;q=0.9"},
			"Sec-Fetch-Dest":  {"image"},
		}
		if f.referer != "" && !strings.HasPrefix(f.referer, "file:") {
			header.Set("Referer", f.referer)
		}
		resp, err := f.http.get(ctx, rawURL, f.timeout, header)
		if err != nil {
			return nil, "", err
		}
		if len(resp.body) == 0 {
			return nil, "", errors.New("empty response")
		}
		return resp.body, resp.contentType, nil
	case "file":
		if !f.localSource {
			return nil, "", errors.New("file URL referenced by a remote page")
		}
		data, err := os.ReadFile(filepath.FromSlash(u.Path))
		if err != nil {
			return nil, "", err
		}
		return data, mime.TypeByExtension(path.Ext(u.Path)), nil
	}
	return nil, "", fmt.Errorf("unsupported image URL scheme %q", u.Scheme)
}

// claim reserves name for resolvedURL, adding -2, -3, ... before the
// extension when a different image already holds it.
func (f *imageFetcher) claim(name, resolvedURL string) string {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 2; ; i++ {
		owner, taken := f.names[candidate]
		if !taken || owner == resolvedURL {
			f.names[candidate] = resolvedURL
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
}

// imageFilename derives a local name from the URL path, or synthesizes
// img_<hash><ext> when the path has no usable basename.
func imageFilename(rawURL, contentType string) string {
	var base string
	if u, err := url.Parse(rawURL); err == nil {
		base = path.Base(u.Path)
	}
	if i := strings.IndexAny(base, "?&"); i >= 0 {
		base = base[:i]
	}
	base = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." || base == "/" || !strings.Contains(strings.TrimPrefix(base, "."), ".") {
		sum := sha256.Sum256([]byte(rawURL))
		return "img_" + hex.EncodeToString(sum[:4]) + extensionFor(contentType)
	}
	return base
}

func extensionFor(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "png"):
		return ".png"
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return ".jpg"
	case strings.Contains(ct, "gif"):
		return ".gif"
	case strings.Contains(ct, "svg"):
		return ".svg"
	case strings.Contains(ct, "webp"):
		return ".webp"
	}
	return ".png"
}

// resize downscales an image using BiLinear resampling.
func resize(src image.Image, dstW, dstH int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

// flattenAlpha composites src onto a white background.
func flattenAlpha(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, b, src, b.Min, draw.Over)
	return dst
}

func isAnimatedGIF(data []byte) bool {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return false
	}
	return len(g.Image) > 1
}

// optimizeImage re-encodes a raster image wider than opts.maxWidth as a
// downscaled JPEG. It reports false when the original should be kept:
// vector and animated images, undecodable data, or images already small
// enough.
func optimizeImage(data []byte, contentType string, opts optimizeOpts) ([]byte, bool) {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "svg") || strings.Contains(ct, "avif") {
		return nil, false
	}
	if strings.Contains(ct, "gif") && isAnimatedGIF(data) {
		return nil, false
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= opts.maxWidth {
		return nil, false
	}

	newH := int(math.Round(float64(h) * float64(opts.maxWidth) / float64(w)))
	if newH < 1 {
		newH = 1
	}
	scaled := resize(flattenAlpha(img), opts.maxWidth, newH)

	quality := opts.quality
	if quality < 1 || quality > 95 {
		quality = 80
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: quality}); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}
