package main

import (
	"bytes"
	"fmt"
	"image/png"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var pdfLicenseOnce sync.Once

// loadPDFLicense applies a metered unipdf key from UNIDOC_LICENSE_API_KEY
// when one is set. Without a key unipdf may refuse to extract.
func loadPDFLicense(log *zap.Logger) {
	pdfLicenseOnce.Do(func() {
		key := os.Getenv("UNIDOC_LICENSE_API_KEY")
		if key == "" {
			return
		}
		if err := license.SetMeteredKey(key); err != nil {
			log.Warn("unipdf license rejected", zap.Error(err))
		}
	})
}

// isPDF sniffs the magic bytes, trusting an explicit PDF content type too.
func isPDF(body []byte, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimLeft(body, " \t\r\n"), []byte("%PDF-"))
}

// isPDFURL recognizes links that serve PDFs without a .pdf suffix, such as
// arXiv's /pdf/ paths.
func isPDFURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	if strings.HasSuffix(p, ".pdf") {
		return true
	}
	host := strings.ToLower(u.Hostname())
	if strings.HasSuffix(host, "arxiv.org") && strings.Contains(p, "/pdf/") {
		return true
	}
	for _, repo := range []string{"researchgate.net", "semanticscholar.org", "biorxiv.org"} {
		if strings.HasSuffix(host, repo) && strings.Contains(p, "/pdf") {
			return true
		}
	}
	return false
}

type pdfDocument struct {
	Title     string
	Author    string
	Subject   string
	PageCount int
	Pages     []string
}

func readPDF(data []byte) (*pdfDocument, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("counting pages: %w", err)
	}

	doc := &pdfDocument{PageCount: numPages}
	if info, err := reader.GetPdfInfo(); err == nil {
		if info.Title != nil {
			doc.Title = strings.TrimSpace(info.Title.String())
		}
		if info.Author != nil {
			doc.Author = strings.TrimSpace(info.Author.String())
		}
		if info.Subject != nil {
			doc.Subject = strings.TrimSpace(info.Subject.String())
		}
	}

	for i := 1; i <= numPages; i++ {
		var text string
		if page, err := reader.GetPage(i); err == nil {
			if ex, err := extractor.New(page); err == nil {
				text, _ = ex.ExtractText()
			}
		}
		doc.Pages = append(doc.Pages, strings.TrimSpace(text))
	}
	return doc, nil
}

// extractPDFImages saves every embedded image as images/page_<n>_img_<m>.png
// and returns the filenames per 1-based page number.
func extractPDFImages(data []byte, destDir string) (map[int][]string, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, err
	}

	out := map[int][]string{}
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			continue
		}
		images, err := ex.ExtractPageImages(nil)
		if err != nil {
			continue
		}
		for j, mark := range images.Images {
			goImg, err := mark.Image.ToGoImage()
			if err != nil {
				continue
			}
			var buf bytes.Buffer
			if err := png.Encode(&buf, goImg); err != nil {
				continue
			}
			if err := os.MkdirAll(destDir, 0o755); err != nil {
				return out, err
			}
			name := fmt.Sprintf("page_%d_img_%d.png", i, j+1)
			if err := os.WriteFile(filepath.Join(destDir, name), buf.Bytes(), 0o644); err != nil {
				return out, err
			}
			out[i] = append(out[i], name)
		}
	}
	return out, nil
}

// titleFromFilename turns "deep_learning-notes.pdf" into "Deep Learning Notes".
// Only a .pdf suffix is dropped, so arXiv ids like 2401.01234 survive.
func titleFromFilename(name string) string {
	stem := path.Base(filepath.ToSlash(name))
	if strings.EqualFold(path.Ext(stem), ".pdf") {
		stem = stem[:len(stem)-len(".pdf")]
	}
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	stem = collapseSpace(stem)
	if stem == "" || stem == "/" || stem == "." {
		return ""
	}
	return cases.Title(language.English).String(stem)
}

// pdfMarkdownBody lays out the page texts in order, each followed by the
// images found on that page.
func pdfMarkdownBody(doc *pdfDocument, images map[int][]string) string {
	var b strings.Builder
	for i, text := range doc.Pages {
		if text != "" {
			b.WriteString(text)
			b.WriteString("\n\n")
		}
		for _, name := range images[i+1] {
			fmt.Fprintf(&b, "![](%s)\n\n", localImagePath(name))
		}
	}
	return b.String()
}
