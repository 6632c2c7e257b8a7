package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	htmlFileName     = "index.html"
	markdownFileName = "article.md"
	epubFileName     = "article.epub"
)

// Archiver runs the archive pipeline for one source at a time. A single
// Archiver may serve concurrent calls; they share only the filesystem, the
// index and the metrics registry.
type Archiver struct {
	cfg     Config
	log     *zap.Logger
	fetch   *fetcher
	index   archiveIndex
	metrics *runMetrics
	now     func() time.Time
}

func newArchiver(cfg Config, log *zap.Logger) *Archiver {
	return &Archiver{
		cfg:     cfg,
		log:     log,
		fetch:   newFetcher(cfg, log),
		index:   noopIndex{},
		metrics: newRunMetrics(),
		now:     time.Now,
	}
}

// Run archives source and never fails: errors, panics included, come back
// as Result.Error.
func (a *Archiver) Run(ctx context.Context, source string) (res Result) {
	res.Source = source
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("archive panicked", zap.String("source", source), zap.Any("panic", r))
			err := fmt.Errorf("internal error: %v", r)
			a.metrics.observeFailure(err)
			res = Result{Source: source, Error: err.Error()}
		}
	}()

	artifact, err := a.Archive(ctx, source)
	if err != nil {
		a.metrics.observeFailure(err)
		a.log.Error("archive failed", zap.String("source", source), zap.String("kind", errorKind(err)), zap.Error(err))
		res.Error = err.Error()
		return res
	}
	a.metrics.observeSuccess(artifact, time.Since(start).Seconds())
	res.Artifact = artifact
	return res
}

// Archive fetches source (an http(s) URL or a local HTML/PDF path),
// extracts its article and writes the requested documents under
// <output_dir>/<slug>/. Only remote sources go through the archive index;
// local files are always converted afresh.
func (a *Archiver) Archive(ctx context.Context, source string) (*OutputArtifact, error) {
	remote := isRemote(source)
	if remote && !a.cfg.Force {
		if artifact, ok := a.cached(ctx, source); ok {
			return artifact, nil
		}
	}

	src, err := a.load(ctx, source)
	if err != nil {
		return nil, err
	}
	now := a.now()

	var artifact *OutputArtifact
	if isPDF(src.Body, src.ContentType) {
		artifact, err = a.archivePDF(src, now)
	} else {
		artifact, err = a.archiveHTML(ctx, src, now)
	}
	if err != nil {
		return nil, err
	}
	if !remote {
		return artifact, nil
	}

	entry := indexEntry{
		Title:        artifact.Metadata.Title,
		OutputFolder: artifact.OutputFolder,
		PrimaryFile:  artifact.PrimaryFile,
		MarkdownFile: artifact.MarkdownFile,
		HTMLFile:     artifact.HTMLFile,
		ArchivedAt:   now,
	}
	if err := a.index.record(ctx, source, entry); err != nil {
		a.log.Warn("index update failed", zap.String("source", source), zap.Error(err))
	}
	return artifact, nil
}

func (a *Archiver) load(ctx context.Context, source string) (*SourceDocument, error) {
	if !isRemote(source) {
		return readLocal(source)
	}
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid URL %q", ErrFetch, source)
	}
	if a.cfg.RespectRobots && !a.fetch.robotsAllowed(ctx, u, a.cfg.Timeout) {
		return nil, fmt.Errorf("%w: %s", ErrRobotsDisallowed, source)
	}
	return a.fetch.fetchPage(ctx, source, a.cfg.Timeout)
}

func (a *Archiver) archiveHTML(ctx context.Context, src *SourceDocument, now time.Time) (*OutputArtifact, error) {
	if !validateHTML(src.Body) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidContent, src.Origin)
	}

	meta := extractMetadata(src.Body, src, now)
	content, title, err := extractMainContent(src.Body, src.FinalURL)
	if err != nil {
		return nil, err
	}
	if meta.Title == "" || (isGenericTitle(meta.Title) && title != "Untitled") {
		meta.Title = title
	}

	dest := filepath.Join(a.cfg.OutputDir, slugify(meta.Title))
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	artifact := &OutputArtifact{OutputFolder: dest, Strategy: content.Strategy}
	imagesDir := filepath.Join(dest, imagesDirName)

	if a.cfg.DownloadImages {
		refs := resolveImages(content.HTML, src.FinalURL)
		if len(refs) > a.cfg.MaxImages {
			refs = refs[:a.cfg.MaxImages]
		}
		images := newImageFetcher(a.fetch, src.FinalURL.String(), src.IsLocal, a.cfg.ImageTimeout,
			optimizeOpts{maxWidth: a.cfg.MaxWidth, quality: a.cfg.JPEGQuality}, a.log)
		mapping := images.fetchAll(ctx, refs, imagesDir, a.cfg.MaxImages)

		artifact.ImagesFound = len(refs)
		artifact.ImagesDownloaded = len(mapping)
		if len(mapping) > 0 {
			artifact.ImagesFolder = imagesDir
			rewritten, err := rewriteImageRefs(content.HTML, mapping, src.FinalURL)
			if err != nil {
				return nil, fmt.Errorf("rewriting image references: %w", err)
			}
			content.HTML = rewritten
		}
	}

	meta.WordCount = countWords(content.HTML)
	meta.ImageCount = countLocalImages(content.HTML)

	if err := a.writeDocuments(artifact, content.HTML, meta, imagesDir, now); err != nil {
		return nil, err
	}
	artifact.Metadata = meta
	artifact.WordCount = meta.WordCount

	a.log.Info("archived",
		zap.String("source", src.Origin),
		zap.String("title", meta.Title),
		zap.String("strategy", content.Strategy),
		zap.Int("words", meta.WordCount),
		zap.Int("images", artifact.ImagesDownloaded),
		zap.String("dir", dest))
	return artifact, nil
}

// writeDocuments renders each requested format into artifact.OutputFolder.
// The first format listed becomes the primary file.
func (a *Archiver) writeDocuments(artifact *OutputArtifact, content string, meta Metadata, imagesDir string, now time.Time) error {
	for _, format := range a.cfg.Formats {
		var path string
		switch format {
		case formatHTML:
			path = filepath.Join(artifact.OutputFolder, htmlFileName)
			if err := a.writeFile(path, renderArchiveHTML(content, meta)); err != nil {
				return err
			}
			artifact.HTMLFile = path
		case formatMarkdown:
			md, err := assembleMarkdown(content, meta, markdownOpts{frontmatter: a.cfg.IncludeFrontmatter, converted: now})
			if err != nil {
				return err
			}
			path = filepath.Join(artifact.OutputFolder, markdownFileName)
			if err := a.writeFile(path, md); err != nil {
				return err
			}
			artifact.MarkdownFile = path
		case formatEpub:
			path = filepath.Join(artifact.OutputFolder, epubFileName)
			if err := buildEpub(content, meta, imagesDir, path); err != nil {
				return fmt.Errorf("%w: %v", ErrIO, err)
			}
			artifact.EpubFile = path
		default:
			continue
		}
		if artifact.PrimaryFile == "" {
			artifact.PrimaryFile = path
		}
	}
	return nil
}

func (a *Archiver) writeFile(path, data string) error {
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	a.metrics.bytesWritten.Add(float64(len(data)))
	return nil
}

// archivePDF converts a PDF to Markdown. PDFs always produce article.md,
// whatever formats were requested.
func (a *Archiver) archivePDF(src *SourceDocument, now time.Time) (*OutputArtifact, error) {
	loadPDFLicense(a.log)
	doc, err := readPDF(src.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}

	meta := Metadata{
		Title:       doc.Title,
		Author:      doc.Author,
		Description: doc.Subject,
		SourceFile:  src.Origin,
		DateScraped: now,
		PageCount:   doc.PageCount,
	}
	if src.FinalURL != nil {
		meta.SourceURL = src.FinalURL.String()
		meta.SourceDomain = domainOf(meta.SourceURL)
		if meta.Title == "" {
			meta.Title = titleFromFilename(src.FinalURL.Path)
		}
	}
	if meta.Title == "" {
		meta.Title = "Untitled"
	}

	dest := filepath.Join(a.cfg.OutputDir, slugify(meta.Title))
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	artifact := &OutputArtifact{OutputFolder: dest, Strategy: "pdf"}

	var images map[int][]string
	if a.cfg.DownloadImages {
		imagesDir := filepath.Join(dest, imagesDirName)
		images, err = extractPDFImages(src.Body, imagesDir)
		if err != nil {
			a.log.Warn("PDF image extraction failed", zap.String("source", src.Origin), zap.Error(err))
		}
		for _, names := range images {
			meta.ImageCount += len(names)
		}
		artifact.ImagesFound = meta.ImageCount
		artifact.ImagesDownloaded = meta.ImageCount
		if meta.ImageCount > 0 {
			artifact.ImagesFolder = imagesDir
		}
	}

	text := strings.Join(doc.Pages, "\n")
	meta.WordCount = len(strings.Fields(text))
	if meta.WordCount == 0 && meta.ImageCount == 0 {
		return nil, fmt.Errorf("%w: no text in PDF", ErrContentExtraction)
	}

	md := finishMarkdown(pdfMarkdownBody(doc, images), meta, markdownOpts{frontmatter: a.cfg.IncludeFrontmatter, converted: now})
	path := filepath.Join(dest, markdownFileName)
	if err := a.writeFile(path, md); err != nil {
		return nil, err
	}
	artifact.MarkdownFile = path
	artifact.PrimaryFile = path
	artifact.Metadata = meta
	artifact.WordCount = meta.WordCount

	a.log.Info("archived PDF",
		zap.String("source", src.Origin),
		zap.String("title", meta.Title),
		zap.Int("pages", doc.PageCount),
		zap.Int("images", meta.ImageCount),
		zap.String("dir", dest))
	return artifact, nil
}

// cached returns the artifact of a recent run recorded in the index, as
// long as its primary file is still on disk.
func (a *Archiver) cached(ctx context.Context, source string) (*OutputArtifact, bool) {
	entry, ok, err := a.index.lookup(ctx, source)
	if err != nil {
		a.log.Warn("index lookup failed", zap.String("source", source), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if _, err := os.Stat(entry.PrimaryFile); err != nil {
		return nil, false
	}

	artifact := &OutputArtifact{
		OutputFolder: entry.OutputFolder,
		PrimaryFile:  entry.PrimaryFile,
		HTMLFile:     entry.HTMLFile,
		MarkdownFile: entry.MarkdownFile,
		Metadata:     Metadata{Title: entry.Title, SourceFile: source, DateScraped: entry.ArchivedAt},
		Cached:       true,
	}
	if isRemote(source) {
		artifact.Metadata.SourceURL = source
		artifact.Metadata.SourceDomain = domainOf(source)
	}
	imagesDir := filepath.Join(entry.OutputFolder, imagesDirName)
	if fi, err := os.Stat(imagesDir); err == nil && fi.IsDir() {
		artifact.ImagesFolder = imagesDir
	}
	if entry.MarkdownFile != "" {
		if data, err := os.ReadFile(entry.MarkdownFile); err == nil {
			if fm, err := parseFrontmatter(string(data)); err == nil {
				artifact.Metadata.Author = fm.Author
				artifact.Metadata.ArticleDate = fm.ArticleDate
				artifact.Metadata.Description = fm.Description
				artifact.Metadata.WordCount = fm.WordCount
				artifact.Metadata.ImageCount = fm.ImageCount
				artifact.Metadata.PageCount = fm.PageCount
				artifact.WordCount = fm.WordCount
				if fm.SourceURL != "" {
					artifact.Metadata.SourceURL = fm.SourceURL
				}
			}
		}
	}
	a.log.Info("already archived", zap.String("source", source), zap.String("dir", entry.OutputFolder))
	return artifact, true
}

// errResult is used by callers that never got as far as Run.
func errResult(source string, err error) Result {
	if errors.Is(err, context.Canceled) {
		return Result{Source: source, Error: "canceled"}
	}
	return Result{Source: source, Error: err.Error()}
}
