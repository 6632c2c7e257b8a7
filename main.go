// scrapbook: archive web pages and local HTML/PDF files as clean HTML,
// Markdown or EPUB with their images stored alongside.
//
// Usage:
//
//	scrapbook [options] <URL|file.html|file.pdf|list.txt> [...]
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConfigFile = "scrapbook.yaml"

// cliOptions is everything main needs after flag parsing.
type cliOptions struct {
	cfg     Config
	sources []string
	jsonOut bool
	silent  bool
	verbose bool
}

// parseArgs layers flags over the YAML config, which is layered over the
// defaults. Only flags given explicitly override the file.
func parseArgs(args []string, stderr io.Writer) (cliOptions, error) {
	fs := flag.NewFlagSet("scrapbook", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", defaultConfigFile, "YAML config file")
	output := fs.String("o", "", "Output root directory (default ./articles)")
	formats := fs.String("formats", "", "Output formats: html,markdown,epub (default html,markdown)")
	images := fs.Bool("images", true, "Download images next to the document")
	maxImages := fs.Int("max-images", 0, "Maximum images per document (default 20)")
	noFrontmatter := fs.Bool("no-frontmatter", false, "Omit YAML frontmatter from Markdown")
	timeout := fs.Duration("timeout", 0, "Page fetch timeout (default 30s)")
	imageTimeout := fs.Duration("image-timeout", 0, "Per-image fetch timeout (default 15s)")
	userAgent := fs.String("user-agent", "", "HTTP User-Agent header")
	maxWidth := fs.Int("max-width", 0, "Downscale images wider than this many pixels (0 keeps originals)")
	quality := fs.Int("quality", 0, "JPEG quality 1-95 for downscaled images (default 80)")
	render := fs.Bool("render", false, "Render pages in headless Chrome before extraction")
	robots := fs.Bool("robots", false, "Honour robots.txt")
	proxy := fs.String("proxy", "", "HTTP proxy URL")
	redisURL := fs.String("redis", "", "Redis URL of the archive index")
	force := fs.Bool("force", false, "Ignore the archive index")
	metricsFile := fs.String("metrics-file", "", "Write Prometheus text metrics here after the run")
	concurrency := fs.Int("concurrency", 0, "Sources processed in parallel (default 5)")
	maxResponse := fs.Int64("max-response-size", 0, "Maximum response body in bytes (default 128MB)")
	jsonOut := fs.Bool("json", false, "Print results as JSON")
	silent := fs.Bool("silent", false, "Suppress all logging")
	verbose := fs.Bool("v", false, "Debug logging")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: scrapbook [options] <URL|file.html|file.pdf|list.txt> [...]\n\n")
		fmt.Fprintf(stderr, "Archive articles as HTML, Markdown or EPUB with local images.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := loadConfig(*configPath, set["config"])
	if err != nil {
		return cliOptions{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "o":
			cfg.OutputDir = *output
		case "formats":
			cfg.Formats = parseFormats(*formats)
		case "images":
			cfg.DownloadImages = *images
		case "max-images":
			cfg.MaxImages = *maxImages
		case "no-frontmatter":
			cfg.IncludeFrontmatter = !*noFrontmatter
		case "timeout":
			cfg.Timeout = *timeout
		case "image-timeout":
			cfg.ImageTimeout = *imageTimeout
		case "user-agent":
			cfg.UserAgent = *userAgent
		case "max-width":
			cfg.MaxWidth = *maxWidth
		case "quality":
			cfg.JPEGQuality = *quality
		case "render":
			cfg.Render = *render
		case "robots":
			cfg.RespectRobots = *robots
		case "proxy":
			cfg.Proxy = *proxy
		case "redis":
			cfg.RedisURL = *redisURL
		case "force":
			cfg.Force = *force
		case "metrics-file":
			cfg.MetricsFile = *metricsFile
		case "concurrency":
			cfg.Concurrency = *concurrency
		case "max-response-size":
			cfg.MaxResponseBytes = *maxResponse
		}
	})
	if err := cfg.normalize(); err != nil {
		return cliOptions{}, err
	}

	sources, err := expandSources(fs.Args())
	if err != nil {
		return cliOptions{}, err
	}
	if len(sources) == 0 {
		fs.Usage()
		return cliOptions{}, errors.New("no sources given")
	}

	return cliOptions{cfg: cfg, sources: sources, jsonOut: *jsonOut, silent: *silent, verbose: *verbose}, nil
}

// expandSources replaces every .txt argument by the sources listed in it.
func expandSources(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		if !strings.HasSuffix(strings.ToLower(arg), ".txt") || isRemote(arg) {
			out = append(out, arg)
			continue
		}
		listed, err := readSourceList(arg)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", arg, err)
		}
		out = append(out, listed...)
	}
	return out, nil
}

// readSourceList reads one source per line, skipping blanks and # comments.
func readSourceList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sources []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sources = append(sources, line)
	}
	return sources, scanner.Err()
}

// run archives every source, at most cfg.Concurrency at a time, and reports
// the results on stdout. It fails when any source failed.
func run(ctx context.Context, opts cliOptions, log *zap.Logger, stdout io.Writer) error {
	archiver := newArchiver(opts.cfg, log)
	if opts.cfg.RedisURL != "" {
		idx, err := newRedisIndex(ctx, opts.cfg.RedisURL, opts.cfg.IndexTTL)
		if err != nil {
			log.Warn("archive index disabled", zap.Error(err))
		} else {
			archiver.index = idx
			defer idx.Close()
		}
	}

	results := runBatch(ctx, archiver, opts.sources, opts.cfg.Concurrency)

	if opts.cfg.MetricsFile != "" {
		if err := archiver.metrics.writeTextfile(opts.cfg.MetricsFile); err != nil {
			log.Warn("writing metrics failed", zap.String("path", opts.cfg.MetricsFile), zap.Error(err))
		}
	}

	if err := report(stdout, results, opts.jsonOut); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(results))
	}
	return nil
}

// runBatch keeps results in source order.
func runBatch(ctx context.Context, archiver *Archiver, sources []string, concurrency int) []Result {
	results := make([]Result, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, source := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = errResult(source, err)
				return nil
			}
			pprintf("[%d/%d] %s\n", i+1, len(sources), shortSource(source))
			results[i] = archiver.Run(gctx, source)
			return nil
		})
	}
	g.Wait()
	return results
}

func report(w io.Writer, results []Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(results) == 1 {
			return enc.Encode(results[0])
		}
		return enc.Encode(results)
	}
	for _, r := range results {
		if !r.OK() {
			fmt.Fprintf(w, "✗ %s: %s\n", r.Source, r.Error)
			continue
		}
		a := r.Artifact
		note := ""
		if a.Cached {
			note = " (already archived)"
		}
		fmt.Fprintf(w, "✓ %s → %s%s\n", a.Metadata.Title, a.PrimaryFile, note)
		if a.ImagesFound > 0 {
			fmt.Fprintf(w, "  %d words, %d/%d images\n", a.WordCount, a.ImagesDownloaded, a.ImagesFound)
		} else {
			fmt.Fprintf(w, "  %d words\n", a.WordCount)
		}
	}
	return nil
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	log, err := newLogger(opts.silent, opts.verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if len(opts.sources) > 1 && !opts.silent && !opts.jsonOut {
		progressOut = os.Stderr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, log, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
