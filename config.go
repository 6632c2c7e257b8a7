package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	formatHTML     = "html"
	formatMarkdown = "markdown"
	formatEpub     = "epub"
)

// Config holds every tunable of a run. It is built once by main (defaults,
// then the YAML file, then flags) and passed explicitly to the Archiver.
type Config struct {
	OutputDir            string        `yaml:"output_dir"`
	Formats              []string      `yaml:"formats"`
	DownloadImages       bool          `yaml:"download_images"`
	MaxImages            int           `yaml:"max_images"`
	IncludeFrontmatter   bool          `yaml:"include_frontmatter"`
	Timeout              time.Duration `yaml:"timeout"`
	ImageTimeout         time.Duration `yaml:"image_timeout"`
	UserAgent            string        `yaml:"user_agent"`
	MaxWidth             int           `yaml:"max_width"`
	JPEGQuality          int           `yaml:"jpeg_quality"`
	Render               bool          `yaml:"render"`
	RespectRobots        bool          `yaml:"respect_robots"`
	Proxy                string        `yaml:"proxy"`
	RedisURL             string        `yaml:"redis_url"`
	IndexTTL             time.Duration `yaml:"index_ttl"`
	MetricsFile          string        `yaml:"metrics_file"`
	Concurrency          int           `yaml:"concurrency"`
	MaxResponseBytes     int64         `yaml:"max_response_bytes"`
	AllowPrivateNetworks bool          `yaml:"allow_private_networks"`

	// Force ignores the archive index. Command line only.
	Force bool `yaml:"-"`
}

func defaultConfig() Config {
	return Config{
		OutputDir:          "articles",
		Formats:            []string{formatHTML, formatMarkdown},
		DownloadImages:     true,
		MaxImages:          20,
		IncludeFrontmatter: true,
		Timeout:            30 * time.Second,
		ImageTimeout:       15 * time.Second,
		UserAgent:          defaultUA,
		JPEGQuality:        80,
		IndexTTL:           7 * 24 * time.Hour,
		Concurrency:        5,
		MaxResponseBytes:   128 * 1024 * 1024,
	}
}

// loadConfig overlays the YAML file at path onto the defaults. A missing
// file is only an error when required is set.
func loadConfig(path string, required bool) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.normalize(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// parseFormats splits a comma-separated list such as "html,md".
func parseFormats(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// normalize canonicalizes format names and clamps numeric settings.
func (c *Config) normalize() error {
	seen := map[string]bool{}
	var formats []string
	for _, f := range c.Formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "html", "htm":
			f = formatHTML
		case "markdown", "md":
			f = formatMarkdown
		case "epub":
			f = formatEpub
		default:
			return fmt.Errorf("unknown output format %q", f)
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return fmt.Errorf("no output formats selected")
	}
	c.Formats = formats

	if c.MaxImages < 0 {
		c.MaxImages = 0
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 95 {
		c.JPEGQuality = 80
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.ImageTimeout <= 0 {
		c.ImageTimeout = 15 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUA
	}
	return nil
}
