package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, "articles", cfg.OutputDir)
	assert.Equal(t, []string{formatHTML, formatMarkdown}, cfg.Formats)
	assert.True(t, cfg.DownloadImages)
	assert.Equal(t, 20, cfg.MaxImages)
	assert.True(t, cfg.IncludeFrontmatter)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 15*time.Second, cfg.ImageTimeout)
	assert.Equal(t, 5, cfg.Concurrency)
	assert.False(t, cfg.AllowPrivateNetworks)
}

func TestLoadConfig_OverlaysYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scrapbook.yaml", `
output_dir: /srv/archive
formats: [md, epub, markdown]
download_images: false
max_images: 5
timeout: 45s
index_ttl: 24h
redis_url: redis://localhost:6379/2
`)
	cfg, err := loadConfig(path, true)
	require.NoError(t, err)

	assert.Equal(t, "/srv/archive", cfg.OutputDir)
	assert.Equal(t, []string{formatMarkdown, formatEpub}, cfg.Formats)
	assert.False(t, cfg.DownloadImages)
	assert.Equal(t, 5, cfg.MaxImages)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.IndexTTL)
	assert.Equal(t, "redis://localhost:6379/2", cfg.RedisURL)
	// untouched keys keep their defaults
	assert.Equal(t, 15*time.Second, cfg.ImageTimeout)
	assert.True(t, cfg.IncludeFrontmatter)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := loadConfig(missing, false)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	_, err = loadConfig(missing, true)
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	_, err := loadConfig(writeFile(t, dir, "bad.yaml", "formats: [pdf]\n"), true)
	assert.ErrorContains(t, err, `unknown output format "pdf"`)

	_, err = loadConfig(writeFile(t, dir, "broken.yaml", "output_dir: [unclosed\n"), true)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	cfg := Config{
		Formats:     []string{" HTML ", "htm", "md"},
		MaxImages:   -3,
		Concurrency: 0,
		JPEGQuality: 200,
	}
	require.NoError(t, cfg.normalize())
	assert.Equal(t, []string{formatHTML, formatMarkdown}, cfg.Formats)
	assert.Equal(t, 0, cfg.MaxImages)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, 80, cfg.JPEGQuality)
	assert.Equal(t, defaultUA, cfg.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.Timeout)

	empty := Config{}
	assert.Error(t, empty.normalize())
}

func TestParseFormats(t *testing.T) {
	assert.Equal(t, []string{"html", "md"}, parseFormats(" html , ,md,"))
	assert.Nil(t, parseFormats(""))
}
