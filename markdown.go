package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JohannesKaufmann/dom"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"
)

var (
	mdConverter     *converter.Converter
	mdConverterOnce sync.Once

	blankRunRe = regexp.MustCompile(`\n{3,}`)
)

// getMarkdownConverter returns the shared converter: ATX headings, "-"
// bullets, page chrome dropped, and data URI images reduced to their alt
// text.
func getMarkdownConverter() *converter.Converter {
	mdConverterOnce.Do(func() {
		mdConverter = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(
					commonmark.WithHeadingStyle(commonmark.HeadingStyleATX),
					commonmark.WithBulletListMarker("-"),
				),
			),
		)
		for _, tag := range []string{"script", "style", "nav", "header", "footer", "aside"} {
			mdConverter.Register.TagType(tag, converter.TagTypeRemove, converter.PriorityStandard)
		}
		mdConverter.Register.RendererFor("img", converter.TagTypeInline,
			func(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
				src := dom.GetAttributeOr(n, "src", "")
				if !strings.HasPrefix(src, "data:") {
					return converter.RenderTryNext
				}
				if alt := strings.TrimSpace(dom.GetAttributeOr(n, "alt", "")); alt != "" {
					w.WriteString("[Image: " + alt + "]")
				}
				return converter.RenderSuccess
			},
			converter.PriorityEarly,
		)
	})
	return mdConverter
}

type markdownOpts struct {
	frontmatter bool
	converted   time.Time
}

// assembleMarkdown converts an article fragment to a Markdown document,
// optionally headed by YAML frontmatter.
func assembleMarkdown(content string, meta Metadata, opts markdownOpts) (string, error) {
	md, err := getMarkdownConverter().ConvertString(content)
	if err != nil {
		return "", fmt.Errorf("markdown conversion: %w", err)
	}
	return finishMarkdown(md, meta, opts), nil
}

// finishMarkdown tidies a converted body and adds the title heading and
// frontmatter. PDF output goes through here too.
func finishMarkdown(md string, meta Metadata, opts markdownOpts) string {
	md = tidyMarkdown(md)
	if meta.Title != "" && !strings.HasPrefix(md, "#") {
		md = strings.TrimSpace("# " + meta.Title + "\n\n" + md)
	}
	if opts.frontmatter {
		md = formatFrontmatter(meta, opts.converted) + "\n\n" + md
	}
	return md + "\n"
}

// tidyMarkdown trims trailing whitespace from every line and collapses
// runs of blank lines to one.
func tidyMarkdown(md string) string {
	md = strings.ReplaceAll(md, "\r\n", "\n")
	lines := strings.Split(md, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	md = strings.Join(lines, "\n")
	md = blankRunRe.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md)
}

// yamlQuote renders s as a double-quoted YAML scalar on one line.
func yamlQuote(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	return `"` + s + `"`
}

// yamlPlain leaves s bare when YAML reads it back unchanged as a plain
// scalar, and quotes it otherwise.
func yamlPlain(s string) string {
	switch {
	case s == "", s != strings.TrimSpace(s),
		strings.ContainsAny(s, "\n\r\t"),
		strings.Contains(s, ": "), strings.Contains(s, " #"),
		strings.HasSuffix(s, ":"),
		strings.ContainsRune("-?:,[]{}#&*!|>'\"%@`", rune(s[0])):
		return yamlQuote(s)
	}
	switch strings.ToLower(s) {
	case "~", "null":
		return yamlQuote(s)
	}
	return s
}

// formatFrontmatter emits the fixed-order header block. Optional fields are
// left out when empty; page_count only appears for PDF sources.
func formatFrontmatter(meta Metadata, converted time.Time) string {
	lines := []string{"---"}
	lines = append(lines, "title: "+yamlQuote(meta.Title))
	if meta.SourceURL != "" {
		lines = append(lines, "source_url: "+yamlPlain(meta.SourceURL))
	}
	if meta.ArticleDate != "" {
		lines = append(lines, "article_date: "+yamlPlain(meta.ArticleDate))
	}
	if meta.Author != "" {
		lines = append(lines, "author: "+yamlQuote(meta.Author))
	}
	if meta.Description != "" {
		lines = append(lines, "description: "+yamlQuote(meta.Description))
	}
	if meta.PageCount > 0 {
		lines = append(lines, "page_count: "+strconv.Itoa(meta.PageCount))
	}
	lines = append(lines,
		"date_converted: "+converted.Format(timestampLayout),
		"source_file: "+yamlPlain(meta.SourceFile),
		"word_count: "+strconv.Itoa(meta.WordCount),
		"image_count: "+strconv.Itoa(meta.ImageCount),
		"---",
	)
	return strings.Join(lines, "\n")
}

// frontmatter mirrors the header block written by formatFrontmatter.
type frontmatter struct {
	Title         string `yaml:"title"`
	SourceURL     string `yaml:"source_url"`
	ArticleDate   string `yaml:"article_date"`
	Author        string `yaml:"author"`
	Description   string `yaml:"description"`
	PageCount     int    `yaml:"page_count"`
	DateConverted string `yaml:"date_converted"`
	SourceFile    string `yaml:"source_file"`
	WordCount     int    `yaml:"word_count"`
	ImageCount    int    `yaml:"image_count"`
}

// parseFrontmatter reads the header block back from a Markdown document.
func parseFrontmatter(md string) (frontmatter, error) {
	var fm frontmatter
	rest, ok := strings.CutPrefix(md, "---\n")
	if !ok {
		return fm, fmt.Errorf("no frontmatter")
	}
	block, _, ok := strings.Cut(rest, "\n---")
	if !ok {
		return fm, fmt.Errorf("unterminated frontmatter")
	}
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return fm, fmt.Errorf("parsing frontmatter: %w", err)
	}
	return fm, nil
}
