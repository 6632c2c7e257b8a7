package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortSource(t *testing.T) {
	assert.Equal(t, "example.com/posts/hello", shortSource("https://example.com/posts/hello/"))
	assert.Equal(t, "example.com", shortSource("https://example.com/"))
	assert.Equal(t, "notes/page.html", shortSource("notes/page.html"))

	long := "https://example.com/" + strings.Repeat("segment/", 20)
	got := shortSource(long)
	assert.Len(t, []rune(got), 60)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestPprintf_DiscardedByDefault(t *testing.T) {
	assert.Equal(t, io.Discard, progressOut)
}

func TestPprintf_ConcurrentLinesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	old := progressOut
	progressOut = &buf
	defer func() { progressOut = old }()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pprintf("[%d/20] %s\n", i+1, "example.com/post")
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 20)
	for _, l := range lines {
		assert.Regexp(t, `^\[\d+/20\] example\.com/post$`, l)
	}
	assert.Contains(t, buf.String(), fmt.Sprintf("[%d/20]", 20))
}
