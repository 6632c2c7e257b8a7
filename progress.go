// Batch progress lines, kept apart from the structured log so they stay
// readable when several sources run at once.
package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
)

// progressOut receives "[i/n] source" lines in batch mode. It stays
// io.Discard for single sources and in silent or JSON mode.
var progressOut io.Writer = io.Discard

var progressMu sync.Mutex

func pprintf(format string, args ...any) {
	progressMu.Lock()
	defer progressMu.Unlock()
	fmt.Fprintf(progressOut, format, args...)
}

// shortSource returns a compact display form of a source: host and path
// for URLs, the path itself for files. Truncated to 60 characters.
func shortSource(source string) string {
	display := source
	if isRemote(source) {
		if u, err := url.Parse(source); err == nil {
			display = strings.TrimSuffix(u.Host+u.Path, "/")
		}
	}
	if r := []rune(display); len(r) > 60 {
		display = string(r[:57]) + "..."
	}
	return display
}
