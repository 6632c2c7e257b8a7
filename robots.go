package main

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// robotsAllowed fetches robots.txt for pageURL's host and tests the page
// path against the group for the fetcher's User-Agent. A missing or
// unreadable robots.txt allows everything.
func (f *fetcher) robotsAllowed(ctx context.Context, pageURL *url.URL, timeout time.Duration) bool {
	robotsURL := &url.URL{Scheme: pageURL.Scheme, Host: pageURL.Host, Path: "/robots.txt"}
	resp, err := f.get(ctx, robotsURL.String(), timeout, http.Header{"Accept": {"text/plain,*/*;q=0.5"}})
	if err != nil {
		f.log.Debug("robots.txt unavailable", zap.String("url", robotsURL.String()), zap.Error(err))
		return true
	}
	data, err := robotstxt.FromBytes(resp.body)
	if err != nil {
		f.log.Debug("robots.txt unparsable", zap.String("url", robotsURL.String()), zap.Error(err))
		return true
	}

	path := pageURL.EscapedPath()
	if path == "" {
		path = "/"
	}
	if pageURL.RawQuery != "" {
		path += "?" + pageURL.RawQuery
	}
	return data.TestAgent(path, f.userAgent)
}
