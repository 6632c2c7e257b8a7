package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/http2"
)

const defaultUA = "Mozilla/5.0 (X11; Linux x86_64; rv:133.0) Gecko/20100101 Firefox/133.0"

const (
	acceptPage  = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptImage = "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8"
)

// fetcher performs every outgoing request of a run: pages, images and
// robots.txt. Clients are built once and shared; per-request deadlines come
// from the context.
type fetcher struct {
	browser   *http.Client // utls fingerprint, https only
	plain     *http.Client
	userAgent string
	maxBytes  int64
	render    bool
	renderer  pageRenderer
	guard     netGuard
	log       *zap.Logger
}

func newFetcher(cfg Config, log *zap.Logger) *fetcher {
	guard := netGuard{allowPrivate: cfg.AllowPrivateNetworks}
	f := &fetcher{
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxResponseBytes,
		render:    cfg.Render,
		renderer:  chromeRenderer{userAgent: cfg.UserAgent},
		guard:     guard,
		log:       log,
	}
	if cfg.Proxy != "" {
		// utls cannot negotiate CONNECT tunnels, so a proxy means standard TLS.
		f.plain = newProxyClient(cfg.Proxy, guard)
		f.browser = f.plain
		return f
	}
	f.plain = &http.Client{
		Transport: &http.Transport{
			DialContext:         guard.dialContext(&net.Dialer{Timeout: 10 * time.Second}),
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
	f.browser = newBrowserClient(guard)
	return f
}

// newProxyClient routes requests through proxyAddr using standard TLS.
func newProxyClient(proxyAddr string, guard netGuard) *http.Client {
	transport := &http.Transport{
		DialContext: guard.dialContext(&net.Dialer{Timeout: 10 * time.Second}),
	}
	if proxyURL, err := url.Parse(proxyAddr); err == nil {
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{Transport: transport}
}

func (f *fetcher) clientFor(u *url.URL) *http.Client {
	if u.Scheme == "https" {
		return f.browser
	}
	return f.plain
}

// readLimited reads r fully, failing once more than limit bytes arrive.
// A limit of zero or less means no limit.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response body exceeds maximum allowed size (%s)", humanSize(limit))
	}
	return data, nil
}

// utlsConn adapts a utls.UConn to the ConnectionState method net/http2
// looks for.
type utlsConn struct {
	*utls.UConn
}

func (c *utlsConn) ConnectionState() tls.ConnectionState {
	cs := c.UConn.ConnectionState()
	return tls.ConnectionState{
		Version:                    cs.Version,
		HandshakeComplete:          cs.HandshakeComplete,
		CipherSuite:                cs.CipherSuite,
		NegotiatedProtocol:         cs.NegotiatedProtocol,
		NegotiatedProtocolIsMutual: cs.NegotiatedProtocolIsMutual,
		ServerName:                 cs.ServerName,
		PeerCertificates:           cs.PeerCertificates,
		VerifiedChains:             cs.VerifiedChains,
		OCSPResponse:               cs.OCSPResponse,
		TLSUnique:                  cs.TLSUnique,
	}
}

// newBrowserClient presents a Firefox TLS fingerprint and speaks h2 or
// HTTP/1.1 depending on ALPN. Plain http requests go through h1.
func newBrowserClient(guard netGuard) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	return &http.Client{
		Transport: &browserTransport{
			dial: guard.dialContext(dialer),
			h1:   &http.Transport{DialContext: guard.dialContext(dialer)},
			h2:   &http2.Transport{},
		},
	}
}

type browserTransport struct {
	dial func(context.Context, string, string) (net.Conn, error)
	h1   *http.Transport
	h2   *http2.Transport
}

func (bt *browserTransport) dialUTLS(ctx context.Context, addr string) (net.Conn, string, error) {
	conn, err := bt.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, "", err
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloFirefox_120)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, "", err
	}
	return &utlsConn{tlsConn}, tlsConn.ConnectionState().NegotiatedProtocol, nil
}

func (bt *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return bt.h1.RoundTrip(req)
	}

	addr := req.URL.Host
	if !hasPort(addr) {
		addr += ":443"
	}

	conn, alpn, err := bt.dialUTLS(req.Context(), addr)
	if err != nil {
		return nil, err
	}

	if alpn == "h2" {
		h2conn, err := bt.h2.NewClientConn(conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		resp, err := h2conn.RoundTrip(req)
		if err != nil {
			h2conn.Close()
			return nil, err
		}
		resp.Body = &releasingBody{ReadCloser: resp.Body, release: func() { h2conn.Close() }}
		return resp, nil
	}
	return roundTripOnConn(conn, req)
}

// roundTripOnConn sends one HTTP/1.1 request over an already negotiated
// connection. The connection is closed with the response body.
func roundTripOnConn(conn net.Conn, req *http.Request) (*http.Response, error) {
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		return conn, nil
	}
	transport := &http.Transport{
		DialContext:       dial,
		DialTLSContext:    dial,
		DisableKeepAlives: true,
	}
	resp, err := transport.RoundTrip(req)
	if err != nil {
		conn.Close()
		return nil, err
	}
	resp.Body = &releasingBody{ReadCloser: resp.Body, release: func() { conn.Close() }}
	return resp, nil
}

// releasingBody runs release once when the body is closed.
type releasingBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}

func hasPort(host string) bool {
	_, _, err := net.SplitHostPort(host)
	return err == nil
}

// response is a fully read HTTP response.
type response struct {
	body        []byte
	finalURL    *url.URL
	contentType string
}

// get performs a GET with the fetcher's User-Agent plus the given headers.
// Non-2xx statuses are errors.
func (f *fetcher) get(ctx context.Context, rawURL string, timeout time.Duration, header http.Header) (*response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.clientFor(u).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, rawURL)
	}

	body, err := readLimited(resp.Body, f.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	final := u
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}
	return &response{body: body, finalURL: final, contentType: resp.Header.Get("Content-Type")}, nil
}

// fetchPage downloads rawURL (or renders it in headless Chrome when the
// fetcher was built with render set) and returns it as UTF-8.
func (f *fetcher) fetchPage(ctx context.Context, rawURL string, timeout time.Duration) (*SourceDocument, error) {
	if f.render && !isPDFURL(rawURL) {
		return f.renderPage(ctx, rawURL, timeout)
	}

	resp, err := f.get(ctx, rawURL, timeout, http.Header{
		"Accept":          {acceptPage},
		"Accept-Language": {"en-US,en;q=0.5"},
		"Sec-Fetch-Dest":  {"document"},
		"Sec-Fetch-Mode":  {"navigate"},
		"Sec-Fetch-Site":  {"none"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	f.log.Debug("fetched page",
		zap.String("url", resp.finalURL.String()),
		zap.String("size", humanSize(int64(len(resp.body)))))

	body := resp.body
	if !isPDF(body, resp.contentType) {
		body = decodeUTF8(body, resp.contentType)
	}
	return &SourceDocument{
		Origin:      rawURL,
		FinalURL:    resp.finalURL,
		ContentType: resp.contentType,
		Body:        body,
	}, nil
}

func (f *fetcher) renderPage(ctx context.Context, rawURL string, timeout time.Duration) (*SourceDocument, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	// Chrome resolves and connects on its own, so the dialer guard never
	// sees it. Only the starting host is checked.
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL %q", ErrFetch, rawURL)
	}
	if err := f.guard.checkHost(ctx, u.Hostname()); err != nil {
		return nil, fmt.Errorf("%w: rendering %s: %v", ErrFetch, rawURL, err)
	}
	html, final, err := f.renderer.render(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: rendering %s: %v", ErrFetch, rawURL, err)
	}
	finalURL, err := url.Parse(final)
	if err != nil || finalURL.Host == "" {
		finalURL, _ = url.Parse(rawURL)
	}
	f.log.Debug("rendered page", zap.String("url", finalURL.String()), zap.Int("bytes", len(html)))
	return &SourceDocument{
		Origin:      rawURL,
		FinalURL:    finalURL,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(html),
	}, nil
}

// readLocal loads an HTML or PDF file from disk.
func readLocal(path string) (*SourceDocument, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	body, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: file not found: %s", ErrFetch, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	ct := "text/html"
	if isPDF(body, "") {
		ct = "application/pdf"
	} else {
		body = decodeUTF8(body, ct)
	}
	return &SourceDocument{
		Origin:      path,
		FinalURL:    &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)},
		IsLocal:     true,
		ContentType: ct,
		Body:        body,
	}, nil
}

// decodeUTF8 converts body to UTF-8 using the Content-Type charset, a BOM
// or a <meta charset>, in that order. Undecodable input is returned as is.
func decodeUTF8(body []byte, contentType string) []byte {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return body
	}
	return out
}

// isRemote reports whether source names an http(s) URL rather than a file.
func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
