package main

import (
	"context"

	"github.com/chromedp/chromedp"
)

// pageRenderer loads a page in a browser and returns the DOM after scripts
// have run, along with the final location.
type pageRenderer interface {
	render(ctx context.Context, rawURL string) (html, finalURL string, err error)
}

// chromeRenderer starts a headless Chrome per call. Rendering is opt-in
// (-render) and slow, so no allocator is kept around between pages.
type chromeRenderer struct {
	userAgent string
}

func (r chromeRenderer) render(ctx context.Context, rawURL string) (string, string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(r.userAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	var html, location string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", "", err
	}
	return html, location, nil
}
