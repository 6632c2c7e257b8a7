package main

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch covers network failures, non-2xx responses and missing local files.
	ErrFetch = errors.New("fetch failed")
	// ErrInvalidContent means the fetched bytes are not HTML.
	ErrInvalidContent = errors.New("invalid HTML content")
	// ErrContentExtraction means no strategy found enough article text.
	ErrContentExtraction = errors.New("could not extract meaningful content")
	// ErrRobotsDisallowed is returned when robots.txt forbids the page.
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	// ErrIO wraps directory and file write failures.
	ErrIO = errors.New("write failed")
)

// ImageFetchError records why a single image could not be localized.
// It never aborts a run.
type ImageFetchError struct {
	URL string
	Err error
}

func (e *ImageFetchError) Error() string {
	return fmt.Sprintf("image %s: %v", e.URL, e.Err)
}

func (e *ImageFetchError) Unwrap() error { return e.Err }

// errorKind maps an error to a short label for metrics and logs.
func errorKind(err error) string {
	var imgErr *ImageFetchError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrInvalidContent):
		return "invalid_content"
	case errors.Is(err, ErrContentExtraction):
		return "content_extraction"
	case errors.Is(err, ErrRobotsDisallowed):
		return "robots"
	case errors.Is(err, ErrIO):
		return "io"
	case errors.As(err, &imgErr):
		return "image_fetch"
	}
	return "internal"
}
