// Package mock provides function-field test doubles for crawler collaborators.
package mock

import (
	"context"
	"fmt"
	"sync"
)

// Fetcher is a configurable client.PageFetcher.
type Fetcher struct {
	FetchHTMLFn  func(ctx context.Context, url string) (string, error)
	FetchBytesFn func(ctx context.Context, url string) ([]byte, error)

	mu    sync.Mutex
	calls []string
}

func (f *Fetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	f.record(url)
	if f.FetchHTMLFn == nil {
		return "", fmt.Errorf("unexpected fetch of %s", url)
	}
	return f.FetchHTMLFn(ctx, url)
}

func (f *Fetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	f.record(url)
	if f.FetchBytesFn == nil {
		return nil, fmt.Errorf("unexpected fetch of %s", url)
	}
	return f.FetchBytesFn(ctx, url)
}

// Calls returns every URL requested so far, in order.
func (f *Fetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fetcher) record(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
}

// Pages returns a Fetcher serving static markup by URL. Unknown URLs fail
// like a 404 would, and URLs listed in failing return a transport error.
func Pages(pages map[string]string, failing ...string) *Fetcher {
	fail := make(map[string]bool, len(failing))
	for _, u := range failing {
		fail[u] = true
	}
	return &Fetcher{
		FetchHTMLFn: func(_ context.Context, url string) (string, error) {
			if fail[url] {
				return "", fmt.Errorf("failed to fetch URL: connection reset by peer")
			}
			html, ok := pages[url]
			if !ok {
				return "", fmt.Errorf("HTTP error: 404 404 Not Found")
			}
			return html, nil
		},
		FetchBytesFn: func(_ context.Context, url string) ([]byte, error) {
			if fail[url] {
				return nil, fmt.Errorf("failed to fetch URL: connection reset by peer")
			}
			body, ok := pages[url]
			if !ok {
				return nil, fmt.Errorf("HTTP error: 404 404 Not Found")
			}
			return []byte(body), nil
		},
	}
}
