package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Source is an open remote object.
type Source struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// Fetcher opens remote URLs for streaming into storage.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a fetcher; nil uses a client with a 60s timeout.
func NewFetcher(httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Fetcher{httpClient: httpClient}
}

// Open issues a GET for url. The caller must close Source.Body.
func (f *Fetcher) Open(ctx context.Context, url string) (*Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Source{Body: resp.Body, ContentType: contentType, ContentLength: resp.ContentLength}, nil
}
