// Package ingest implements the citation-grade pipeline behind POST
// /v1/ingest: fetch, snapshot, canonical extraction, structured-data
// harvest, sentence atomization, deterministic identity, QA gate, and
// atomic Markdown publication.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/malwarescan/oracle/internal/apierr"
)

const (
	userAgent   = "oracle-ingestor/1.1 (+https://oracle.example)"
	fetchTimeout = 20 * time.Second
	maxBodyBytes = 10 << 20 // 10MiB
)

// Fetcher retrieves a page's raw HTML.
type Fetcher struct {
	client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: fetchTimeout}}
}

// Fetch performs a GET against sourceURL. A non-2xx response is a hard
// failure surfaced as apierr.UpstreamFetch.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", apierr.New(apierr.Validation, fmt.Sprintf("invalid source_url: %v", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", apierr.WithDetails(apierr.UpstreamFetch, fmt.Sprintf("fetch %s: %v", sourceURL, err), nil)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apierr.WithDetails(apierr.UpstreamFetch,
			fmt.Sprintf("fetch %s: status %d", sourceURL, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", apierr.WithDetails(apierr.UpstreamFetch, fmt.Sprintf("read body for %s: %v", sourceURL, err), nil)
	}
	return string(body), nil
}
