package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"mvdan.cc/xurls/v2"
)

const (
	// Browser-like headers avoid basic bot blocks on article pages.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0 Safari/537.36"
	acceptHeader         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguageHeader = "en-US,en;q=0.9"

	// maxBodyBytes bounds how much of a page is read. Articles larger
	// than this are truncated anyway by the input character budget.
	maxBodyBytes = 4 << 20

	urlScheme = `https?://`
)

// Fetcher downloads article pages. Redirects are followed; the only
// timeout in the pipeline applies here.
type Fetcher struct {
	client *http.Client
	urlRe  *regexp.Regexp
}

// New creates a fetcher whose requests are cut off after timeout.
func New(timeout time.Duration) (*Fetcher, error) {
	urlRe, err := xurls.StrictMatchingScheme(urlScheme)
	if err != nil {
		return nil, fmt.Errorf("create regexp: %w", err)
	}

	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		urlRe:  urlRe,
	}, nil
}

// Fetch downloads rawURL and returns the response body as HTML.
// Anything but a strict absolute http(s) URL and a 2xx response is an
// error; callers map every failure here to a failed fetch.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || f.urlRe.FindString(rawURL) != rawURL {
		return "", fmt.Errorf("not an absolute http(s) URL: %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguageHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	return string(body), nil
}
