package scraping

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultTimeout        = 15 * time.Second
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultAcceptLanguage = "en-US,en;q=0.9,ar;q=0.8"
	DefaultMaxAttempts    = 2
	DefaultBackoff        = time.Second
)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status code error: %d (%s)", e.Code, e.URL)
}

// Transient reports whether retrying could help.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// FetchOptions configures a Fetcher. Zero values take the defaults above.
type FetchOptions struct {
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	MaxAttempts    int
	Backoff        time.Duration
	Client         *http.Client
}

// Fetcher downloads one results page and parses it. The timeout bounds all
// attempts together.
type Fetcher struct {
	client         *http.Client
	timeout        time.Duration
	userAgent      string
	acceptLanguage string
	maxAttempts    int
	backoff        time.Duration
}

func NewFetcher(opts FetchOptions) *Fetcher {
	f := &Fetcher{
		client:         opts.Client,
		timeout:        opts.Timeout,
		userAgent:      strings.TrimSpace(opts.UserAgent),
		acceptLanguage: strings.TrimSpace(opts.AcceptLanguage),
		maxAttempts:    opts.MaxAttempts,
		backoff:        opts.Backoff,
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.acceptLanguage == "" {
		f.acceptLanguage = DefaultAcceptLanguage
	}
	if f.maxAttempts <= 0 {
		f.maxAttempts = DefaultMaxAttempts
	}
	if f.backoff < 0 {
		f.backoff = 0
	}
	return f
}

// Timeout returns the per-lookup deadline.
func (f *Fetcher) Timeout() time.Duration { return f.timeout }

// UserAgent returns the User-Agent sent with every request.
func (f *Fetcher) UserAgent() string { return f.userAgent }

// AcceptLanguage returns the Accept-Language header value.
func (f *Fetcher) AcceptLanguage() string { return f.acceptLanguage }

// Document fetches url and parses it. Network errors, 429 and 5xx responses
// are retried with linear backoff until attempts or the deadline run out.
func (f *Fetcher) Document(ctx context.Context, url string) (*goquery.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		doc, err := f.get(ctx, url)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !transient(err) || attempt == f.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("fetch %s: %w (last error: %v)", url, ctx.Err(), lastErr)
		case <-time.After(f.backoff * time.Duration(attempt)):
		}
	}
	return nil, lastErr
}

func (f *Fetcher) get(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", f.acceptLanguage)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	res, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &StatusError{URL: url, Code: res.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}

func transient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
