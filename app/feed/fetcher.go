package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultMaxBodyBytes = 10 << 20
	DefaultFetchTimeout = 30 * time.Second
)

type FetchStatus string

const (
	StatusFresh       FetchStatus = "fresh"
	StatusNotModified FetchStatus = "not_modified"
)

type FetchRequest struct {
	URL          string
	ETag         string
	LastModified string
	Timeout      time.Duration
}

type FetchResult struct {
	Status       FetchStatus
	Body         []byte
	ETag         string
	LastModified string
	StatusCode   int
}

type FetcherOptions struct {
	UserAgent    string
	Retries      int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	MaxBodyBytes int64
}

type Fetcher struct {
	client       *retryablehttp.Client
	userAgent    string
	maxBodyBytes int64
}

func NewFetcher(opts FetcherOptions) *Fetcher {
	client := retryablehttp.NewClient()
	client.HTTPClient = cleanhttp.DefaultPooledClient()
	client.RetryMax = max(opts.Retries, 0)
	client.RetryWaitMin = opts.RetryWaitMin
	client.RetryWaitMax = opts.RetryWaitMax
	if client.RetryWaitMin <= 0 {
		client.RetryWaitMin = 250 * time.Millisecond
	}
	if client.RetryWaitMax < client.RetryWaitMin {
		client.RetryWaitMax = max(2*time.Second, client.RetryWaitMin)
	}
	// Keep the last response so non-2xx statuses surface as KindHTTPStatus.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = slog.Default().With("component", "fetcher")

	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	return &Fetcher{
		client:       client,
		userAgent:    opts.UserAgent,
		maxBodyBytes: maxBody,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, fr FetchRequest) (*FetchResult, error) {
	timeout := fr.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(timeoutCtx, http.MethodGet, fr.URL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, URL: fr.URL, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if fr.ETag != "" {
		req.Header.Set("If-None-Match", fr.ETag)
	}
	if fr.LastModified != "" {
		req.Header.Set("If-Modified-Since", fr.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.classify(timeoutCtx, fr.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &FetchResult{
			Status:       StatusNotModified,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			StatusCode:   resp.StatusCode,
		}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Kind: KindHTTPStatus, URL: fr.URL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, f.classify(timeoutCtx, fr.URL, fmt.Errorf("failed to read response body: %w", err))
	}
	if int64(len(data)) > f.maxBodyBytes {
		return nil, &FetchError{Kind: KindNetwork, URL: fr.URL, Err: fmt.Errorf("response body exceeds %d bytes", f.maxBodyBytes)}
	}

	return &FetchResult{
		Status:       StatusFresh,
		Body:         data,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		StatusCode:   resp.StatusCode,
	}, nil
}

func (f *Fetcher) classify(ctx context.Context, url string, err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &FetchError{Kind: KindTimeout, URL: url, Err: err}
	}
	return &FetchError{Kind: KindNetwork, URL: url, Err: err}
}
