package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for origin fetches.
var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imgcache_fetches_total",
		Help: "Total origin fetches by outcome",
	}, []string{"outcome"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "imgcache_fetch_duration_seconds",
		Help:    "Origin fetch duration in seconds, including retries",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})
)

const (
	// DefaultMaxBodyBytes caps the size of a single image body.
	DefaultMaxBodyBytes int64 = 32 * 1024 * 1024

	// discardLimit bounds how much of a rejected body is drained for connection reuse.
	discardLimit = 4 * 1024
)

// Fetcher retrieves image bytes from the origin.
// A nil error guarantees a non-empty body that passed validation.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// HTTPFetcher fetches images over HTTP and rejects anything that is not
// a successful, non-empty image response.
type HTTPFetcher struct {
	httpClient   *http.Client
	userAgent    string
	maxBodyBytes int64
	retry        RetryConfig
	logger       zerolog.Logger
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher from the transport settings in cfg.
func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	retry := DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries + 1
	if cfg.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.InitialBackoff
	}

	return &HTTPFetcher{
		httpClient:   httpClient,
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		retry:        retry,
		logger:       cfg.Logger.With().Str("component", "fetcher").Logger(),
	}
}

// Fetch performs a GET for rawURL, bypassing intermediate caches.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := validateURL(rawURL); err != nil {
		fetchesTotal.WithLabelValues("invalid_url").Inc()
		return nil, err
	}

	startTime := time.Now()
	defer func() {
		fetchDuration.Observe(time.Since(startTime).Seconds())
	}()

	var data []byte
	err := retryWithBackoff(ctx, f.retry, f.logger.With().Str("url", rawURL).Logger(), func() error {
		var fetchErr error
		data, fetchErr = f.fetchOnce(ctx, rawURL)
		return fetchErr
	})
	if err != nil {
		outcome := string(classOf(err))
		if outcome == "" {
			outcome = "cancelled"
		}
		fetchesTotal.WithLabelValues(outcome).Inc()
		return nil, err
	}

	fetchesTotal.WithLabelValues("success").Inc()
	return data, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "image/*")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, ErrorClass: ErrorClassTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, discardLimit))
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, ErrorClass: ErrorClassStatus}
	}

	// Absent content type is trusted
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !isImageContentType(contentType) {
		io.Copy(io.Discard, io.LimitReader(resp.Body, discardLimit))
		return nil, &FetchError{
			URL:         rawURL,
			StatusCode:  resp.StatusCode,
			ContentType: contentType,
			ErrorClass:  ErrorClassContentType,
		}
	}

	body := io.Reader(resp.Body)
	if f.maxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBodyBytes+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, ErrorClass: ErrorClassTransport, Err: err}
	}

	if f.maxBodyBytes > 0 && int64(len(data)) > f.maxBodyBytes {
		return nil, &FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassTooLarge,
			Err:        fmt.Errorf("body exceeds %d bytes", f.maxBodyBytes),
		}
	}

	if len(data) == 0 {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, ErrorClass: ErrorClassEmptyBody}
	}

	return data, nil
}

func isImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}
