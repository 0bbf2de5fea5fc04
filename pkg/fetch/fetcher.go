package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/vincentventalon/docuprocess/pkg/observability"
)

const (
	// DefaultMaxSize is the largest PDF the service will accept (10MB).
	DefaultMaxSize = 10 * 1024 * 1024
	// DefaultTimeout bounds the whole remote fetch.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects bounds redirect chains.
	DefaultMaxRedirects = 5
)

var pdfMagic = []byte("%PDF")

// Config tunes the remote fetcher. Zero values fall back to the defaults.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	MaxSize      int64
}

// Fetcher downloads PDF documents from validated remote URLs.
type Fetcher struct {
	guard   *Guard
	client  *http.Client
	maxSize int64
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewFetcher creates a Fetcher that validates every URL through guard
// before dialing. metrics may be nil.
func NewFetcher(guard *Guard, cfg Config, logger *observability.Logger, metrics *observability.Metrics) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	maxRedirects := cfg.MaxRedirects

	return &Fetcher{
		guard: guard,
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				// Redirect targets get the same treatment as the original URL,
				// including the https-only rule.
				if req.URL.Scheme != "https" {
					return fmt.Errorf("redirect to non-https URL %q refused", req.URL.Redacted())
				}
				if req.URL.Hostname() != "" {
					return guard.checkHost(req.Context(), req.URL.Hostname())
				}
				return nil
			},
		},
		maxSize: cfg.MaxSize,
		logger:  logger,
		metrics: metrics,
	}
}

// FetchPDF validates the URL, downloads the document, and verifies it is a
// PDF within the size limit. All failures carry a machine-readable code.
func (f *Fetcher) FetchPDF(ctx context.Context, rawURL string) ([]byte, error) {
	start := time.Now()
	data, err := f.fetchPDF(ctx, rawURL)
	if f.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		f.metrics.FetchesTotal.WithLabelValues(status).Inc()
		f.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}
	return data, err
}

func (f *Fetcher) fetchPDF(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.guard.ValidateDocumentURL(ctx, rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, wrapError(CodeInvalidURL, "Invalid URL format", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, wrapError(CodeFetchTimeout, "Timeout fetching PDF from URL", err)
		}
		f.logger.WithError(err).Warnf("fetch failed for remote document")
		return nil, wrapError(CodeFetchFailed, "Failed to fetch PDF from URL", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newError(CodeFetchFailed, fmt.Sprintf("HTTP error %d fetching PDF", resp.StatusCode))
	}

	if resp.ContentLength > f.maxSize {
		return nil, f.tooLarge()
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		if isTimeout(err) {
			return nil, wrapError(CodeFetchTimeout, "Timeout fetching PDF from URL", err)
		}
		return nil, wrapError(CodeFetchFailed, "Failed to fetch PDF from URL", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, f.tooLarge()
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, newError(CodeInvalidPDF, "URL does not point to a valid PDF file")
	}
	return data, nil
}

func (f *Fetcher) tooLarge() *Error {
	return newError(CodeFileTooLarge,
		fmt.Sprintf("PDF exceeds maximum size of %dMB", f.maxSize/(1024*1024)))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
