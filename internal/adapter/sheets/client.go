package sheets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/wastewater-dashboard/internal/domain"
	"github.com/couchcryptid/wastewater-dashboard/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second

	// maxBodyBytes bounds a sheet download; the published tabs are well under this.
	maxBodyBytes = 32 << 20
)

// Client fetches a published Google Sheets tab as CSV.
type Client struct {
	source     string
	url        string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a fetcher for one dataset. source names the dataset in
// errors and metrics; retries is the number of extra attempts after a
// transient failure.
func NewClient(source, url string, timeout time.Duration, retries int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		source: source,
		url:    url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retries: retries,
		backoff: initialBackoff,
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch downloads and parses the sheet. Transient failures (network errors,
// 5xx and 429 responses) are retried with exponential backoff; any final
// failure is returned as a *domain.FetchError.
func (c *Client) Fetch(ctx context.Context) (domain.Table, error) {
	backoff := c.backoff
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying sheet fetch", "source", c.source, "attempt", attempt, "backoff", backoff, "error", lastErr)
			if !retry.SleepWithContext(ctx, backoff) {
				break
			}
			backoff = retry.NextBackoff(backoff, maxBackoff)
		}

		table, err := c.fetchOnce(ctx)
		if err == nil {
			c.metrics.FetchRequests.WithLabelValues(c.source, "success").Inc()
			return table, nil
		}
		lastErr = err

		var t *transientError
		if !errors.As(err, &t) || ctx.Err() != nil {
			break
		}
	}

	c.metrics.FetchRequests.WithLabelValues(c.source, "error").Inc()
	return domain.Table{}, &domain.FetchError{Source: c.source, Err: lastErr}
}

func (c *Client) fetchOnce(ctx context.Context) (domain.Table, error) {
	start := time.Now()
	defer func() {
		c.metrics.FetchDuration.WithLabelValues(c.source).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return domain.Table{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Table{}, &transientError{err: fmt.Errorf("sheet request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("sheet server error: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return domain.Table{}, &transientError{err: err}
		}
		return domain.Table{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.Table{}, &transientError{err: fmt.Errorf("read body: %w", err)}
	}

	// An unpublished or moved sheet answers 200 with a sign-in HTML page.
	trimmed := bytes.TrimSpace(body)
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") || bytes.HasPrefix(trimmed, []byte("<")) {
		return domain.Table{}, fmt.Errorf("sheet returned HTML instead of CSV: %s", snippet(trimmed))
	}

	table, err := ParseCSV(bytes.NewReader(body))
	if err != nil {
		return domain.Table{}, err
	}
	c.logger.Debug("sheet fetched", "source", c.source, "rows", len(table.Rows), "bytes", len(body), "duration", time.Since(start))
	return table, nil
}

// transientError marks failures worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func snippet(b []byte) string {
	const limit = 120
	if len(b) > limit {
		b = b[:limit]
	}
	return fmt.Sprintf("%q", b)
}
