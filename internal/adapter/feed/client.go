// Package feed polls the upstream severe-weather event API.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-alert-service/internal/domain"
	"github.com/couchcryptid/storm-alert-service/internal/observability"
)

// maxBodyBytes bounds a single feed response.
const maxBodyBytes = 32 << 20

// Client fetches event batches from the feed API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a feed client for baseURL, e.g. https://sigtor.org/v1/events.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch returns the events ingested after since (microseconds). since=0
// asks for everything the feed still holds. Records that fail to decode are
// logged and returned in the batch's Skipped list.
func (c *Client) Fetch(ctx context.Context, since int64) (domain.Batch, error) {
	u := c.baseURL + "/" + strconv.FormatInt(since, 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.FeedFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.Batch{}, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Batch{}, fmt.Errorf("feed API error: status %d: %s", resp.StatusCode, body)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.Batch{}, fmt.Errorf("read response: %w", err)
	}

	batch, err := domain.DecodeBatch(data)
	if err != nil {
		return domain.Batch{}, err
	}
	for _, r := range batch.Skipped {
		c.logger.Warn("feed record skipped", "index", r.Index, "ingest_ts", r.IngestTS, "error", r.Err)
	}
	c.metrics.EventsSkipped.Add(float64(len(batch.Skipped)))
	return batch, nil
}
