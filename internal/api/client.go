package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tickflow/config"
	"tickflow/logger"
	"tickflow/models"
)

// Client talks to the market-data backend over REST. Every request
// carries a bounded timeout; timeouts and server errors are retryable
// failures, surfaced as StatusError or wrapped net errors so callers can
// decide whether to retry.
type Client struct {
	baseURL string
	http    *http.Client
	limit   int
	log     *logger.Log
}

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Status int
	Path   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d for %s", e.Status, e.Path)
}

// IsRetryable reports whether the error is a transient failure worth
// retrying: a timeout, a temporary network error, 429 or a 5xx status.
func IsRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status == http.StatusTooManyRequests || statusErr.Status >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func NewClient(cfg config.APIConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		limit:   cfg.HistoricalLimit,
		log:     logger.GetLogger(),
	}
}

// GetTicks fetches the historical tick window for a symbol. The limit
// falls back to the configured historical limit when non-positive.
func (c *Client) GetTicks(ctx context.Context, symbol string, limit int) ([]models.Tick, error) {
	if limit <= 0 {
		limit = c.limit
	}

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("limit", strconv.Itoa(limit))

	var history models.TickHistory
	if err := c.get(ctx, "/api/ticks", query, &history); err != nil {
		return nil, err
	}

	ticks := make([]models.Tick, 0, len(history.Ticks))
	for _, w := range history.Ticks {
		t := w.Tick(symbol)
		t.Source = models.SourceHistorical
		ticks = append(ticks, t)
	}
	return ticks, nil
}

// GetSymbols lists the symbols the backend serves.
func (c *Client) GetSymbols(ctx context.Context) ([]models.SymbolInfo, error) {
	var symbols []models.SymbolInfo
	if err := c.get(ctx, "/api/symbols", nil, &symbols); err != nil {
		return nil, err
	}
	return symbols, nil
}

// GetAlerts returns the backend's current alert list.
func (c *Client) GetAlerts(ctx context.Context) ([]models.Alert, error) {
	var alerts []models.Alert
	if err := c.get(ctx, "/api/alerts", nil, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// GetTimeseries fetches backend-bucketed statistics for a symbol.
func (c *Client) GetTimeseries(ctx context.Context, symbol string, tf models.Timeframe, limit int) (*models.Timeseries, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("timeframe", string(tf))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var series models.Timeseries
	if err := c.get(ctx, "/api/stats/timeseries", query, &series); err != nil {
		return nil, err
	}
	return &series, nil
}

// GetSpreadAnalytics returns the backend's spread analytics for a pair.
// The document is consumed opaquely, never recomputed locally.
func (c *Client) GetSpreadAnalytics(ctx context.Context, symbolA, symbolB string) (json.RawMessage, error) {
	return c.getRaw(ctx, "/api/spread-analytics", pairQuery(symbolA, symbolB))
}

// GetCorrelation returns the backend's correlation document for a pair.
func (c *Client) GetCorrelation(ctx context.Context, symbolA, symbolB string) (json.RawMessage, error) {
	return c.getRaw(ctx, "/api/correlation", pairQuery(symbolA, symbolB))
}

// GetHedgeRatio returns the backend's hedge ratio document for a pair.
func (c *Client) GetHedgeRatio(ctx context.Context, symbolA, symbolB string) (json.RawMessage, error) {
	return c.getRaw(ctx, "/api/hedge-ratio", pairQuery(symbolA, symbolB))
}

func pairQuery(symbolA, symbolB string) url.Values {
	query := url.Values{}
	query.Set("symbol_a", symbolA)
	query.Set("symbol_b", symbolB)
	return query
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	body, err := c.getRaw(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) getRaw(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Status: resp.StatusCode, Path: path}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", path, err)
	}

	c.log.WithComponent("api_client").WithFields(logger.Fields{
		"path":        path,
		"bytes":       len(body),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("backend request completed")

	return body, nil
}
