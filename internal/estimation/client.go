package estimation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/carconfig/internal/domain"
	"github.com/punchamoorthee/carconfig/internal/models"
	"go.uber.org/zap"
)

var (
	estimateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "carconfig_estimation_request_duration_seconds",
		Help:    "Latency of calls to the estimation service, retries included",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})
	estimateFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carconfig_estimation_failures_total",
		Help: "Estimation calls that exhausted their retries",
	})
)

// Client calls the estimation service over HTTP.
type Client struct {
	baseURL    string
	http       *http.Client
	maxRetries uint
	logger     *zap.Logger
}

// NewClient builds a client whose every attempt is bounded by timeout.
// maxRetries is the number of attempts after the first one.
func NewClient(baseURL string, timeout time.Duration, maxRetries uint, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Estimate returns the estimation in days. Any failure after retries is
// reported as domain.ErrEstimationUnavailable.
func (c *Client) Estimate(ctx context.Context, accessories []string, goodClient bool) (int, error) {
	timer := prometheus.NewTimer(estimateLatency)
	defer timer.ObserveDuration()

	if accessories == nil {
		accessories = []string{}
	}
	body, err := json.Marshal(models.EstimateRequest{Accessories: accessories, GoodClient: goodClient})
	if err != nil {
		return 0, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second

	days, err := backoff.Retry(ctx, func() (int, error) {
		return c.call(ctx, body)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("estimation call failed, retrying", zap.Error(err), zap.Duration("backoff", next))
		}),
	)
	if err != nil {
		estimateFailures.Inc()
		return 0, fmt.Errorf("%w: %v", domain.ErrEstimationUnavailable, err)
	}
	return days, nil
}

func (c *Client) call(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/estimate", bytes.NewReader(body))
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, backoff.Permanent(ctx.Err())
		}
		return 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return 0, fmt.Errorf("estimation service returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return 0, backoff.Permanent(fmt.Errorf("estimation service returned %d", resp.StatusCode))
	}

	var out models.EstimateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, backoff.Permanent(fmt.Errorf("decode estimation: %w", err))
	}
	return out.Estimation, nil
}
