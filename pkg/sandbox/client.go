package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/stackflow-io/stackflow/pkg/observability"
)

// HTTPClientConfig configures the client for the sandbox runtime service
type HTTPClientConfig struct {
	Endpoint         string
	RequestTimeout   time.Duration
	MaxRetries       int
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
}

// HTTPClient talks to the sandbox runtime over HTTP. Transport failures are
// retried with exponential backoff; repeated failures trip a circuit
// breaker so a dead runtime fails fast instead of stacking timeouts.
type HTTPClient struct {
	config  HTTPClientConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  observability.Logger
	metrics observability.MetricsClient
}

// NewHTTPClient creates a sandbox runtime client
func NewHTTPClient(config HTTPClientConfig, logger observability.Logger, metrics observability.MetricsClient) (*HTTPClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("sandbox endpoint is required")
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 60 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 2
	}
	if config.BreakerThreshold == 0 {
		config.BreakerThreshold = 5
	}
	if config.BreakerCooldown <= 0 {
		config.BreakerCooldown = 30 * time.Second
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}

	logger = logger.WithPrefix("sandbox")
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "sandbox-runtime",
		Timeout: config.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", map[string]interface{}{
				"from": from.String(),
				"to":   to.String(),
			})
		},
	})

	return &HTTPClient{
		config:  config,
		client:  &http.Client{Timeout: config.RequestTimeout},
		breaker: breaker,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Execute runs one connector operation in the runtime. A response with
// Success=false is returned as-is; only transport-level problems are
// errors.
func (c *HTTPClient) Execute(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	defer func() { c.metrics.RecordLatency("sandbox.execute", time.Since(start)) }()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sandbox request: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, body)
	})
	if err != nil {
		c.metrics.RecordCounter("sandbox.execute.error", 1, nil)
		return nil, err
	}
	return result.(*Response), nil
}

// post sends the request, retrying transport errors. HTTP-level responses,
// including runtime failures, are never retried: connector code may have
// side effects.
func (c *HTTPClient) post(ctx context.Context, body []byte) (*Response, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(), uint64(c.config.MaxRetries)), ctx)

	var resp *Response
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.config.Endpoint+"/v1/execute", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		httpResp, err := c.client.Do(httpReq)
		if err != nil {
			c.logger.Warn("sandbox request failed, will retry", map[string]interface{}{
				"error": err.Error(),
			})
			return err
		}
		defer func() { _ = httpResp.Body.Close() }()

		data, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to read sandbox response: %w", err))
		}
		if httpResp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("sandbox runtime returned status %d: %s",
				httpResp.StatusCode, truncate(string(data), 200)))
		}

		var parsed Response
		if err := json.Unmarshal(data, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("malformed sandbox response: %w", err))
		}
		resp = &parsed
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("sandbox execution failed: %w", err)
	}
	return resp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
