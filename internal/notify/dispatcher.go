package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/closure-relay-service/internal/domain"
	"github.com/couchcryptid/closure-relay-service/internal/observability"
)

const (
	// defaultSpacing is the minimum gap between successive group dispatches,
	// independent of per-destination retry backoff.
	defaultSpacing = time.Second

	maxAttempts    = 3
	defaultBackoff = time.Second
)

// DeliveryResult reports the outcome of one destination delivery.
type DeliveryResult struct {
	Type     string
	URL      string
	Attempts int
	Err      error
}

// outcome classifies one delivery attempt.
type outcome struct {
	success    bool
	retryable  bool
	retryAfter time.Duration
}

// retryPolicy is the shared bounded retry/backoff loop, parameterized by a
// destination-specific status classifier.
type retryPolicy struct {
	maxAttempts    int
	defaultBackoff time.Duration
	classify       func(status int, body []byte) outcome
}

// discordPolicy: success is an explicit 204; 429 carries a retry_after in
// seconds and is retried; anything else is terminal.
var discordPolicy = retryPolicy{
	maxAttempts:    maxAttempts,
	defaultBackoff: defaultBackoff,
	classify: func(status int, body []byte) outcome {
		switch {
		case status == http.StatusNoContent:
			return outcome{success: true}
		case status == http.StatusTooManyRequests:
			return outcome{retryable: true, retryAfter: parseRetryAfter(body)}
		default:
			return outcome{}
		}
	},
}

// slackPolicy: any 2xx is success; failures are never retried.
var slackPolicy = retryPolicy{
	maxAttempts:    1,
	defaultBackoff: defaultBackoff,
	classify: func(status int, _ []byte) outcome {
		return outcome{success: status >= 200 && status < 300}
	},
}

// parseRetryAfter extracts the retry_after seconds from a rate-limit body,
// defaulting to one second. Discord sends fractional seconds.
func parseRetryAfter(body []byte) time.Duration {
	var payload struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.RetryAfter <= 0 {
		return defaultBackoff
	}
	return time.Duration(payload.RetryAfter * float64(time.Second))
}

// Dispatcher delivers rendered notifications to a group's webhook
// destinations with rate-limit-aware retry and inter-group spacing.
type Dispatcher struct {
	renderer   *Renderer
	httpClient *http.Client
	clock      clockwork.Clock
	spacing    time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewDispatcher creates a Dispatcher. A spacing of zero disables the
// inter-group delay (used by tests).
func NewDispatcher(renderer *Renderer, httpClient *http.Client, clock clockwork.Clock, spacing time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Dispatcher{
		renderer:   renderer,
		httpClient: httpClient,
		clock:      clock,
		spacing:    spacing,
		logger:     logger,
		metrics:    metrics,
	}
}

// DefaultSpacing is the production inter-group dispatch delay.
func DefaultSpacing() time.Duration { return defaultSpacing }

// Dispatch renders and delivers one notification group to every destination
// of its region. The spacing delay runs before delivery so back-to-back
// groups never trip downstream rate limits. Delivery failures are logged and
// reported in the results; they never roll back tracking state.
func (d *Dispatcher) Dispatch(ctx context.Context, g domain.NotificationGroup) []DeliveryResult {
	if len(g.Closures) == 0 {
		return nil
	}

	if !d.sleep(ctx, d.spacing) {
		return nil
	}

	start := d.clock.Now()
	results := make([]DeliveryResult, 0, len(g.Region.Webhooks))

	for _, hook := range g.Region.Webhooks {
		var payload any
		var policy retryPolicy

		switch hook.Type {
		case "discord":
			payload = d.renderer.RenderDiscord(g)
			policy = discordPolicy
		case "slack":
			payload = d.renderer.RenderSlack(g)
			policy = slackPolicy
		default:
			d.logger.Warn("unknown webhook type", "type", hook.Type, "region", g.Region.Name)
			continue
		}

		d.logger.Info("sending closure notification",
			"type", hook.Type,
			"region", g.Region.Name,
			"closures", len(g.Closures),
		)

		res := d.deliver(ctx, hook.URL, payload, policy)
		res.Type = hook.Type

		outcomeLabel := "success"
		if res.Err != nil {
			outcomeLabel = "failure"
			d.logger.Error("webhook delivery failed",
				"type", hook.Type,
				"region", g.Region.Name,
				"attempts", res.Attempts,
				"error", res.Err,
			)
		}
		if d.metrics != nil {
			d.metrics.NotificationsSent.WithLabelValues(hook.Type, outcomeLabel).Inc()
		}
		results = append(results, res)
	}

	if d.metrics != nil {
		d.metrics.DispatchDuration.Observe(d.clock.Since(start).Seconds())
	}
	return results
}

// deliver POSTs the payload, retrying per the policy. The policy's backoff
// waits run on the dispatcher clock so shutdown contexts abandon in-flight
// retries instead of blocking.
func (d *Dispatcher) deliver(ctx context.Context, hookURL string, payload any, policy retryPolicy) DeliveryResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return DeliveryResult{URL: hookURL, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	res := DeliveryResult{URL: hookURL}
	for attempt := 1; attempt <= policy.maxAttempts; attempt++ {
		res.Attempts = attempt

		status, respBody, err := d.post(ctx, hookURL, body)
		if err != nil {
			res.Err = err
			return res
		}

		o := policy.classify(status, respBody)
		if o.success {
			res.Err = nil
			return res
		}
		if !o.retryable || attempt == policy.maxAttempts {
			res.Err = fmt.Errorf("webhook request failed (status %d): %s", status, respBody)
			return res
		}

		wait := o.retryAfter
		if wait <= 0 {
			wait = policy.defaultBackoff
		}
		d.logger.Warn("webhook rate limited, backing off",
			"retry_after", wait,
			"attempt", attempt,
			"max_attempts", policy.maxAttempts,
		)
		if d.metrics != nil {
			d.metrics.NotificationRetries.Inc()
		}
		if !d.sleep(ctx, wait) {
			res.Err = ctx.Err()
			return res
		}
	}
	return res
}

func (d *Dispatcher) post(ctx context.Context, hookURL string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hookURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, respBody, nil
}

// sleep waits on the dispatcher clock, returning false when the context is
// cancelled first.
func (d *Dispatcher) sleep(ctx context.Context, dur time.Duration) bool {
	if dur <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-d.clock.After(dur):
		return true
	}
}
