package notify_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/closure-relay-service/internal/domain"
	"github.com/couchcryptid/closure-relay-service/internal/notify"
	"github.com/couchcryptid/closure-relay-service/internal/observability"
)

func dispatchGroup(hooks ...domain.Webhook) domain.NotificationGroup {
	return domain.NotificationGroup{
		Region:   domain.Region{Name: "Illinois", Webhooks: hooks},
		Closures: []domain.EnrichedClosure{enriched("c1")},
	}
}

func newTestDispatcher(clock clockwork.Clock, spacing time.Duration) *notify.Dispatcher {
	return notify.NewDispatcher(testRenderer(), nil, clock, spacing, slog.Default(), observability.NewMetricsForTesting())
}

func TestDispatchDiscordSuccess(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := newTestDispatcher(nil, 0)
	results := d.Dispatch(context.Background(), dispatchGroup(domain.Webhook{Type: "discord", URL: srv.URL}))

	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Attempts)
	assert.Equal(t, int64(1), calls.Load())
}

func TestDispatchDiscordHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"retry_after": 2.0}`)) //nolint:errcheck
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	fc := clockwork.NewFakeClock()
	d := newTestDispatcher(fc, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan []notify.DeliveryResult, 1)
	go func() {
		done <- d.Dispatch(ctx, dispatchGroup(domain.Webhook{Type: "discord", URL: srv.URL}))
	}()

	// Two rate-limited attempts, each waiting the advertised two seconds.
	for i := 0; i < 2; i++ {
		require.NoError(t, fc.BlockUntilContext(ctx, 1))
		fc.Advance(2 * time.Second)
	}

	results := <-done
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 3, results[0].Attempts)
	assert.Equal(t, int64(3), calls.Load())
}

func TestDispatchDiscordGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"retry_after": 0.001}`)) //nolint:errcheck
	}))
	defer srv.Close()

	d := newTestDispatcher(nil, 0)
	results := d.Dispatch(context.Background(), dispatchGroup(domain.Webhook{Type: "discord", URL: srv.URL}))

	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.Equal(t, 3, results[0].Attempts)
	assert.Equal(t, int64(3), calls.Load())
}

func TestDispatchDiscordTerminalStatusNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	d := newTestDispatcher(nil, 0)
	results := d.Dispatch(context.Background(), dispatchGroup(domain.Webhook{Type: "discord", URL: srv.URL}))

	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestDispatchSlackNeverRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	d := newTestDispatcher(nil, 0)
	results := d.Dispatch(context.Background(), dispatchGroup(domain.Webhook{Type: "slack", URL: srv.URL}))

	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Equal(t, 1, results[0].Attempts)
	assert.Equal(t, int64(1), calls.Load())
}

func TestDispatchSlackAccepts200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	d := newTestDispatcher(nil, 0)
	results := d.Dispatch(context.Background(), dispatchGroup(domain.Webhook{Type: "slack", URL: srv.URL}))

	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
}

func TestDispatchSkipsUnknownWebhookType(t *testing.T) {
	d := newTestDispatcher(nil, 0)
	results := d.Dispatch(context.Background(), dispatchGroup(domain.Webhook{Type: "teams", URL: "https://example.com"}))
	assert.Empty(t, results)
}

func TestDispatchSpacingDelaysDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	fc := clockwork.NewFakeClock()
	d := newTestDispatcher(fc, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan []notify.DeliveryResult, 1)
	go func() {
		done <- d.Dispatch(ctx, dispatchGroup(domain.Webhook{Type: "discord", URL: srv.URL}))
	}()

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	select {
	case <-done:
		t.Fatal("dispatch finished before the spacing delay elapsed")
	case <-time.After(50 * time.Millisecond):
	}

	fc.Advance(time.Second)
	results := <-done
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
}

func TestDispatchCancelledContextAbandonsSpacing(t *testing.T) {
	fc := clockwork.NewFakeClock()
	d := newTestDispatcher(fc, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := d.Dispatch(ctx, dispatchGroup(domain.Webhook{Type: "discord", URL: "https://example.com"}))
	assert.Nil(t, results)
}

func TestDispatchEmptyGroup(t *testing.T) {
	d := newTestDispatcher(nil, 0)
	assert.Nil(t, d.Dispatch(context.Background(), domain.NotificationGroup{}))
}
