package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/couchcryptid/fire-risk-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLoader struct {
	mu       sync.Mutex
	batches  [][]domain.AuditEvent
	failures int
	err      error
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return m.err
	}
	m.batches = append(m.batches, append([]domain.AuditEvent(nil), events...))
	return nil
}

func (m *mockLoader) sizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.batches))
	for i, b := range m.batches {
		out[i] = len(b)
	}
	return out
}

func (m *mockLoader) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, b := range m.batches {
		for _, e := range b {
			out = append(out, e.ID)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event(i int) domain.AuditEvent {
	return domain.AuditEvent{ID: fmt.Sprintf("pred-%d", i), Target: "Fire_Occurred", PredictedClass: "No"}
}

func zeroBackOff() backoff.BackOff { return &backoff.ZeroBackOff{} }

func start(t *testing.T, p *Publisher) {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
		<-errCh
	})
}

func TestPublisher_FlushesFullBatches(t *testing.T) {
	loader := &mockLoader{}
	metrics := observability.NewMetricsForTesting()
	p := New(loader, discardLogger(), metrics, Options{BatchSize: 3, FlushInterval: time.Hour, NewBackOff: zeroBackOff})
	start(t, p)

	for i := range 6 {
		p.Record(event(i))
	}

	require.Eventually(t, func() bool { return testutil.ToFloat64(metrics.AuditPublished) == 6 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{3, 3}, loader.sizes())
	assert.Equal(t, []string{"pred-0", "pred-1", "pred-2", "pred-3", "pred-4", "pred-5"}, loader.ids())
}

func TestPublisher_FlushesOnInterval(t *testing.T) {
	loader := &mockLoader{}
	p := New(loader, discardLogger(), observability.NewMetricsForTesting(),
		Options{BatchSize: 100, FlushInterval: 10 * time.Millisecond, NewBackOff: zeroBackOff})
	start(t, p)

	p.Record(event(1))

	require.Eventually(t, func() bool { return len(loader.sizes()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"pred-1"}, loader.ids())
}

func TestPublisher_ShutdownFlushesBuffered(t *testing.T) {
	loader := &mockLoader{}
	metrics := observability.NewMetricsForTesting()
	p := New(loader, discardLogger(), metrics, Options{BatchSize: 2, FlushInterval: time.Hour, NewBackOff: zeroBackOff})

	// Queue before the loop runs so everything is still buffered at shutdown.
	for i := range 5 {
		p.Record(event(i))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
	require.NoError(t, <-errCh)

	assert.Len(t, loader.ids(), 5)
	for _, n := range loader.sizes() {
		assert.LessOrEqual(t, n, 2)
	}
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.AuditRunning))

	p.Record(event(9))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuditDropped), "events after shutdown are dropped")
}

func TestPublisher_DropsWhenBufferFull(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	p := New(&mockLoader{}, discardLogger(), metrics, Options{BufferSize: 2, BatchSize: 10})

	// Run is not started, so nothing drains the buffer.
	p.Record(event(1))
	p.Record(event(2))
	p.Record(event(3))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuditDropped))
}

func TestPublisher_RetriesFailedBatch(t *testing.T) {
	loader := &mockLoader{failures: 2, err: errors.New("broker unavailable")}
	metrics := observability.NewMetricsForTesting()
	p := New(loader, discardLogger(), metrics, Options{BatchSize: 1, FlushInterval: time.Hour, MaxRetries: 3, NewBackOff: zeroBackOff})
	start(t, p)

	p.Record(event(1))

	require.Eventually(t, func() bool { return testutil.ToFloat64(metrics.AuditPublished) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.AuditPublishErrors))
	assert.Equal(t, []string{"pred-1"}, loader.ids())
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.AuditDropped))
}

func TestPublisher_DropsBatchAfterRetriesExhausted(t *testing.T) {
	loader := &mockLoader{failures: 100, err: errors.New("broker unavailable")}
	metrics := observability.NewMetricsForTesting()
	p := New(loader, discardLogger(), metrics, Options{BatchSize: 2, FlushInterval: time.Hour, MaxRetries: 2, NewBackOff: zeroBackOff})
	start(t, p)

	p.Record(event(1))
	p.Record(event(2))

	require.Eventually(t, func() bool { return testutil.ToFloat64(metrics.AuditDropped) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.AuditPublishErrors), "one attempt plus two retries")
	assert.Empty(t, loader.ids())
}

func TestPublisher_CancelAbandonsBuffer(t *testing.T) {
	loader := &mockLoader{}
	p := New(loader, discardLogger(), observability.NewMetricsForTesting(), Options{BatchSize: 10, FlushInterval: time.Hour})
	p.Record(event(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx))
	assert.Empty(t, loader.ids())
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop{}.Record(event(1)) })
}
