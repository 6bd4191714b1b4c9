package reference

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock loader ---

type countingLoader struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (l *countingLoader) Load(_ context.Context) (domain.ReferenceStats, error) {
	n := l.calls.Add(1)
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if l.err != nil {
		return domain.ReferenceStats{}, l.err
	}
	return domain.ReferenceStats{MeanResponseTimeMin: float64(n), Rows: int(n)}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewProvider_StartupLoadsOnce(t *testing.T) {
	loader := &countingLoader{}
	p, err := NewProvider(context.Background(), domain.StatsModeStartup, loader, 0, clockwork.NewRealClock(), discardLogger())
	require.NoError(t, err)
	assert.Equal(t, int32(1), loader.calls.Load(), "startup mode should load eagerly")

	for range 3 {
		stats, err := p.Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1.0, stats.MeanResponseTimeMin)
	}
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestNewProvider_StartupFailureIsFatal(t *testing.T) {
	loader := &countingLoader{err: domain.ErrDataUnavailable}
	_, err := NewProvider(context.Background(), domain.StatsModeStartup, loader, 0, clockwork.NewRealClock(), discardLogger())
	require.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestNewProvider_RequestReloadsEveryCall(t *testing.T) {
	loader := &countingLoader{}
	p, err := NewProvider(context.Background(), domain.StatsModeRequest, loader, 0, clockwork.NewRealClock(), discardLogger())
	require.NoError(t, err)
	assert.Equal(t, int32(0), loader.calls.Load(), "request mode should load lazily")

	first, err := p.Stats(context.Background())
	require.NoError(t, err)
	second, err := p.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, first.MeanResponseTimeMin)
	assert.Equal(t, 2.0, second.MeanResponseTimeMin)
}

func TestNewProvider_UnknownMode(t *testing.T) {
	_, err := NewProvider(context.Background(), domain.StatsMode("weekly"), &countingLoader{}, 0, clockwork.NewRealClock(), discardLogger())
	require.Error(t, err)
}

func TestTTLCache_ExpiresAfterTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	loader := &countingLoader{}
	cache := NewTTLCache(loader, time.Minute, clock, discardLogger())

	s1, err := cache.Stats(context.Background())
	require.NoError(t, err)
	clock.Advance(59 * time.Second)
	s2, err := cache.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, s1, s2)
	assert.Equal(t, int32(1), loader.calls.Load())

	clock.Advance(time.Second)
	s3, err := cache.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, s3.MeanResponseTimeMin)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestTTLCache_FailedRefreshIsNotCached(t *testing.T) {
	loader := &countingLoader{err: errors.New("disk gone")}
	cache := NewTTLCache(loader, time.Minute, clockwork.NewFakeClock(), discardLogger())

	_, err := cache.Stats(context.Background())
	require.Error(t, err)

	loader.err = nil
	stats, err := cache.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Rows)
}

func TestTTLCache_ConcurrentCallersShareReload(t *testing.T) {
	loader := &countingLoader{delay: 50 * time.Millisecond}
	cache := NewTTLCache(loader, time.Minute, clockwork.NewFakeClock(), discardLogger())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Stats(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), loader.calls.Load())
}
