package reference

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// Provider supplies the reference statistics used to fill optional fields.
type Provider interface {
	Stats(ctx context.Context) (domain.ReferenceStats, error)
}

// Loader computes fresh reference statistics.
type Loader interface {
	Load(ctx context.Context) (domain.ReferenceStats, error)
}

// NewProvider builds the provider for mode. domain.StatsModeStartup loads immediately and
// returns the load error, so a bad dataset fails startup.
func NewProvider(ctx context.Context, mode domain.StatsMode, loader Loader, ttl time.Duration, clock clockwork.Clock, logger *slog.Logger) (Provider, error) {
	switch mode {
	case domain.StatsModeStartup:
		stats, err := loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("reference statistics loaded", "rows", stats.Rows,
			"mean_time_to_extinguish_min", stats.MeanTimeToExtinguishMin,
			"mean_response_time_min", stats.MeanResponseTimeMin,
			"mean_number_of_fire_extinguishers", stats.MeanFireExtinguishers)
		return Static(stats), nil
	case domain.StatsModeRequest:
		return PerRequest{loader: loader}, nil
	case domain.StatsModeTTL:
		return NewTTLCache(loader, ttl, clock, logger), nil
	default:
		return nil, fmt.Errorf("unknown stats mode %q", mode)
	}
}

// Static always returns the same statistics.
type Static domain.ReferenceStats

func (s Static) Stats(_ context.Context) (domain.ReferenceStats, error) {
	return domain.ReferenceStats(s), nil
}

// PerRequest recomputes statistics from the dataset on every call.
type PerRequest struct {
	loader Loader
}

func (p PerRequest) Stats(ctx context.Context) (domain.ReferenceStats, error) {
	return p.loader.Load(ctx)
}

// TTLCache wraps a Loader with a single cached result that expires after ttl.
// Concurrent callers that find the cache stale share one reload.
type TTLCache struct {
	loader Loader
	ttl    time.Duration
	clock  clockwork.Clock
	logger *slog.Logger

	mu      sync.RWMutex
	cached  domain.ReferenceStats
	expires time.Time
	valid   bool

	group singleflight.Group
}

// NewTTLCache creates a cache decorator around loader. Nothing is loaded
// until the first call to Stats.
func NewTTLCache(loader Loader, ttl time.Duration, clock clockwork.Clock, logger *slog.Logger) *TTLCache {
	return &TTLCache{
		loader: loader,
		ttl:    ttl,
		clock:  clock,
		logger: logger,
	}
}

func (c *TTLCache) Stats(ctx context.Context) (domain.ReferenceStats, error) {
	if stats, ok := c.get(); ok {
		return stats, nil
	}

	v, err, _ := c.group.Do("stats", func() (any, error) {
		// Another caller may have refreshed while we waited on the group.
		if stats, ok := c.get(); ok {
			return stats, nil
		}
		stats, err := c.loader.Load(ctx)
		if err != nil {
			return domain.ReferenceStats{}, err
		}
		c.put(stats)
		c.logger.Debug("reference statistics refreshed", "rows", stats.Rows, "ttl", c.ttl)
		return stats, nil
	})
	if err != nil {
		c.logger.Warn("reference statistics refresh failed", "error", err)
		return domain.ReferenceStats{}, err
	}
	return v.(domain.ReferenceStats), nil
}

func (c *TTLCache) get() (domain.ReferenceStats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid || !c.clock.Now().Before(c.expires) {
		return domain.ReferenceStats{}, false
	}
	return c.cached, true
}

func (c *TTLCache) put(stats domain.ReferenceStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cached = stats
	c.expires = c.clock.Now().Add(c.ttl)
	c.valid = true
}
