package bufferpool

import (
	ristretto "github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"

	"coredb/page"
)

// PoolMetrics is the small observability surface a buffer pool instance
// exposes through Stats(). It is deliberately independent of the
// pin/dirty/LRU protocol: nothing about eviction correctness depends on
// it, only the reported hit ratio does.
type PoolMetrics interface {
	Touch(id page.ID)
	Ratio() float64
}

// ristrettoMetrics backs PoolMetrics with a ristretto cache used purely
// for its built-in Metrics() hit/miss counters. Every FetchPage touches
// it: a touch that finds the page id counts as a hit, one that misses
// counts as a miss and seeds the cache, giving Stats a real HitRate
// instead of a stubbed placeholder. ristretto applies Set asynchronously,
// so a touch soon after seeding can still count as a miss.
type ristrettoMetrics struct {
	cache *ristretto.Cache[int64, struct{}]
}

func newRistrettoMetrics(log *zap.SugaredLogger) PoolMetrics {
	cache, err := ristretto.NewCache(&ristretto.Config[int64, struct{}]{
		NumCounters: 1e4,
		MaxCost:     1 << 16,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		log.Warnw("buffer pool metrics disabled: ristretto cache init failed", "error", err)
		return noopMetrics{}
	}
	return &ristrettoMetrics{cache: cache}
}

func (m *ristrettoMetrics) Touch(id page.ID) {
	if _, found := m.cache.Get(int64(id)); !found {
		m.cache.Set(int64(id), struct{}{}, 1)
	}
}

func (m *ristrettoMetrics) Ratio() float64 {
	return m.cache.Metrics.Ratio()
}

type noopMetrics struct{}

func (noopMetrics) Touch(page.ID)  {}
func (noopMetrics) Ratio() float64 { return 0 }

// Stats is a snapshot of a buffer pool instance's occupancy and hit ratio.
type Stats struct {
	TotalPages  int
	PinnedPages int
	DirtyPages  int
	Capacity    int
	HitRate     float64
}
