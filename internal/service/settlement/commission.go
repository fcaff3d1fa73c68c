package settlement

import (
	"context"
	"sync"
	"time"

	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/logx"
)

// CachedCommission keeps the last loaded commission for ttl.
// When a reload fails the previous value is served until a load succeeds.
type CachedCommission struct {
	source CommissionSource
	ttl    time.Duration
	logger logx.Logger
	now    func() time.Time

	mu       sync.Mutex
	value    domain.Commission
	loadedAt time.Time
	loaded   bool
}

// NewCachedCommission wraps source with a bounded cache.
func NewCachedCommission(source CommissionSource, ttl time.Duration, logger logx.Logger) *CachedCommission {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedCommission{source: source, ttl: ttl, logger: logger, now: time.Now}
}

// Commission implements CommissionSource.
func (c *CachedCommission) Commission(ctx context.Context) (domain.Commission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded && c.now().Sub(c.loadedAt) < c.ttl {
		return c.value, nil
	}
	v, err := c.source.Commission(ctx)
	if err != nil {
		if c.loaded {
			c.logger.Warn("commission reload failed, serving cached value", logx.Any("err", err))
			return c.value, nil
		}
		return domain.Commission{}, err
	}
	c.value, c.loadedAt, c.loaded = v, c.now(), true
	return v, nil
}
