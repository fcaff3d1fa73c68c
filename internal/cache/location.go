package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefixLocation = "rider:location:"

// DefaultLocationTTL bounds how long a position is served after the rider stops reporting.
const DefaultLocationTTL = 10 * time.Minute

// Location is the last reported rider position.
type Location struct {
	RiderID   int64     `json:"riderId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Heading   *float64  `json:"heading,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LocationCache stores rider positions in Redis, last writer wins.
type LocationCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewLocationCache creates a new LocationCache.
func NewLocationCache(rdb redis.Cmdable, ttl time.Duration) *LocationCache {
	if ttl <= 0 {
		ttl = DefaultLocationTTL
	}
	return &LocationCache{rdb: rdb, ttl: ttl}
}

func locationKey(riderID int64) string {
	return keyPrefixLocation + strconv.FormatInt(riderID, 10)
}

// Set stores loc for its rider.
func (c *LocationCache) Set(ctx context.Context, loc Location) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("marshal rider location: %w", err)
	}
	if err := c.rdb.Set(ctx, locationKey(loc.RiderID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set rider %d location: %w", loc.RiderID, err)
	}
	return nil
}

// Get returns the cached position, nil if none is cached.
func (c *LocationCache) Get(ctx context.Context, riderID int64) (*Location, error) {
	raw, err := c.rdb.Get(ctx, locationKey(riderID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get rider %d location: %w", riderID, err)
	}
	var loc Location
	if err := json.Unmarshal(raw, &loc); err != nil {
		return nil, fmt.Errorf("decode rider %d location: %w", riderID, err)
	}
	return &loc, nil
}

// Delete drops the cached position, used when a rider goes offline.
func (c *LocationCache) Delete(ctx context.Context, riderID int64) error {
	if err := c.rdb.Del(ctx, locationKey(riderID)).Err(); err != nil {
		return fmt.Errorf("delete rider %d location: %w", riderID, err)
	}
	return nil
}
