//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"parcel-dispatch/internal/cache"
	"parcel-dispatch/internal/config"
)

func startRedis(t *testing.T) config.Redis {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)
	return config.Redis{Addr: endpoint}
}

func TestLocationCache_RoundTrip(t *testing.T) {
	cfg := startRedis(t)
	ctx := context.Background()

	rdb, err := cache.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	c := cache.NewLocationCache(rdb, time.Minute)

	got, err := c.Get(ctx, 7)
	require.NoError(t, err)
	require.Nil(t, got)

	speed := 32.5
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, c.Set(ctx, cache.Location{RiderID: 7, Lat: 9.05, Lng: 7.49, Speed: &speed, UpdatedAt: at}))
	require.NoError(t, c.Set(ctx, cache.Location{RiderID: 7, Lat: 9.06, Lng: 7.48, UpdatedAt: at.Add(time.Second)}))

	got, err = c.Get(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 9.06, got.Lat)
	require.Nil(t, got.Speed)
	require.True(t, got.UpdatedAt.Equal(at.Add(time.Second)))

	ttl, err := rdb.TTL(ctx, "rider:location:7").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	require.NoError(t, c.Delete(ctx, 7))
	got, err = c.Get(ctx, 7)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := cache.Connect(ctx, config.Redis{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}
