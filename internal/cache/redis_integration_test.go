//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/helixir/collab-graph-service/internal/catalog"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func TestRedisMatchCache_RoundTrip(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	c, err := NewRedisMatchCache(ctx, RedisConfig{Addr: addr, KeyPrefix: "it:", TTL: time.Minute})
	require.NoError(t, err)
	defer c.Close()

	_, ok, err := c.Get(ctx, "University of Utah")
	require.NoError(t, err)
	assert.False(t, ok)

	match := catalog.InstitutionMatch{ID: "I223532165", DisplayName: "University of Utah", CountryCode: "US", Type: "education"}
	require.NoError(t, c.Set(ctx, "University of Utah", match))

	got, ok, err := c.Get(ctx, "  university of  UTAH")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, match, got)

	ttl, err := c.rdb.TTL(ctx, "it:university of utah").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisMatchCache_CorruptValue(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	c, err := NewRedisMatchCache(ctx, RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.rdb.Set(ctx, c.key("Broken"), "{not json", 0).Err())

	_, ok, err := c.Get(ctx, "Broken")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "decoding cached match")
}
