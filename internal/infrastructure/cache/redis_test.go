package cache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/xsist-conector/internal/infrastructure/cache"
	"github.com/jhoicas/xsist-conector/pkg/config"
)

func TestNewRedisClient_SinURLDevuelveNil(t *testing.T) {
	client, err := cache.NewRedisClient(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRedisClient_URLInvalida(t *testing.T) {
	_, err := cache.NewRedisClient(context.Background(), config.RedisConfig{URL: "://no-url"})
	assert.Error(t, err)
}

func TestDocumentCache_SinClienteEsNoOp(t *testing.T) {
	c := cache.NewDocumentCache(nil, 0)
	ctx := context.Background()

	assert.False(t, c.Enabled())
	require.NoError(t, c.Set(ctx, "NFE", "123", "<a/>"))
	_, ok, err := c.Get(ctx, "NFE", "123")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(ctx, "NFE", "123"))
	assert.NoError(t, c.Health(ctx))

	var nilCache *cache.DocumentCache
	assert.False(t, nilCache.Enabled())
}
