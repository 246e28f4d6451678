// Package cache guarda por un tiempo corto los XML ya recuperados, para que
// una segunda descarga de la misma chave no vuelva a consultar la SEFAZ.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/xsist-conector/pkg/config"
)

const (
	keyPrefix  = "xsist:xml:"
	defaultTTL = time.Hour
)

// NewRedisClient crea el cliente a partir de la configuración.
// Devuelve nil, nil si REDIS_URL está vacío (caché deshabilitada).
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// DocumentCache XML por (tipo, chave). Con cliente nil todas las operaciones
// son no-op y Get siempre es miss.
type DocumentCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDocumentCache ttl <= 0 usa una hora.
func NewDocumentCache(client *redis.Client, ttl time.Duration) *DocumentCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &DocumentCache{client: client, ttl: ttl}
}

// Enabled indica si hay Redis detrás.
func (c *DocumentCache) Enabled() bool { return c != nil && c.client != nil }

func cacheKey(family, key string) string { return keyPrefix + family + ":" + key }

// Get devuelve el XML guardado; ok=false si no está.
func (c *DocumentCache) Get(ctx context.Context, family, key string) (string, bool, error) {
	if !c.Enabled() {
		return "", false, nil
	}
	val, err := c.client.Get(ctx, cacheKey(family, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get: %w", err)
	}
	return val, true, nil
}

// Set guarda el XML con el TTL configurado.
func (c *DocumentCache) Set(ctx context.Context, family, key, xml string) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.client.Set(ctx, cacheKey(family, key), xml, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate borra la entrada (por ejemplo tras cambiar de certificado).
func (c *DocumentCache) Invalidate(ctx context.Context, family, key string) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.client.Del(ctx, cacheKey(family, key)).Err(); err != nil {
		return fmt.Errorf("cache del: %w", err)
	}
	return nil
}

// Health ping a Redis; nil si la caché está deshabilitada.
func (c *DocumentCache) Health(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}
