package cache

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/vigilguard/vigil/pkg/common"
)

// Cache wraps the shared redis client plus a set of named in-process TTL maps.
// Redis backs the cross-instance state (reputation counters, tenant rate
// limits); the TTL maps hold per-process hot data.
type Cache struct {
	client  *redis.Client
	ttlMaps sync.Map
}

func NewCache(config common.CacheConfig) (*Cache, error) {
	options := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	}
	if config.TLS {
		options.TLSConfig = &tls.Config{
			InsecureSkipVerify: true, // #nosec G402
		}
	}

	return &Cache{client: redis.NewClient(options)}, nil
}

// NewCacheWithClient wires an existing client; used by tests with redismock.
func NewCacheWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func (c *Cache) CreateTTLMap(name string, ttl time.Duration) *TTLMap {
	ttlMap := NewTTLMap(ttl)
	c.ttlMaps.Store(name, ttlMap)
	return ttlMap
}

func (c *Cache) GetTTLMap(name string) *TTLMap {
	if value, ok := c.ttlMaps.Load(name); ok {
		ttlMap, ok := value.(*TTLMap)
		if !ok {
			return nil
		}
		return ttlMap
	}
	return nil
}
