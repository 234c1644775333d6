package messaging

import (
	"context"
	"sync"

	cache "github.com/quizowl/quizowl-progression/internal/infrastructure/persistence/redis"
)

// CacheRedisClient adapts the persistence-layer Redis cache to the
// RedisClient interface expected by RedisEventBus.
type CacheRedisClient struct {
	cache *cache.Cache

	mu      sync.Mutex
	cancels []context.CancelFunc
}

// NewCacheRedisClient creates an adapter around the given cache.
func NewCacheRedisClient(c *cache.Cache) *CacheRedisClient {
	return &CacheRedisClient{cache: c}
}

func (c *CacheRedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	return c.cache.Publish(ctx, channel, message)
}

// Subscribe opens a pub/sub subscription and pumps messages into a channel.
// The pump goroutine exits when ctx is cancelled or Close is called.
func (c *CacheRedisClient) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	subCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.cancels = append(c.cancels, cancel)
	c.mu.Unlock()

	pubsub := c.cache.Subscribe(subCtx, channels...)

	out := make(chan RedisMessage)
	go func() {
		defer close(out)
		defer pubsub.Close()

		src := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-src:
				if !ok {
					return
				}
				select {
				case out <- RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close cancels all active subscriptions. The underlying cache connection
// is owned by the caller and stays open.
func (c *CacheRedisClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil

	return nil
}
