package redis

import (
	"context"
	"errors"
	"time"

	domain "github.com/quizowl/quizowl-progression/internal/domain/progression"
)

// ProgressCache implements domain.ProgressCache using the generic Redis Cache.
// Snapshots are JSON-encoded full progress records; the coordinator
// invalidates them after every write, so a hit is always fresh enough
// for the read side within its TTL.
type ProgressCache struct {
	cache *Cache
}

// NewProgressCache creates a new ProgressCache.
func NewProgressCache(cache *Cache) *ProgressCache {
	return &ProgressCache{
		cache: cache,
	}
}

// Get returns the cached snapshot for the user.
// Returns domain.ErrProgressNotFound on a cache miss.
func (p *ProgressCache) Get(ctx context.Context, userID string) (*domain.UserProgress, error) {
	var progress domain.UserProgress
	key := ProgressKey(userID)
	if err := p.cache.Get(ctx, key, &progress); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, domain.ErrProgressNotFound
		}
		return nil, err
	}
	return &progress, nil
}

// Set stores a progress snapshot with the given TTL.
func (p *ProgressCache) Set(ctx context.Context, progress *domain.UserProgress, ttl time.Duration) error {
	if progress == nil {
		return nil
	}
	key := ProgressKey(progress.UserID)
	return p.cache.Set(ctx, key, progress, ttl)
}

// Invalidate removes the user's snapshot.
func (p *ProgressCache) Invalidate(ctx context.Context, userID string) error {
	return p.cache.Delete(ctx, ProgressKey(userID))
}
