package hotstore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v9"
)

const (
	// BidTTL bounds how long bid records and ranking sets survive in the hot
	// store. Finished auctions are served from the durable mirror.
	BidTTL = 24 * time.Hour

	// IdempotencyTTL bounds the replay window for idempotency markers.
	IdempotencyTTL = time.Hour

	// TopBidsCacheTTL bounds the top-k JSON cache.
	TopBidsCacheTTL = 5 * time.Second
)

// Store wraps the Redis client with the engine's key schema and scripts. All
// bid and balance mutations go through the atomic scripts in this package.
type Store struct {
	rdb *redis.Client
}

// New connects a Store to the given Redis instance.
func New(addr, password string, db int) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{rdb: rdb}
}

// NewWithClient wraps an existing client, mainly for tests.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}
