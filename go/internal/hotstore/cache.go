package hotstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v9"
)

// Short-TTL read caches. These only ever shadow authoritative state; a miss
// falls through to the durable store.

const shortCacheTTL = 5 * time.Second

// CachedTopBids returns the cached top-k JSON payload for a round, if fresh.
func (s *Store) CachedTopBids(ctx context.Context, auctionID, roundID string, k int) ([]byte, bool, error) {
	return s.cachedBytes(ctx, topBidsCacheKey(auctionID, roundID, k))
}

// CacheTopBids stores the top-k JSON payload for a round.
func (s *Store) CacheTopBids(ctx context.Context, auctionID, roundID string, k int, payload []byte) error {
	return s.cacheBytes(ctx, topBidsCacheKey(auctionID, roundID, k), payload, TopBidsCacheTTL)
}

// CachedAuction returns the cached auction document JSON, if fresh.
func (s *Store) CachedAuction(ctx context.Context, auctionID string) ([]byte, bool, error) {
	return s.cachedBytes(ctx, auctionCacheKey(auctionID))
}

// CacheAuction stores the auction document JSON.
func (s *Store) CacheAuction(ctx context.Context, auctionID string, payload []byte) error {
	return s.cacheBytes(ctx, auctionCacheKey(auctionID), payload, shortCacheTTL)
}

// InvalidateAuction drops the auction cache entry, used after lifecycle
// transitions so readers see the new state immediately.
func (s *Store) InvalidateAuction(ctx context.Context, auctionID string) error {
	if err := s.rdb.Del(ctx, auctionCacheKey(auctionID)).Err(); err != nil {
		return fmt.Errorf("invalidate auction cache: %w", err)
	}
	return nil
}

// CachedMinBid returns the cached per-round minimum bid, if fresh.
func (s *Store) CachedMinBid(ctx context.Context, auctionID string, idx int) (int64, bool, error) {
	raw, ok, err := s.cachedBytes(ctx, minBidCacheKey(auctionID, idx))
	if err != nil || !ok {
		return 0, false, err
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("malformed min bid cache %q: %w", raw, err)
	}
	return v, true, nil
}

// CacheMinBid stores the per-round minimum bid.
func (s *Store) CacheMinBid(ctx context.Context, auctionID string, idx int, minBid int64) error {
	return s.cacheBytes(ctx, minBidCacheKey(auctionID, idx), []byte(strconv.FormatInt(minBid, 10)), shortCacheTTL)
}

// CacheUserPlace stores a user's last computed place.
func (s *Store) CacheUserPlace(ctx context.Context, auctionID, roundID string, userID int64, place int) error {
	return s.cacheBytes(ctx, userPlaceCacheKey(auctionID, roundID, userID), []byte(strconv.Itoa(place)), shortCacheTTL)
}

func (s *Store) cachedBytes(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache read %s: %w", key, err)
	}
	return raw, true, nil
}

func (s *Store) cacheBytes(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache write %s: %w", key, err)
	}
	return nil
}
