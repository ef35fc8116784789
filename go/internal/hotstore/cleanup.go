package hotstore

import (
	"context"
	"fmt"
	"strconv"
)

// CleanupRound deletes a finished round's ranking set and bid records. Called
// after the round is snapshotted into the durable store; the TTLs would
// expire them anyway, this just frees the memory early.
func (s *Store) CleanupRound(ctx context.Context, auctionID, roundID string) error {
	members, err := s.rdb.ZRange(ctx, roundBidsKey(auctionID, roundID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("list round members: %w", err)
	}
	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		uid, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		keys = append(keys, bidKey(auctionID, roundID, uid))
	}
	keys = append(keys, roundBidsKey(auctionID, roundID))
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete round keys: %w", err)
	}
	return nil
}

// CleanupAuction drops the auction's cache entries after finalization.
func (s *Store) CleanupAuction(ctx context.Context, auctionID string, roundsCount int) error {
	keys := []string{auctionCacheKey(auctionID)}
	for idx := 0; idx < roundsCount; idx++ {
		keys = append(keys, minBidCacheKey(auctionID, idx))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete auction caches: %w", err)
	}
	return nil
}
