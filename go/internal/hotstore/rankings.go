package hotstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v9"
)

// RankedBid is a bid record paired with its 1-based place in the round.
type RankedBid struct {
	BidRecord
	Place int
}

// TopBids returns the best k bids of a round in place order.
func (s *Store) TopBids(ctx context.Context, auctionID, roundID string, k int) ([]RankedBid, error) {
	return s.rangeBids(ctx, auctionID, roundID, 0, int64(k-1))
}

// AllBids returns the full ranking of a round in place order.
func (s *Store) AllBids(ctx context.Context, auctionID, roundID string) ([]RankedBid, error) {
	return s.rangeBids(ctx, auctionID, roundID, 0, -1)
}

func (s *Store) rangeBids(ctx context.Context, auctionID, roundID string, start, stop int64) ([]RankedBid, error) {
	members, err := s.rdb.ZRange(ctx, roundBidsKey(auctionID, roundID), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("range round bids: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		uid, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed ranking member %q: %w", m, err)
		}
		keys[i] = bidKey(auctionID, roundID, uid)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch bid records: %w", err)
	}

	out := make([]RankedBid, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Record expired between ZRANGE and MGET; the ranking entry is
			// stale and gets skipped.
			continue
		}
		var rec BidRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode bid record: %w", err)
		}
		out = append(out, RankedBid{BidRecord: rec, Place: int(start) + i + 1})
	}
	return out, nil
}

// UserPlace returns the 1-based place of a user in a round's ranking, or
// false when the user has no bid there.
func (s *Store) UserPlace(ctx context.Context, auctionID, roundID string, userID int64) (int, bool, error) {
	rank, err := s.rdb.ZRank(ctx, roundBidsKey(auctionID, roundID), strconv.FormatInt(userID, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("rank lookup: %w", err)
	}
	return int(rank) + 1, true, nil
}

// GetBid fetches one bid record, or false when absent.
func (s *Store) GetBid(ctx context.Context, auctionID, roundID string, userID int64) (*BidRecord, bool, error) {
	raw, err := s.rdb.Get(ctx, bidKey(auctionID, roundID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetch bid: %w", err)
	}
	var rec BidRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, false, fmt.Errorf("decode bid record: %w", err)
	}
	return &rec, true, nil
}

// BidCount returns the number of bids in a round.
func (s *Store) BidCount(ctx context.Context, auctionID, roundID string) (int64, error) {
	n, err := s.rdb.ZCard(ctx, roundBidsKey(auctionID, roundID)).Result()
	if err != nil {
		return 0, fmt.Errorf("count round bids: %w", err)
	}
	return n, nil
}
