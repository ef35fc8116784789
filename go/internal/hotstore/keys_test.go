package hotstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeySchema(t *testing.T) {
	assert.Equal(t, "user_balance:42", userBalanceKey(42))
	assert.Equal(t, "bid:a1:r1:42", bidKey("a1", "r1", 42))
	assert.Equal(t, "round_bids:a1:r1", roundBidsKey("a1", "r1"))
	assert.Equal(t, "idempotency:k1", idempotencyKey("k1"))
	assert.Equal(t, "top_bids:a1:r1:10", topBidsCacheKey("a1", "r1", 10))
	assert.Equal(t, "auction:a1", auctionCacheKey("a1"))
	assert.Equal(t, "min_bid:a1:3", minBidCacheKey("a1", 3))
	assert.Equal(t, "user_place:a1:r1:42", userPlaceCacheKey("a1", "r1", 42))
}

func TestRankScoreOrdersAmountDesc(t *testing.T) {
	// A higher amount must always sort before a lower one, regardless of
	// how far apart the timestamps are.
	high := RankScore(200, 1_700_000_100_000)
	low := RankScore(100, 1_700_000_000_000)

	assert.Less(t, high, low)
}

func TestRankScoreTieBreaksEarlierFirst(t *testing.T) {
	early := RankScore(150, 1_700_000_000_000)
	late := RankScore(150, 1_700_000_000_001)

	assert.Less(t, early, late)
}
