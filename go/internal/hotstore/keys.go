package hotstore

import "fmt"

// Key schema. Every key the engine touches is built here so the layout stays
// in one place.

func userBalanceKey(userID int64) string {
	return fmt.Sprintf("user_balance:%d", userID)
}

func bidKey(auctionID, roundID string, userID int64) string {
	return fmt.Sprintf("bid:%s:%s:%d", auctionID, roundID, userID)
}

func roundBidsKey(auctionID, roundID string) string {
	return fmt.Sprintf("round_bids:%s:%s", auctionID, roundID)
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

func topBidsCacheKey(auctionID, roundID string, k int) string {
	return fmt.Sprintf("top_bids:%s:%s:%d", auctionID, roundID, k)
}

func auctionCacheKey(auctionID string) string {
	return fmt.Sprintf("auction:%s", auctionID)
}

func minBidCacheKey(auctionID string, idx int) string {
	return fmt.Sprintf("min_bid:%s:%d", auctionID, idx)
}

func userPlaceCacheKey(auctionID, roundID string, userID int64) string {
	return fmt.Sprintf("user_place:%s:%s:%d", auctionID, roundID, userID)
}

// transferQueueKey is the FIFO list carrying round-carry tasks.
const transferQueueKey = "bid_transfer_queue"

// RankScore encodes the ranking order into a single sorted-set score:
// higher amounts sort first, ties break toward the earlier timestamp. Members
// with identical scores fall back to the set's lexicographic member order.
func RankScore(amount, tsMs int64) float64 {
	return float64(-amount)*1e12 + float64(tsMs)
}
