package bidding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/durable"
	"github.com/mcdev12/gavel/go/internal/models"
)

// Read operations are best-effort from the hot store with fall-through to
// the durable mirror, which is authoritative once the auction has finished
// and the hot TTLs have expired.

// TopBids returns up to k bids of a round in place order.
func (e *Engine) TopBids(ctx context.Context, auctionID, roundID string, k int) ([]models.Bid, error) {
	if raw, ok, err := e.hot.CachedTopBids(ctx, auctionID, roundID, k); err == nil && ok {
		var bids []models.Bid
		if err := json.Unmarshal(raw, &bids); err == nil {
			return bids, nil
		}
	}

	ranked, err := e.hot.TopBids(ctx, auctionID, roundID, k)
	if err != nil {
		log.Warn().Err(err).Str("auction_id", auctionID).Msg("hot top-bids read failed, using durable mirror")
	}
	if len(ranked) > 0 {
		bids := make([]models.Bid, len(ranked))
		for i, r := range ranked {
			bids[i] = bidFromRecord(r.BidRecord, r.Place)
		}
		if raw, err := json.Marshal(bids); err == nil {
			if err := e.hot.CacheTopBids(ctx, auctionID, roundID, k, raw); err != nil {
				log.Warn().Err(err).Str("auction_id", auctionID).Msg("failed to cache top bids")
			}
		}
		return bids, nil
	}

	mirrored, err := e.db.Bids.ListByRound(ctx, auctionID, roundID)
	if err != nil {
		return nil, fmt.Errorf("durable top-bids read: %w", err)
	}
	if len(mirrored) > k {
		mirrored = mirrored[:k]
	}
	bids := make([]models.Bid, len(mirrored))
	for i, b := range mirrored {
		bids[i] = *b
		bids[i].PlaceID = i + 1
	}
	return bids, nil
}

// AllBids returns a round's full ranking in place order.
func (e *Engine) AllBids(ctx context.Context, auctionID, roundID string) ([]models.Bid, error) {
	ranked, err := e.hot.AllBids(ctx, auctionID, roundID)
	if err != nil {
		log.Warn().Err(err).Str("auction_id", auctionID).Msg("hot ranking read failed, using durable mirror")
	}
	if len(ranked) > 0 {
		bids := make([]models.Bid, len(ranked))
		for i, r := range ranked {
			bids[i] = bidFromRecord(r.BidRecord, r.Place)
		}
		return bids, nil
	}

	mirrored, err := e.db.Bids.ListByRound(ctx, auctionID, roundID)
	if err != nil {
		return nil, fmt.Errorf("durable ranking read: %w", err)
	}
	bids := make([]models.Bid, len(mirrored))
	for i, b := range mirrored {
		bids[i] = *b
		bids[i].PlaceID = i + 1
	}
	return bids, nil
}

// UserBid returns one user's bid in a round, or nil when they have none.
func (e *Engine) UserBid(ctx context.Context, auctionID, roundID string, userID int64) (*models.Bid, error) {
	rec, ok, err := e.hot.GetBid(ctx, auctionID, roundID, userID)
	if err != nil {
		log.Warn().Err(err).Str("auction_id", auctionID).Msg("hot bid read failed, using durable mirror")
	}
	if ok {
		place, _, err := e.hot.UserPlace(ctx, auctionID, roundID, userID)
		if err != nil {
			place = 0
		}
		bid := bidFromRecord(*rec, place)
		return &bid, nil
	}

	bid, err := e.db.Bids.GetUserBid(ctx, auctionID, roundID, userID)
	if errors.Is(err, durable.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("durable bid read: %w", err)
	}
	return bid, nil
}

// UserPlace returns the user's 1-based place in a round, or 0 when they have
// no bid there.
func (e *Engine) UserPlace(ctx context.Context, auctionID, roundID string, userID int64) (int, error) {
	place, ok, err := e.hot.UserPlace(ctx, auctionID, roundID, userID)
	if err != nil {
		log.Warn().Err(err).Str("auction_id", auctionID).Msg("hot place read failed, using durable mirror")
	}
	if ok {
		return place, nil
	}

	bid, err := e.db.Bids.GetUserBid(ctx, auctionID, roundID, userID)
	if errors.Is(err, durable.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("durable place read: %w", err)
	}
	return bid.PlaceID, nil
}

// MinBidForRound exposes the cached per-round minimum to callers outside the
// placement path.
func (e *Engine) MinBidForRound(ctx context.Context, auctionID string, idx int) (int64, error) {
	auction, err := e.getAuction(ctx, auctionID)
	if err != nil {
		return 0, err
	}
	return e.minBidForRound(ctx, auction, idx), nil
}

// Auction exposes the cached auction read to the fan-out.
func (e *Engine) Auction(ctx context.Context, auctionID string) (*models.Auction, error) {
	return e.getAuction(ctx, auctionID)
}
