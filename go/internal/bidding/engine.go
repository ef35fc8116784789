package bidding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/durable"
	"github.com/mcdev12/gavel/go/internal/events"
	"github.com/mcdev12/gavel/go/internal/hotstore"
	"github.com/mcdev12/gavel/go/internal/models"
)

// ExtensionRequester receives anti-sniping candidates on the bid engine's
// post-commit path. The lifecycle manager implements it.
type ExtensionRequester interface {
	RequestExtension(ctx context.Context, auction *models.Auction, round *models.Round, userID int64, place int)
}

// Engine places and augments bids. The atomic section is the hot-store
// script; everything after commit is best-effort.
type Engine struct {
	hot       *hotstore.Store
	db        *durable.Store
	clock     clockwork.Clock
	publisher events.Publisher
	ext       ExtensionRequester
}

// NewEngine wires a bid engine over the two stores.
func NewEngine(hot *hotstore.Store, db *durable.Store, publisher events.Publisher, clock clockwork.Clock) *Engine {
	return &Engine{
		hot:       hot,
		db:        db,
		clock:     clock,
		publisher: publisher,
	}
}

// SetExtensionRequester attaches the anti-sniping hook. The lifecycle
// manager is constructed after the engine, so this is set late.
func (e *Engine) SetExtensionRequester(ext ExtensionRequester) {
	e.ext = ext
}

// PlaceBidRequest is one bid placement or augmentation.
type PlaceBidRequest struct {
	AuctionID      string
	UserID         int64
	Amount         int64
	IdempotencyKey string
	AddToExisting  bool
}

// PlaceBidResponse is the successful outcome, also returned verbatim on
// idempotent replays.
type PlaceBidResponse struct {
	Bid              models.Bid `json:"bid"`
	Place            int        `json:"place"`
	RemainingBalance int64      `json:"remaining_balance"`
}

// PlaceBid runs the full placement: precondition loads, the atomic script,
// and the post-commit steps (place cache, anti-sniping request, broadcast).
func (e *Engine) PlaceBid(ctx context.Context, req PlaceBidRequest) (*PlaceBidResponse, error) {
	if req.Amount <= 0 {
		return nil, NewError(KindValidation, "amount must be a positive integer")
	}
	if req.IdempotencyKey == "" {
		return nil, NewError(KindValidation, "idempotency_key is required")
	}
	if req.UserID <= 0 {
		return nil, NewError(KindValidation, "user_id is required")
	}

	auction, err := e.getAuction(ctx, req.AuctionID)
	if err != nil {
		return nil, err
	}
	if auction.Status != models.AuctionStatusLive {
		return nil, NewError(KindAuctionNotLive, "auction is not accepting bids").
			WithContext("status", string(auction.Status))
	}

	round, err := e.db.Rounds.Get(ctx, auction.ID, auction.CurrentRoundIdx)
	if errors.Is(err, durable.ErrNotFound) {
		return nil, NewError(KindRoundNotFound, "current round does not exist")
	}
	if err != nil {
		return nil, fmt.Errorf("load current round: %w", err)
	}

	now := e.clock.Now()
	if !now.Before(round.EffectiveEnd()) {
		return nil, NewError(KindRoundEnded, "round has ended")
	}

	minBid := e.minBidForRound(ctx, auction, auction.CurrentRoundIdx)

	result, err := e.hot.PlaceBid(ctx, hotstore.PlaceBidArgs{
		AuctionID:       auction.ID,
		RoundID:         round.ID,
		UserID:          req.UserID,
		Amount:          req.Amount,
		MinBid:          minBid,
		AddToExisting:   req.AddToExisting,
		IdempotencyKey:  req.IdempotencyKey,
		NowMs:           now.UnixMilli(),
		RoundEndMs:      round.EffectiveEnd().UnixMilli(),
		WinnersPerRound: auction.WinnersPerRound(),
		RoundIdx:        auction.CurrentRoundIdx,
	})
	if err != nil {
		return nil, fmt.Errorf("atomic bid placement: %w", err)
	}

	switch result.Status {
	case hotstore.StatusOK:
		// fallthrough to post-commit below
	case hotstore.StatusAlreadyProcessed:
		// Idempotent replay: hand back the original payload, no side effects.
		return responseFrom(result), nil
	case hotstore.StatusRoundEnded:
		return nil, NewError(KindRoundEnded, "round has ended")
	case hotstore.StatusNoExistingBid:
		return nil, NewError(KindNoExistingBid, "no bid to add to in this round")
	case hotstore.StatusBidExists:
		return nil, NewError(KindBidExists, "a bid already exists for this round")
	case hotstore.StatusAlreadyFirstPlace:
		return nil, NewError(KindAlreadyFirstPlace, "first-place holders may not add")
	case hotstore.StatusAlreadyInWinning:
		return nil, NewError(KindAlreadyInWinningTop, "bid already in the winning top").
			WithContext("winners_per_round", auction.WinnersPerRound())
	case hotstore.StatusBelowMinBid:
		return nil, NewError(KindBelowMinBid, "total below the round minimum").
			WithContext("min_bid_for_round", minBid)
	case hotstore.StatusInsufficientFunds:
		return nil, NewError(KindInsufficientBalance, "balance too low for this bid")
	default:
		return nil, fmt.Errorf("unexpected bid script status %q", result.Status)
	}

	resp := responseFrom(result)

	if err := e.hot.CacheUserPlace(ctx, auction.ID, round.ID, req.UserID, result.Place); err != nil {
		log.Warn().Err(err).Str("auction_id", auction.ID).Msg("failed to cache user place")
	}
	if e.ext != nil {
		e.ext.RequestExtension(ctx, auction, round, req.UserID, result.Place)
	}
	e.publisher.AuctionDirty(auction.ID, true)

	return resp, nil
}

func responseFrom(result *hotstore.PlaceBidResult) *PlaceBidResponse {
	return &PlaceBidResponse{
		Bid:              bidFromRecord(result.Record, result.Place),
		Place:            result.Place,
		RemainingBalance: result.NewBalance,
	}
}

func bidFromRecord(rec hotstore.BidRecord, place int) models.Bid {
	return models.Bid{
		AuctionID:        rec.AuctionID,
		RoundID:          rec.RoundID,
		UserID:           rec.UserID,
		Amount:           rec.Amount,
		PlaceID:          place,
		IsTop3SnipingBid: rec.Sniping,
		CreatedAt:        time.UnixMilli(rec.CreatedAtMs).UTC(),
		UpdatedAt:        time.UnixMilli(rec.UpdatedAtMs).UTC(),
	}
}

// getAuction reads through the short-TTL hot cache to the durable store.
func (e *Engine) getAuction(ctx context.Context, auctionID string) (*models.Auction, error) {
	if raw, ok, err := e.hot.CachedAuction(ctx, auctionID); err == nil && ok {
		var a models.Auction
		if err := json.Unmarshal(raw, &a); err == nil {
			return &a, nil
		}
	}

	auction, err := e.db.Auctions.Get(ctx, auctionID)
	if errors.Is(err, durable.ErrNotFound) {
		return nil, NewError(KindAuctionNotFound, "auction does not exist")
	}
	if err != nil {
		return nil, fmt.Errorf("load auction: %w", err)
	}

	if raw, err := json.Marshal(auction); err == nil {
		if err := e.hot.CacheAuction(ctx, auctionID, raw); err != nil {
			log.Warn().Err(err).Str("auction_id", auctionID).Msg("failed to cache auction")
		}
	}
	return auction, nil
}

// minBidForRound serves the per-round minimum from cache, computing and
// caching it on a miss.
func (e *Engine) minBidForRound(ctx context.Context, auction *models.Auction, idx int) int64 {
	if v, ok, err := e.hot.CachedMinBid(ctx, auction.ID, idx); err == nil && ok {
		return v
	}
	minBid := auction.MinBidForRound(idx)
	if err := e.hot.CacheMinBid(ctx, auction.ID, idx, minBid); err != nil {
		log.Warn().Err(err).Str("auction_id", auction.ID).Msg("failed to cache min bid")
	}
	return minBid
}
