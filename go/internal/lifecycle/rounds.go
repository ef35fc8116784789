package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/hotstore"
	"github.com/mcdev12/gavel/go/internal/models"
)

// goLive transitions a RELEASED auction whose start time has passed and
// creates round 0.
func (m *Manager) goLive(ctx context.Context, auction *models.Auction) error {
	moved, err := m.db.Auctions.TransitionStatus(ctx, auction.ID, models.AuctionStatusReleased, models.AuctionStatusLive)
	if err != nil {
		return err
	}
	if !moved {
		// Another driver won the transition; it owns round creation too.
		return nil
	}
	auction.Status = models.AuctionStatusLive

	if _, err := m.startRound(ctx, auction, 0); err != nil {
		return fmt.Errorf("create round 0: %w", err)
	}
	log.Info().Str("auction_id", auction.ID).Str("instance", m.instanceID).Msg("auction live")
	return nil
}

// startRound creates the round document for idx and points the auction at
// it. Concurrent creation collapses onto the existing document via the
// unique (auction_id, idx) index.
func (m *Manager) startRound(ctx context.Context, auction *models.Auction, idx int) (*models.Round, error) {
	now := m.clock.Now().UTC()
	round := &models.Round{
		ID:        uuid.New().String(),
		AuctionID: auction.ID,
		Idx:       idx,
		StartedAt: now,
		EndedAt:   now.Add(auction.DurationForRound(idx)),
		CreatedAt: now,
	}
	round, err := m.db.Rounds.CreateOrGet(ctx, round)
	if err != nil {
		return nil, err
	}
	if err := m.db.Auctions.SetCurrentRound(ctx, auction.ID, idx); err != nil {
		return nil, err
	}
	auction.CurrentRoundIdx = idx

	if err := m.hot.InvalidateAuction(ctx, auction.ID); err != nil {
		log.Warn().Err(err).Str("auction_id", auction.ID).Msg("failed to invalidate auction cache")
	}
	m.Wake()
	m.publisher.AuctionDirty(auction.ID, true)
	log.Info().
		Str("auction_id", auction.ID).
		Int("round_idx", idx).
		Time("ends_at", round.EndedAt).
		Msg("round started")
	return round, nil
}

// finishBoundary runs the round finish and then either starts the next
// round or finalizes the auction.
func (m *Manager) finishBoundary(ctx context.Context, auction *models.Auction, round *models.Round) error {
	bids, err := m.loadRoundBids(ctx, auction.ID, round.ID)
	if err != nil {
		return fmt.Errorf("load round bids: %w", err)
	}

	if err := m.finishRound(ctx, auction, round, bids); err != nil {
		return fmt.Errorf("finish round %d: %w", round.Idx, err)
	}

	if auction.IsLastRound(round.Idx) {
		return m.finishAuction(ctx, auction)
	}

	next, err := m.startRound(ctx, auction, round.Idx+1)
	if err != nil {
		return fmt.Errorf("start round %d: %w", round.Idx+1, err)
	}

	task := hotstore.TransferTask{
		AuctionID:       auction.ID,
		CurrentRoundID:  round.ID,
		NextRoundID:     next.ID,
		WinnersPerRound: auction.WinnersPerRound(),
		EnqueuedAtMs:    m.clock.Now().UnixMilli(),
	}
	if err := m.hot.EnqueueTransfer(ctx, task); err != nil {
		return fmt.Errorf("enqueue carry task: %w", err)
	}
	return nil
}

// finishRound applies the end-of-round effects: winner selection, item
// decrement, delivery creation and a durable snapshot of the final ranking.
// A round with zero bids consumes nothing; its inventory carries forward
// implicitly because no decrement occurs.
func (m *Manager) finishRound(ctx context.Context, auction *models.Auction, round *models.Round, bids []models.Bid) error {
	if len(bids) == 0 {
		log.Info().Str("auction_id", auction.ID).Int("round_idx", round.Idx).Msg("round finished with no bids")
		return nil
	}

	winners := Winners(bids, auction.WinnersPerRound())
	served := len(winners)
	if served > auction.RemainingItemsCount {
		served = auction.RemainingItemsCount
	}

	now := m.clock.Now().UTC()
	for _, w := range winners[:served] {
		delivery := &models.Delivery{
			ID:           uuid.New().String(),
			AuctionID:    auction.ID,
			RoundID:      round.ID,
			WinnerUserID: w.UserID,
			ItemName:     auction.ItemName,
			Status:       models.DeliveryStatusPending,
			CreatedAt:    now,
		}
		if err := m.db.Deliveries.Create(ctx, delivery); err != nil {
			return fmt.Errorf("create delivery for user %d: %w", w.UserID, err)
		}
	}

	if err := m.db.Auctions.DecrementRemaining(ctx, auction.ID, served); err != nil {
		return err
	}
	if auction.RemainingItemsCount >= served {
		auction.RemainingItemsCount -= served
	} else {
		auction.RemainingItemsCount = 0
	}

	m.snapshotRound(ctx, auction.ID, round.ID, bids)

	log.Info().
		Str("auction_id", auction.ID).
		Int("round_idx", round.Idx).
		Int("winners", len(winners)).
		Int("served", served).
		Int("remaining_items", auction.RemainingItemsCount).
		Msg("round finished")
	return nil
}

// finishAuction refunds the final losers, snapshots remaining hot state and
// moves the auction to FINISHED. Refund failures are logged per user and
// never block the transition; operators replay them from the log.
func (m *Manager) finishAuction(ctx context.Context, auction *models.Auction) error {
	rounds, err := m.db.Rounds.ListByAuction(ctx, auction.ID)
	if err != nil {
		return fmt.Errorf("list rounds for settlement: %w", err)
	}

	roundBids := make([][]models.Bid, 0, len(rounds))
	for _, round := range rounds {
		bids, err := m.loadRoundBids(ctx, auction.ID, round.ID)
		if err != nil {
			return fmt.Errorf("load bids for settlement round %d: %w", round.Idx, err)
		}
		roundBids = append(roundBids, bids)
		m.snapshotRound(ctx, auction.ID, round.ID, bids)
	}

	refunds := ComputeRefunds(roundBids, auction.WinnersPerRound())
	for userID, amount := range refunds {
		newBal, err := m.hot.CreditBalance(ctx, userID, amount)
		if err != nil {
			log.Error().
				Err(err).
				Str("auction_id", auction.ID).
				Int64("user_id", userID).
				Int64("amount", amount).
				Msg("refund credit failed")
			continue
		}
		if err := m.db.Users.SetBalance(ctx, userID, newBal); err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("refund mirror write failed")
		}
		log.Info().
			Str("auction_id", auction.ID).
			Int64("user_id", userID).
			Int64("amount", amount).
			Msg("final-round loser refunded")
	}

	moved, err := m.db.Auctions.TransitionStatus(ctx, auction.ID, models.AuctionStatusLive, models.AuctionStatusFinished)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}

	for _, round := range rounds {
		if err := m.hot.CleanupRound(ctx, auction.ID, round.ID); err != nil {
			log.Warn().Err(err).Str("auction_id", auction.ID).Msg("round cleanup failed")
		}
	}
	if err := m.hot.CleanupAuction(ctx, auction.ID, auction.RoundsCount); err != nil {
		log.Warn().Err(err).Str("auction_id", auction.ID).Msg("auction cleanup failed")
	}
	if err := m.hot.InvalidateAuction(ctx, auction.ID); err != nil {
		log.Warn().Err(err).Str("auction_id", auction.ID).Msg("failed to invalidate auction cache")
	}

	m.publisher.AuctionDirty(auction.ID, true)
	log.Info().Str("auction_id", auction.ID).Int("refunded_users", len(refunds)).Msg("auction finished")
	return nil
}

// loadRoundBids prefers the hot ranking and falls back to the durable
// mirror when the hot keys have expired.
func (m *Manager) loadRoundBids(ctx context.Context, auctionID, roundID string) ([]models.Bid, error) {
	ranked, err := m.hot.AllBids(ctx, auctionID, roundID)
	if err != nil {
		log.Warn().Err(err).Str("auction_id", auctionID).Msg("hot ranking read failed, using durable mirror")
	}
	if len(ranked) > 0 {
		bids := make([]models.Bid, len(ranked))
		for i, r := range ranked {
			bids[i] = models.Bid{
				AuctionID:        r.AuctionID,
				RoundID:          r.RoundID,
				UserID:           r.UserID,
				Amount:           r.Amount,
				PlaceID:          r.Place,
				IsTop3SnipingBid: r.Sniping,
				CreatedAt:        time.UnixMilli(r.CreatedAtMs).UTC(),
				UpdatedAt:        time.UnixMilli(r.UpdatedAtMs).UTC(),
			}
		}
		return bids, nil
	}

	mirrored, err := m.db.Bids.ListByRound(ctx, auctionID, roundID)
	if err != nil {
		return nil, err
	}
	bids := make([]models.Bid, len(mirrored))
	for i, b := range mirrored {
		bids[i] = *b
		bids[i].PlaceID = i + 1
	}
	return bids, nil
}

// snapshotRound mirrors a round's final ranking into the durable store so
// post-finalization reads never depend on hot TTLs.
func (m *Manager) snapshotRound(ctx context.Context, auctionID, roundID string, bids []models.Bid) {
	for i, bid := range bids {
		bid.PlaceID = i + 1
		if err := m.db.Bids.Upsert(ctx, &bid); err != nil {
			log.Warn().
				Err(err).
				Str("auction_id", auctionID).
				Int64("user_id", bid.UserID).
				Msg("round snapshot upsert failed")
		}
	}
}
