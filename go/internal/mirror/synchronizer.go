package mirror

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/durable"
	"github.com/mcdev12/gavel/go/internal/hotstore"
	"github.com/mcdev12/gavel/go/internal/models"
)

// Synchronizer keeps the durable store trailing the hot store while
// auctions are LIVE: bid rows are upserted with recomputed places and
// balance deltas are written through. The flow is strictly one-way
// (hot → durable) during a live auction.
type Synchronizer struct {
	hot      *hotstore.Store
	db       *durable.Store
	clock    clockwork.Clock
	interval time.Duration
}

// New wires a synchronizer with the given cadence.
func New(hot *hotstore.Store, db *durable.Store, clock clockwork.Clock, interval time.Duration) *Synchronizer {
	return &Synchronizer{hot: hot, db: db, clock: clock, interval: interval}
}

// Prime seeds hot balances from the durable store at startup. SetNX keeps a
// counter that survived a restart from being clobbered by a stale mirror.
func (s *Synchronizer) Prime(ctx context.Context) error {
	users, err := s.db.Users.List(ctx)
	if err != nil {
		return err
	}
	primed := 0
	for _, u := range users {
		ok, err := s.hot.PrimeBalanceIfAbsent(ctx, u.UserID, u.Balance)
		if err != nil {
			return err
		}
		if ok {
			primed++
		}
	}
	log.Info().Int("users", len(users)).Int("primed", primed).Msg("hot balances primed")
	return nil
}

// Run executes a sync pass on every tick until the context ends.
func (s *Synchronizer) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("mirror synchronizer started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if err := s.syncOnce(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("mirror pass failed")
			}
		}
	}
}

// syncOnce mirrors every LIVE auction's current round and the balances of
// its bidders.
func (s *Synchronizer) syncOnce(ctx context.Context) error {
	auctions, err := s.db.Auctions.ListByStatus(ctx, models.AuctionStatusLive)
	if err != nil {
		return err
	}

	for _, auction := range auctions {
		round, err := s.db.Rounds.Get(ctx, auction.ID, auction.CurrentRoundIdx)
		if errors.Is(err, durable.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := s.syncRound(ctx, auction.ID, round.ID); err != nil {
			log.Error().Err(err).Str("auction_id", auction.ID).Msg("round mirror failed")
		}
	}
	return nil
}

func (s *Synchronizer) syncRound(ctx context.Context, auctionID, roundID string) error {
	ranked, err := s.hot.AllBids(ctx, auctionID, roundID)
	if err != nil {
		return err
	}

	for _, r := range ranked {
		bid := &models.Bid{
			AuctionID:        r.AuctionID,
			RoundID:          r.RoundID,
			UserID:           r.UserID,
			Amount:           r.Amount,
			PlaceID:          r.Place,
			IsTop3SnipingBid: r.Sniping,
			CreatedAt:        time.UnixMilli(r.CreatedAtMs).UTC(),
			UpdatedAt:        time.UnixMilli(r.UpdatedAtMs).UTC(),
		}
		if err := s.db.Bids.Upsert(ctx, bid); err != nil {
			return err
		}
		if err := s.syncBalance(ctx, r.UserID); err != nil {
			return err
		}
	}
	return nil
}

// syncBalance writes the hot balance through only when it differs from the
// mirrored value.
func (s *Synchronizer) syncBalance(ctx context.Context, userID int64) error {
	hotBal, ok, err := s.hot.Balance(ctx, userID)
	if err != nil || !ok {
		return err
	}

	mirrored, err := s.db.Users.Get(ctx, userID)
	if err != nil && !errors.Is(err, durable.ErrNotFound) {
		return err
	}
	if mirrored != nil && mirrored.Balance == hotBal {
		return nil
	}
	return s.db.Users.SetBalance(ctx, userID, hotBal)
}
