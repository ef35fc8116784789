package lifecycle

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/config"
	"github.com/mcdev12/gavel/go/internal/models"
)

// ExtensionEligible decides whether a just-committed bid qualifies for an
// anti-sniping extension: an enabled round, a top-3 place, and a strictly
// positive remaining window no larger than the configured one.
func ExtensionEligible(t config.Tuning, roundIdx, place int, remaining time.Duration) bool {
	if !t.AntiSnipingEnabledFor(roundIdx) {
		return false
	}
	if place > 3 {
		return false
	}
	return remaining > 0 && remaining <= t.AntiSnipingWindow
}

// RequestExtension is the bid engine's post-commit anti-sniping hook: when a
// top-3 bid lands inside the closing window of an eligible round, the round
// stretches by the configured extension. Extensions stack — each qualifying
// bid raises extended_until to now + extension.
func (m *Manager) RequestExtension(ctx context.Context, auction *models.Auction, round *models.Round, userID int64, place int) {
	now := m.clock.Now()
	if !ExtensionEligible(m.tuning, round.Idx, place, round.EffectiveEnd().Sub(now)) {
		return
	}

	until := now.Add(m.tuning.AntiSnipingExtend).UTC()
	extended, err := m.db.Rounds.ExtendUntil(ctx, round.ID, until)
	if err != nil {
		log.Error().Err(err).Str("auction_id", auction.ID).Str("round_id", round.ID).Msg("round extension failed")
		return
	}
	if !extended {
		// A concurrent bid already pushed the deadline at least this far.
		return
	}

	if _, err := m.hot.MarkSnipingBid(ctx, auction.ID, round.ID, userID); err != nil {
		log.Warn().Err(err).Str("auction_id", auction.ID).Int64("user_id", userID).Msg("failed to flag sniping bid")
	}
	if err := m.db.Bids.MarkSniping(ctx, auction.ID, round.ID, userID); err != nil {
		log.Warn().Err(err).Str("auction_id", auction.ID).Int64("user_id", userID).Msg("failed to mirror sniping flag")
	}

	m.Wake()
	m.publisher.AuctionDirty(auction.ID, true)
	log.Info().
		Str("auction_id", auction.ID).
		Int("round_idx", round.Idx).
		Int64("user_id", userID).
		Int("place", place).
		Time("extended_until", until).
		Msg("round extended by anti-sniping")
}
