package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/durable"
	"github.com/mcdev12/gavel/go/internal/models"
)

const topBidsLimit = 10

// buildSnapshot assembles the full state payload for one auction.
func (h *Hub) buildSnapshot(ctx context.Context, auctionID string) (*Snapshot, error) {
	auction, err := h.engine.Auction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	now := h.clock.Now()
	snap := &Snapshot{
		Type: msgSnapshot,
		Auction: AuctionState{
			ID:                  auction.ID,
			Name:                auction.Name,
			ItemName:            auction.ItemName,
			Status:              string(auction.Status),
			CurrentRoundIdx:     auction.CurrentRoundIdx,
			RoundsCount:         auction.RoundsCount,
			RemainingItemsCount: auction.RemainingItemsCount,
			MinBidForRound:      auction.MinBidForRound(auction.CurrentRoundIdx),
			BaseMinBid:          auction.MinBid,
		},
		TopBids: []BidEntry{},
		AllBids: []BidEntry{},
	}

	if auction.Status == models.AuctionStatusReleased {
		until := auction.StartDatetime.Sub(now).Milliseconds()
		if until < 0 {
			until = 0
		}
		snap.Auction.TimeUntilStartMs = &until
	}

	if auction.Status != models.AuctionStatusLive && auction.Status != models.AuctionStatusFinished {
		return snap, nil
	}

	round, err := h.db.Rounds.Get(ctx, auction.ID, auction.CurrentRoundIdx)
	if errors.Is(err, durable.ErrNotFound) {
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load round for snapshot: %w", err)
	}

	state := &RoundState{
		Idx:             round.Idx,
		StartedAt:       round.StartedAt.UnixMilli(),
		EndedAt:         round.EndedAt.UnixMilli(),
		TimeRemainingMs: round.TimeRemaining(now).Milliseconds(),
	}
	if round.ExtendedUntil != nil {
		ms := round.ExtendedUntil.UnixMilli()
		state.ExtendedUntil = &ms
	}
	snap.Round = state

	// One ranking read serves both the top-10 block and the full list; the
	// dedup hash needs the freshest data, not the 5-second read cache.
	all, err := h.engine.AllBids(ctx, auction.ID, round.ID)
	if err != nil {
		return nil, fmt.Errorf("load ranking for snapshot: %w", err)
	}
	for _, b := range all {
		entry := BidEntry{
			UserID:  strconv.FormatInt(b.UserID, 10),
			Amount:  b.Amount,
			PlaceID: b.PlaceID,
		}
		snap.AllBids = append(snap.AllBids, entry)
		if len(snap.TopBids) < topBidsLimit {
			snap.TopBids = append(snap.TopBids, entry)
		}
	}
	return snap, nil
}

// contentHash folds the top-10 ranking and the total bid count into the
// dedup hash. Timing fields are deliberately excluded so a quiet auction
// hashes stable across ticks.
func contentHash(snap *Snapshot) uint64 {
	d := xxhash.New()
	for _, b := range snap.TopBids {
		_, _ = d.WriteString(b.UserID)
		_, _ = d.WriteString(":")
		_, _ = d.WriteString(strconv.FormatInt(b.Amount, 10))
		_, _ = d.WriteString(":")
		_, _ = d.WriteString(strconv.Itoa(b.PlaceID))
		_, _ = d.WriteString(";")
	}
	_, _ = d.WriteString(strconv.Itoa(len(snap.AllBids)))
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(snap.Auction.Status)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(strconv.Itoa(snap.Auction.CurrentRoundIdx))
	return d.Sum64()
}

// personalize marshals the snapshot for one connection, filling the
// caller's own bid and place when they are in the ranking.
func (c *Conn) personalize(snap *Snapshot) []byte {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	out := *snap
	out.YourBid = nil
	out.YourPlace = 0
	if userID > 0 {
		uid := strconv.FormatInt(userID, 10)
		for i := range out.AllBids {
			if out.AllBids[i].UserID == uid {
				entry := out.AllBids[i]
				out.YourBid = &entry
				out.YourPlace = entry.PlaceID
				break
			}
		}
	}

	data, err := json.Marshal(&out)
	if err != nil {
		log.Error().Err(err).Msg("encode snapshot")
		return nil
	}
	return data
}
