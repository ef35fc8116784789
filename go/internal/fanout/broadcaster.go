package fanout

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// RunBroadcaster drives the two outbound tickers and consumes broadcast
// hints. Time ticks are lightweight and unconditional; snapshot ticks are
// deduplicated by content hash unless a hint forces the send.
func (h *Hub) RunBroadcaster(ctx context.Context) error {
	timeTicker := h.clock.NewTicker(h.tuning.TimeTickInterval)
	defer timeTicker.Stop()
	snapTicker := h.clock.NewTicker(h.tuning.SnapshotInterval)
	defer snapTicker.Stop()

	log.Info().
		Dur("time_tick", h.tuning.TimeTickInterval).
		Dur("snapshot_tick", h.tuning.SnapshotInterval).
		Msg("fan-out broadcaster started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("fan-out broadcaster shutting down")
			return nil

		case <-timeTicker.Chan():
			h.broadcastTimeUpdates()

		case <-snapTicker.Chan():
			for _, auctionID := range h.subscribedAuctions() {
				h.maybeBroadcast(ctx, auctionID, false)
			}

		case hint := <-h.bus.Hints():
			h.maybeBroadcast(ctx, hint.AuctionID, hint.Force)
		}
	}
}

// maybeBroadcast rebuilds one auction's snapshot and sends it unless the
// content hash is unchanged and the last send was within the dedup window.
func (h *Hub) maybeBroadcast(ctx context.Context, auctionID string, force bool) {
	conns := h.connsFor(auctionID)
	if len(conns) == 0 {
		return
	}

	snap, err := h.buildSnapshot(ctx, auctionID)
	if err != nil {
		log.Warn().Err(err).Str("auction_id", auctionID).Msg("snapshot build failed")
		return
	}

	hash := contentHash(snap)
	now := h.clock.Now()

	h.lastMu.Lock()
	prev, seen := h.last[auctionID]
	if !force && seen && prev.hash == hash && now.Sub(prev.at) < h.tuning.SnapshotDedup {
		h.lastMu.Unlock()
		return
	}
	h.last[auctionID] = lastBroadcast{hash: hash, at: now, snap: snap}
	h.lastMu.Unlock()

	for _, conn := range conns {
		if frame := conn.personalize(snap); frame != nil {
			h.deliver(conn, frame)
		}
	}
}

// broadcastTimeUpdates derives countdowns from the last built snapshots so
// the 100 ms cadence never touches the stores.
func (h *Hub) broadcastTimeUpdates() {
	now := h.clock.Now()
	for _, auctionID := range h.subscribedAuctions() {
		h.lastMu.Lock()
		prev, seen := h.last[auctionID]
		h.lastMu.Unlock()
		if !seen || prev.snap == nil {
			continue
		}

		update := TimeUpdate{Type: msgTimeUpdate, AuctionID: auctionID}
		switch {
		case prev.snap.Round != nil:
			end := prev.snap.Round.EndedAt
			if prev.snap.Round.ExtendedUntil != nil && *prev.snap.Round.ExtendedUntil > end {
				end = *prev.snap.Round.ExtendedUntil
			}
			remaining := end - now.UnixMilli()
			if remaining < 0 {
				remaining = 0
			}
			update.Round = &TimeUpdateRing{Idx: prev.snap.Round.Idx, TimeRemainingMs: remaining}
		case prev.snap.Auction.TimeUntilStartMs != nil:
			// Recompute from the stored snapshot's base rather than reusing
			// the stale value.
			until := *prev.snap.Auction.TimeUntilStartMs - now.Sub(prev.at).Milliseconds()
			if until < 0 {
				until = 0
			}
			update.TimeUntilStartMs = &until
		default:
			continue
		}

		frame, err := json.Marshal(update)
		if err != nil {
			log.Error().Err(err).Msg("encode time update")
			continue
		}
		for _, conn := range h.connsFor(auctionID) {
			h.deliver(conn, frame)
		}
	}
}
