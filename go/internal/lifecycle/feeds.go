package lifecycle

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/durable"
)

// RunChangeFeedConsumer tails the auctions change feed and routes every
// event into the same wake path the reconciler uses; the scheduler re-reads
// authoritative state, so the event itself carries no decision.
func (m *Manager) RunChangeFeedConsumer(ctx context.Context) error {
	feedCh := make(chan durable.ChangeEvent, 256)
	errCh := make(chan error, 1)

	go func() {
		errCh <- m.db.WatchAuctions(ctx, feedCh)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if errors.Is(err, durable.ErrChangeFeedUnavailable) {
				log.Warn().Msg("change feed unavailable (no replicated log); reconciler is the only driver")
				return nil
			}
			if err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("change feed terminated")
			}
			return nil
		case ev := <-feedCh:
			log.Debug().
				Str("auction_id", ev.AuctionID).
				Str("op", ev.OperationType).
				Msg("auction change event")
			m.Wake()
			m.publisher.AuctionDirty(ev.AuctionID, false)
		}
	}
}

// RunReconciler wakes the scheduler on a fixed cadence so overdue
// transitions are caught even when the change feed is silent or down.
func (m *Manager) RunReconciler(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.tuning.ReconcileInterval)
	defer ticker.Stop()

	log.Info().
		Str("instance", m.instanceID).
		Dur("interval", m.tuning.ReconcileInterval).
		Msg("reconciler started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			m.Wake()
		}
	}
}
