package lifecycle

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const deliveryPollInterval = 5 * time.Second

// RunDeliveryWorker flips PENDING deliveries to DELIVERED once they have
// aged past the configured delay. The delay stands in for an external
// fulfillment callback.
func (m *Manager) RunDeliveryWorker(ctx context.Context) error {
	ticker := m.clock.NewTicker(deliveryPollInterval)
	defer ticker.Stop()

	log.Info().Str("instance", m.instanceID).Dur("delay", m.tuning.DeliveryDelay).Msg("delivery worker started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			cutoff := m.clock.Now().Add(-m.tuning.DeliveryDelay)
			pending, err := m.db.Deliveries.ListPendingBefore(ctx, cutoff)
			if err != nil {
				log.Error().Err(err).Msg("pending delivery scan failed")
				continue
			}
			for _, d := range pending {
				if err := m.db.Deliveries.MarkDelivered(ctx, d.ID); err != nil {
					log.Error().Err(err).Str("delivery_id", d.ID).Msg("delivery update failed")
					continue
				}
				log.Info().
					Str("auction_id", d.AuctionID).
					Str("delivery_id", d.ID).
					Int64("winner_user_id", d.WinnerUserID).
					Msg("delivery completed")
			}
		}
	}
}
