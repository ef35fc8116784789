package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/hotstore"
	"github.com/mcdev12/gavel/go/internal/models"
)

const carryPollTimeout = 2 * time.Second

// CarryAmounts groups a round's non-winning bids by user. Defensive
// grouping: a user holds one bid per round, but summing keeps replayed or
// merged inputs correct.
func CarryAmounts(bids []models.Bid, winnersPerRound int) map[int64]int64 {
	ranked := SortRanking(bids)
	if len(ranked) <= winnersPerRound {
		return nil
	}
	carried := make(map[int64]int64)
	for _, b := range ranked[winnersPerRound:] {
		carried[b.UserID] += b.Amount
	}
	return carried
}

// RunCarryWorker drains the transfer queue, moving losing bids into the
// next round. One task is processed at a time; the in-memory done set makes
// each (current_round, next_round) pair drain exactly once per process.
func (m *Manager) RunCarryWorker(ctx context.Context) error {
	log.Info().Str("instance", m.instanceID).Msg("carry worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("instance", m.instanceID).Msg("carry worker shutting down")
			return nil
		default:
		}

		task, err := m.hot.DequeueTransfer(ctx, carryPollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("transfer dequeue failed")
			continue
		}
		if task == nil {
			continue
		}
		m.processCarry(ctx, task)
	}
}

func carryPairKey(task *hotstore.TransferTask) string {
	return task.CurrentRoundID + ":" + task.NextRoundID
}

// processCarry applies one carry task. On a transient failure the task is
// re-entered into the queue; the deterministic transfer keys make the replay
// at-most-once per user.
func (m *Manager) processCarry(ctx context.Context, task *hotstore.TransferTask) {
	pair := carryPairKey(task)
	m.carryDoneMu.Lock()
	if m.carryDone[pair] {
		m.carryDoneMu.Unlock()
		log.Debug().Str("auction_id", task.AuctionID).Str("pair", pair).Msg("duplicate carry task ignored")
		return
	}
	m.carryDone[pair] = true
	m.carryDoneMu.Unlock()

	if err := m.carryRound(ctx, task); err != nil {
		log.Error().
			Err(err).
			Str("auction_id", task.AuctionID).
			Str("current_round_id", task.CurrentRoundID).
			Msg("carry failed, re-enqueueing task")

		m.carryDoneMu.Lock()
		delete(m.carryDone, pair)
		m.carryDoneMu.Unlock()

		if err := m.hot.EnqueueTransfer(ctx, *task); err != nil {
			log.Error().Err(err).Str("auction_id", task.AuctionID).Msg("carry re-enqueue failed")
		}
	}
}

func (m *Manager) carryRound(ctx context.Context, task *hotstore.TransferTask) error {
	bids, err := m.loadRoundBids(ctx, task.AuctionID, task.CurrentRoundID)
	if err != nil {
		return fmt.Errorf("load carried round bids: %w", err)
	}

	carried := CarryAmounts(bids, task.WinnersPerRound)
	if len(carried) == 0 {
		return nil
	}

	nowMs := m.clock.Now().UnixMilli()
	for userID, amount := range carried {
		key := fmt.Sprintf("transfer-%s-%d-%d", task.CurrentRoundID, userID, task.EnqueuedAtMs)
		final, applied, err := m.hot.CarryBid(ctx, hotstore.CarryArgs{
			AuctionID:      task.AuctionID,
			NextRoundID:    task.NextRoundID,
			UserID:         userID,
			Amount:         amount,
			IdempotencyKey: key,
			NowMs:          nowMs,
		})
		if err != nil {
			return fmt.Errorf("carry bid for user %d: %w", userID, err)
		}
		if applied {
			log.Debug().
				Str("auction_id", task.AuctionID).
				Int64("user_id", userID).
				Int64("carried", amount).
				Int64("next_round_total", final).
				Msg("bid carried to next round")
		}
	}

	m.publisher.AuctionDirty(task.AuctionID, false)
	log.Info().
		Str("auction_id", task.AuctionID).
		Str("current_round_id", task.CurrentRoundID).
		Str("next_round_id", task.NextRoundID).
		Int("users", len(carried)).
		Msg("round carry processed")
	return nil
}
