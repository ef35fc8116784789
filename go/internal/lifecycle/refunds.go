package lifecycle

import (
	"sort"

	"github.com/mcdev12/gavel/go/internal/models"
)

// Pure ranking and settlement arithmetic. Everything here is deterministic
// over its inputs so the boundary handlers stay thin and the rules stay
// testable without stores.

// SortRanking orders bids by amount desc, then last update asc (the moment
// the amount was reached), then user id asc — the same order the hot
// ranking-set score encodes.
func SortRanking(bids []models.Bid) []models.Bid {
	out := make([]models.Bid, len(bids))
	copy(out, bids)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// Winners returns the top winnersPerRound bids of a round.
func Winners(bids []models.Bid, winnersPerRound int) []models.Bid {
	ranked := SortRanking(bids)
	if len(ranked) > winnersPerRound {
		ranked = ranked[:winnersPerRound]
	}
	return ranked
}

// NewMoney computes the fresh funds behind a user's round-ordered amounts:
// the first deposit plus every increase beyond the previous maximum. Amounts
// that merely carried forward contribute nothing.
func NewMoney(amounts []int64) int64 {
	var total, prevMax int64
	for _, a := range amounts {
		if a > prevMax {
			total += a - prevMax
			prevMax = a
		}
	}
	return total
}

// ComputeRefunds settles a finished auction. rounds holds each round's bids
// in index order. Users who won the final round get nothing back; everyone
// else is credited the new money they staked minus what their earlier wins
// consumed, floored at zero.
func ComputeRefunds(rounds [][]models.Bid, winnersPerRound int) map[int64]int64 {
	if len(rounds) == 0 {
		return nil
	}

	type ledger struct {
		amounts  []int64
		winnings int64
	}
	ledgers := make(map[int64]*ledger)

	for idx, bids := range rounds {
		won := make(map[int64]bool)
		for _, w := range Winners(bids, winnersPerRound) {
			won[w.UserID] = true
		}
		for _, b := range SortRanking(bids) {
			l := ledgers[b.UserID]
			if l == nil {
				l = &ledger{}
				ledgers[b.UserID] = l
			}
			l.amounts = append(l.amounts, b.Amount)
			if won[b.UserID] && idx < len(rounds)-1 {
				l.winnings += b.Amount
			}
		}
	}

	finalWinners := make(map[int64]bool)
	for _, w := range Winners(rounds[len(rounds)-1], winnersPerRound) {
		finalWinners[w.UserID] = true
	}

	refunds := make(map[int64]int64)
	for userID, l := range ledgers {
		if finalWinners[userID] {
			continue
		}
		refund := NewMoney(l.amounts) - l.winnings
		if refund > 0 {
			refunds[userID] = refund
		}
	}
	return refunds
}
