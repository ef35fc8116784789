package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/gavel/go/internal/models"
)

func bid(user int64, amount int64, at time.Time) models.Bid {
	return models.Bid{UserID: user, Amount: amount, CreatedAt: at, UpdatedAt: at}
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestSortRanking(t *testing.T) {
	bids := []models.Bid{
		bid(1, 100, t0),
		bid(2, 200, t0.Add(time.Second)),
		bid(3, 150, t0.Add(2*time.Second)),
	}

	ranked := SortRanking(bids)

	require.Len(t, ranked, 3)
	assert.Equal(t, int64(2), ranked[0].UserID)
	assert.Equal(t, int64(3), ranked[1].UserID)
	assert.Equal(t, int64(1), ranked[2].UserID)
}

func TestSortRankingTieBreaksByTimeThenUser(t *testing.T) {
	bids := []models.Bid{
		bid(9, 100, t0.Add(time.Second)),
		bid(2, 100, t0),
		bid(5, 100, t0),
	}

	ranked := SortRanking(bids)

	// Earlier timestamp first; identical instants fall back to user id.
	assert.Equal(t, int64(2), ranked[0].UserID)
	assert.Equal(t, int64(5), ranked[1].UserID)
	assert.Equal(t, int64(9), ranked[2].UserID)
}

func TestWinners(t *testing.T) {
	bids := []models.Bid{
		bid(1, 100, t0),
		bid(2, 200, t0),
		bid(3, 150, t0),
	}

	winners := Winners(bids, 2)

	require.Len(t, winners, 2)
	assert.Equal(t, int64(2), winners[0].UserID)
	assert.Equal(t, int64(3), winners[1].UserID)

	assert.Len(t, Winners(bids, 5), 3)
	assert.Empty(t, Winners(nil, 2))
}

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name    string
		amounts []int64
		want    int64
	}{
		{name: "single deposit", amounts: []int64{100}, want: 100},
		{name: "pure carry", amounts: []int64{100, 100, 100}, want: 100},
		{name: "carry plus top-up", amounts: []int64{100, 150}, want: 150},
		{name: "growth each round", amounts: []int64{100, 150, 400}, want: 400},
		{name: "fresh smaller bid after a gap", amounts: []int64{300, 200}, want: 300},
		{name: "empty", amounts: nil, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewMoney(tt.amounts))
		})
	}
}

// Scenario: N=2, R=1. Three bidders, two winners; the loser gets their full
// stake back.
func TestComputeRefundsSingleRound(t *testing.T) {
	rounds := [][]models.Bid{
		{
			bid(1, 100, t0),
			bid(2, 200, t0.Add(time.Second)),
			bid(3, 150, t0.Add(2*time.Second)),
		},
	}

	refunds := ComputeRefunds(rounds, 2)

	require.Len(t, refunds, 1)
	assert.Equal(t, int64(100), refunds[1])
}

// Scenario: N=2, R=2, one winner per round. u1's 100 carries into round 1
// and loses there; only the original stake comes back. u2 and u3 won and get
// nothing.
func TestComputeRefundsCarryAcrossRounds(t *testing.T) {
	rounds := [][]models.Bid{
		{
			bid(1, 100, t0),
			bid(2, 150, t0.Add(time.Second)),
		},
		{
			bid(3, 110, t0.Add(10*time.Second)),
			bid(1, 100, t0.Add(11*time.Second)), // carried
		},
	}

	refunds := ComputeRefunds(rounds, 1)

	require.Len(t, refunds, 1)
	assert.Equal(t, int64(100), refunds[1])
}

// A user who wins an early round and never re-enters is not refunded that
// purchase even though they are not a final-round winner.
func TestComputeRefundsEarlyWinnerKeepsNoClaim(t *testing.T) {
	rounds := [][]models.Bid{
		{
			bid(1, 300, t0), // wins round 0
			bid(2, 100, t0.Add(time.Second)),
		},
		{
			bid(2, 100, t0.Add(10*time.Second)), // carried, wins round 1
		},
	}

	refunds := ComputeRefunds(rounds, 1)

	assert.Empty(t, refunds)
}

// A user who wins round 0 and stakes fresh money in round 1 gets the fresh
// increment back when they lose the final round.
func TestComputeRefundsWinThenRebid(t *testing.T) {
	rounds := [][]models.Bid{
		{
			bid(1, 300, t0), // wins round 0
			bid(2, 100, t0.Add(time.Second)),
		},
		{
			bid(1, 400, t0.Add(10*time.Second)), // fresh bid, loses
			bid(2, 500, t0.Add(11*time.Second)), // wins round 1
		},
	}

	refunds := ComputeRefunds(rounds, 1)

	require.Len(t, refunds, 1)
	// New money 300 + (400-300) = 400, minus the 300 consumed by the win.
	assert.Equal(t, int64(100), refunds[1])
}

// An empty final round has no winners, but u1's only stake paid for the
// round-0 item they won, so nothing is owed back.
func TestComputeRefundsEmptyFinalRound(t *testing.T) {
	rounds := [][]models.Bid{
		{bid(1, 100, t0)},
		nil,
	}

	refunds := ComputeRefunds(rounds, 1)

	require.Len(t, refunds, 0)
	assert.Equal(t, int64(0), refunds[1])
}

func TestComputeRefundsNoRounds(t *testing.T) {
	assert.Empty(t, ComputeRefunds(nil, 1))
}

func TestCarryAmounts(t *testing.T) {
	bids := []models.Bid{
		bid(1, 100, t0),
		bid(2, 200, t0.Add(time.Second)),
		bid(3, 150, t0.Add(2*time.Second)),
	}

	carried := CarryAmounts(bids, 1)

	require.Len(t, carried, 2)
	assert.Equal(t, int64(150), carried[3])
	assert.Equal(t, int64(100), carried[1])
}

func TestCarryAmountsAllWinners(t *testing.T) {
	bids := []models.Bid{bid(1, 100, t0)}
	assert.Empty(t, CarryAmounts(bids, 1))
	assert.Empty(t, CarryAmounts(nil, 1))
}
