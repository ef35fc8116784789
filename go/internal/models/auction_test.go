package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWinnersPerRound(t *testing.T) {
	tests := []struct {
		name    string
		winners int
		rounds  int
		want    int
	}{
		{name: "even split", winners: 10, rounds: 5, want: 2},
		{name: "single round", winners: 2, rounds: 1, want: 2},
		{name: "rounds to nearest", winners: 5, rounds: 2, want: 3},
		{name: "one per round", winners: 3, rounds: 3, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Auction{WinnersCountTotal: tt.winners, RoundsCount: tt.rounds}
			assert.Equal(t, tt.want, a.WinnersPerRound())
		})
	}
}

func TestMinBidForRound(t *testing.T) {
	a := &Auction{MinBid: 100}

	assert.Equal(t, int64(100), a.MinBidForRound(0))
	assert.Equal(t, int64(105), a.MinBidForRound(1))
	assert.Equal(t, int64(110), a.MinBidForRound(2))
	assert.Equal(t, int64(115), a.MinBidForRound(3))
}

func TestMinBidForRoundRoundsToNearest(t *testing.T) {
	a := &Auction{MinBid: 7}

	// 7 * 1.05 = 7.35 → 7; 7 * 1.15 = 8.05 → 8
	assert.Equal(t, int64(7), a.MinBidForRound(1))
	assert.Equal(t, int64(8), a.MinBidForRound(3))
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, AuctionStatusDraft.CanTransitionTo(AuctionStatusReleased))
	assert.True(t, AuctionStatusDraft.CanTransitionTo(AuctionStatusDeleted))
	assert.True(t, AuctionStatusReleased.CanTransitionTo(AuctionStatusLive))
	assert.True(t, AuctionStatusLive.CanTransitionTo(AuctionStatusFinished))

	// No back-transitions, no skips.
	assert.False(t, AuctionStatusDraft.CanTransitionTo(AuctionStatusLive))
	assert.False(t, AuctionStatusReleased.CanTransitionTo(AuctionStatusDraft))
	assert.False(t, AuctionStatusReleased.CanTransitionTo(AuctionStatusDeleted))
	assert.False(t, AuctionStatusLive.CanTransitionTo(AuctionStatusReleased))
	assert.False(t, AuctionStatusFinished.CanTransitionTo(AuctionStatusLive))
	assert.False(t, AuctionStatusDeleted.CanTransitionTo(AuctionStatusDraft))
}

func TestDurationForRound(t *testing.T) {
	first := DurationFrom(30 * time.Second)
	a := &Auction{
		FirstRoundDuration: &first,
		RoundDuration:      DurationFrom(10 * time.Second),
	}

	assert.Equal(t, 30*time.Second, a.DurationForRound(0))
	assert.Equal(t, 10*time.Second, a.DurationForRound(1))

	a.FirstRoundDuration = nil
	assert.Equal(t, 10*time.Second, a.DurationForRound(0))
}

func TestPlannedEnd(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first := DurationFrom(30 * time.Second)
	a := &Auction{
		FirstRoundDuration: &first,
		RoundDuration:      DurationFrom(10 * time.Second),
		RoundsCount:        3,
		StartDatetime:      start,
	}

	require.Equal(t, start.Add(50*time.Second), a.PlannedEnd())
}

func TestRoundEffectiveEnd(t *testing.T) {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := &Round{StartedAt: started, EndedAt: started.Add(30 * time.Second)}

	assert.Equal(t, r.EndedAt, r.EffectiveEnd())

	extended := started.Add(55 * time.Second)
	r.ExtendedUntil = &extended
	assert.Equal(t, extended, r.EffectiveEnd())

	// An extension behind ended_at never shortens the round.
	early := started.Add(10 * time.Second)
	r.ExtendedUntil = &early
	assert.Equal(t, r.EndedAt, r.EffectiveEnd())
}

func TestRoundTimeRemaining(t *testing.T) {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := &Round{StartedAt: started, EndedAt: started.Add(30 * time.Second)}

	assert.Equal(t, 30*time.Second, r.TimeRemaining(started))
	assert.Equal(t, time.Second, r.TimeRemaining(started.Add(29*time.Second)))
	assert.Equal(t, time.Duration(0), r.TimeRemaining(started.Add(31*time.Second)))
}

func TestIsLastRound(t *testing.T) {
	a := &Auction{RoundsCount: 2}
	assert.False(t, a.IsLastRound(0))
	assert.True(t, a.IsLastRound(1))
}
