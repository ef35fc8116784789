package models

import (
	"math"
	"time"
)

// AuctionStatus defines the lifecycle state of an auction.
type AuctionStatus string

const (
	AuctionStatusDraft    AuctionStatus = "DRAFT"
	AuctionStatusReleased AuctionStatus = "RELEASED"
	AuctionStatusLive     AuctionStatus = "LIVE"
	AuctionStatusFinished AuctionStatus = "FINISHED"
	AuctionStatusDeleted  AuctionStatus = "DELETED"
)

// CanTransitionTo reports whether the status machine allows moving to next.
// Transitions are monotone: DRAFT → RELEASED → LIVE → FINISHED, with DELETED
// reachable only from DRAFT.
func (s AuctionStatus) CanTransitionTo(next AuctionStatus) bool {
	switch s {
	case AuctionStatusDraft:
		return next == AuctionStatusReleased || next == AuctionStatusDeleted
	case AuctionStatusReleased:
		return next == AuctionStatusLive
	case AuctionStatusLive:
		return next == AuctionStatusFinished
	default:
		return false
	}
}

// Auction represents a multi-round sealed-bid auction. Fields other than
// Status, CurrentRoundIdx and RemainingItemsCount are immutable once the
// auction leaves DRAFT.
type Auction struct {
	ID                  string        `json:"id" bson:"_id"`
	Name                string        `json:"name,omitempty" bson:"name,omitempty"`
	CreatorID           int64         `json:"creator_id" bson:"creator_id"`
	ItemName            string        `json:"item_name" bson:"item_name"`
	MinBid              int64         `json:"min_bid" bson:"min_bid"`
	WinnersCountTotal   int           `json:"winners_count_total" bson:"winners_count_total"`
	RoundsCount         int           `json:"rounds_count" bson:"rounds_count"`
	FirstRoundDuration  *Duration     `json:"first_round_duration_ms,omitempty" bson:"first_round_duration_ms,omitempty"`
	RoundDuration       Duration      `json:"round_duration_ms" bson:"round_duration_ms"`
	StartDatetime       time.Time     `json:"start_datetime" bson:"start_datetime"`
	Status              AuctionStatus `json:"status" bson:"status"`
	CurrentRoundIdx     int           `json:"current_round_idx" bson:"current_round_idx"`
	RemainingItemsCount int           `json:"remaining_items_count" bson:"remaining_items_count"`
	CreatedAt           time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at" bson:"updated_at"`
}

// WinnersPerRound is round(N/R), the number of items awarded per round.
func (a *Auction) WinnersPerRound() int {
	return int(math.Round(float64(a.WinnersCountTotal) / float64(a.RoundsCount)))
}

// MinBidForRound scales the base minimum bid by 5% per round index,
// rounded to the nearest integer.
func (a *Auction) MinBidForRound(idx int) int64 {
	return int64(math.Round(float64(a.MinBid) * (1 + 0.05*float64(idx))))
}

// DurationForRound returns the configured duration for round idx. Round 0 may
// carry a distinct first-round duration.
func (a *Auction) DurationForRound(idx int) time.Duration {
	if idx == 0 && a.FirstRoundDuration != nil {
		return a.FirstRoundDuration.Std()
	}
	return a.RoundDuration.Std()
}

// PlannedEnd is the end time assuming no anti-sniping extensions.
func (a *Auction) PlannedEnd() time.Time {
	total := a.DurationForRound(0)
	for i := 1; i < a.RoundsCount; i++ {
		total += a.RoundDuration.Std()
	}
	return a.StartDatetime.Add(total)
}

// IsLastRound reports whether idx is the final round of the auction.
func (a *Auction) IsLastRound(idx int) bool {
	return idx >= a.RoundsCount-1
}
