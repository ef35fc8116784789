package models

import "time"

// Bid is a user's position in one round. Amount is the sum of every
// augmentation since the round started; it only grows. At most one bid exists
// per (auction_id, round_id, user_id).
type Bid struct {
	AuctionID        string    `json:"auction_id" bson:"auction_id"`
	RoundID          string    `json:"round_id" bson:"round_id"`
	UserID           int64     `json:"user_id" bson:"user_id"`
	Amount           int64     `json:"amount" bson:"amount"`
	PlaceID          int       `json:"place_id" bson:"place_id"`
	IdempotencyKey   string    `json:"idempotency_key,omitempty" bson:"idempotency_key,omitempty"`
	IsTop3SnipingBid bool      `json:"is_top3_sniping_bid" bson:"is_top3_sniping_bid"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" bson:"updated_at"`
}
