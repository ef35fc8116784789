package models

import "time"

// Round is one bidding window of an auction. Identity is (auction_id, idx);
// the pair is unique in the durable store.
type Round struct {
	ID            string     `json:"id" bson:"_id"`
	AuctionID     string     `json:"auction_id" bson:"auction_id"`
	Idx           int        `json:"idx" bson:"idx"`
	StartedAt     time.Time  `json:"started_at" bson:"started_at"`
	EndedAt       time.Time  `json:"ended_at" bson:"ended_at"`
	ExtendedUntil *time.Time `json:"extended_until,omitempty" bson:"extended_until,omitempty"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at"`
}

// EffectiveEnd is the actual deadline at which the round closes:
// extended_until when anti-sniping has stretched the round, ended_at otherwise.
func (r *Round) EffectiveEnd() time.Time {
	if r.ExtendedUntil != nil && r.ExtendedUntil.After(r.EndedAt) {
		return *r.ExtendedUntil
	}
	return r.EndedAt
}

// TimeRemaining returns the time left until the effective end, floored at zero.
func (r *Round) TimeRemaining(now time.Time) time.Duration {
	rem := r.EffectiveEnd().Sub(now)
	if rem < 0 {
		return 0
	}
	return rem
}
