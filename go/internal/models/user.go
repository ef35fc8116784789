package models

import "time"

// User holds the internal balance counter. While any auction is LIVE the
// authoritative counter lives in the hot store; this document is the
// eventually-consistent mirror.
type User struct {
	UserID    int64     `json:"user_id" bson:"_id"`
	Balance   int64     `json:"balance" bson:"balance"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}
