package models

import "time"

// DeliveryStatus defines the fulfillment state of a won item.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "PENDING"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
	DeliveryStatusFailed    DeliveryStatus = "FAILED"
)

// Delivery records one item owed to one round winner. At most one exists per
// (auction_id, round_id, winner_user_id).
type Delivery struct {
	ID           string         `json:"id" bson:"_id"`
	AuctionID    string         `json:"auction_id" bson:"auction_id"`
	RoundID      string         `json:"round_id" bson:"round_id"`
	WinnerUserID int64          `json:"winner_user_id" bson:"winner_user_id"`
	ItemName     string         `json:"item_name" bson:"item_name"`
	Status       DeliveryStatus `json:"status" bson:"status"`
	CreatedAt    time.Time      `json:"created_at" bson:"created_at"`
	DeliveredAt  *time.Time     `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
}
