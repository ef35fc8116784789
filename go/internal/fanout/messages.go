package fanout

import "encoding/json"

// Inbound messages from subscribers.

// ClientMessage is the envelope every inbound frame decodes into.
type ClientMessage struct {
	Type           string `json:"type"`
	AuctionID      string `json:"auction_id,omitempty"`
	UserID         int64  `json:"user_id,omitempty"`
	Amount         int64  `json:"amount,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	AddToExisting  bool   `json:"add_to_existing,omitempty"`
}

const (
	msgSubscribe = "subscribe"
	msgPing      = "ping"
	msgBid       = "bid"
)

// Outbound messages to subscribers.

const (
	msgPong       = "pong"
	msgSnapshot   = "snapshot"
	msgTimeUpdate = "time_update"
	msgBidSuccess = "bid_success"
	msgBidError   = "bid_error"
	msgError      = "error"
)

// BidEntry is one ranking row in a snapshot. UserID is the external string
// form of the integer identity.
type BidEntry struct {
	UserID  string `json:"user_id"`
	Amount  int64  `json:"amount"`
	PlaceID int    `json:"place_id"`
}

// AuctionState is the auction block of a snapshot.
type AuctionState struct {
	ID                  string `json:"id"`
	Name                string `json:"name,omitempty"`
	ItemName            string `json:"item_name"`
	Status              string `json:"status"`
	CurrentRoundIdx     int    `json:"current_round_idx"`
	RoundsCount         int    `json:"rounds_count"`
	RemainingItemsCount int    `json:"remaining_items_count"`
	MinBidForRound      int64  `json:"min_bid_for_round"`
	BaseMinBid          int64  `json:"base_min_bid"`
	TimeUntilStartMs    *int64 `json:"time_until_start_ms,omitempty"`
}

// RoundState is the round block of a snapshot.
type RoundState struct {
	Idx             int    `json:"idx"`
	StartedAt       int64  `json:"started_at"`
	EndedAt         int64  `json:"ended_at"`
	ExtendedUntil   *int64 `json:"extended_until,omitempty"`
	TimeRemainingMs int64  `json:"time_remaining_ms"`
}

// Snapshot is the full state payload sent on subscribe and on broadcast.
// YourBid and YourPlace are personalized per connection.
type Snapshot struct {
	Type      string       `json:"type"`
	Auction   AuctionState `json:"auction"`
	Round     *RoundState  `json:"round,omitempty"`
	TopBids   []BidEntry   `json:"top_bids"`
	AllBids   []BidEntry   `json:"all_bids"`
	YourBid   *BidEntry    `json:"your_bid,omitempty"`
	YourPlace int          `json:"your_place,omitempty"`
}

// TimeUpdate is the lightweight tick payload; it carries no ranking data.
type TimeUpdate struct {
	Type             string          `json:"type"`
	AuctionID        string          `json:"auction_id"`
	Round            *TimeUpdateRing `json:"round,omitempty"`
	TimeUntilStartMs *int64          `json:"time_until_start_ms,omitempty"`
}

// TimeUpdateRing is the round portion of a time update.
type TimeUpdateRing struct {
	Idx             int   `json:"idx"`
	TimeRemainingMs int64 `json:"time_remaining_ms"`
}

// ErrorMessage is the rejection envelope: a stable kind plus optional
// structured context.
type ErrorMessage struct {
	Type    string                 `json:"type"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// BidSuccess wraps the bid engine's response.
type BidSuccess struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
