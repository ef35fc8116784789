package bidding

import (
	"errors"
	"fmt"
)

// Kind is the stable error string surfaced to clients. These never change;
// the HTTP/WebSocket layer maps them onto status classes.
type Kind string

const (
	KindAuctionNotLive      Kind = "AUCTION_NOT_LIVE"
	KindRoundEnded          Kind = "ROUND_ENDED"
	KindRoundNotFound       Kind = "ROUND_NOT_FOUND"
	KindBelowMinBid         Kind = "BELOW_MIN_BID"
	KindNoExistingBid       Kind = "NO_EXISTING_BID"
	KindAlreadyFirstPlace   Kind = "ALREADY_FIRST_PLACE"
	KindAlreadyInWinningTop Kind = "ALREADY_IN_WINNING_TOP"
	KindInsufficientBalance Kind = "INSUFFICIENT_BALANCE"
	KindBidExists           Kind = "BID_EXISTS"
	KindAuctionNotFound     Kind = "AUCTION_NOT_FOUND"
	KindValidation          Kind = "VALIDATION"
)

// Error is a rejected bid operation with a stable kind and optional
// structured context for the client.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]interface{}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds an Error with no context.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithContext attaches one structured context field.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// KindOf extracts the stable kind from an error chain, or "" when the error
// is not a bid rejection.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}
