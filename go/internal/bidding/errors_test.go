package bidding

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := NewError(KindRoundEnded, "round has ended")
	assert.Equal(t, "ROUND_ENDED: round has ended", err.Error())

	bare := &Error{Kind: KindBidExists}
	assert.Equal(t, "BID_EXISTS", bare.Error())
}

func TestWithContext(t *testing.T) {
	err := NewError(KindBelowMinBid, "too low").
		WithContext("min_bid_for_round", int64(115)).
		WithContext("place", 2)

	assert.Equal(t, int64(115), err.Context["min_bid_for_round"])
	assert.Equal(t, 2, err.Context["place"])
}

func TestKindOf(t *testing.T) {
	err := NewError(KindInsufficientBalance, "balance too low")
	assert.Equal(t, KindInsufficientBalance, KindOf(err))

	wrapped := fmt.Errorf("placing bid: %w", err)
	assert.Equal(t, KindInsufficientBalance, KindOf(wrapped))

	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
