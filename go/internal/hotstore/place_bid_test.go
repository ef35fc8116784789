package hotstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlaceBidReplySuccess(t *testing.T) {
	payload := `{"balance":800,"amount":200,"place":1,"record":"{\"auction_id\":\"a1\",\"round_id\":\"r1\",\"user_id\":42,\"amount\":200,\"created_at\":1700000000000,\"updated_at\":1700000000000,\"is_top3_sniping_bid\":false}"}`

	res, err := parsePlaceBidReply([]interface{}{StatusOK, payload})

	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, int64(800), res.NewBalance)
	assert.Equal(t, int64(200), res.FinalAmount)
	assert.Equal(t, 1, res.Place)
	assert.Equal(t, "a1", res.Record.AuctionID)
	assert.Equal(t, int64(42), res.Record.UserID)
	assert.Equal(t, int64(200), res.Record.Amount)
}

func TestParsePlaceBidReplyReplayCarriesOriginalPayload(t *testing.T) {
	payload := `{"balance":800,"amount":200,"place":2,"record":"{\"auction_id\":\"a1\",\"round_id\":\"r1\",\"user_id\":42,\"amount\":200,\"created_at\":1700000000000,\"updated_at\":1700000000000,\"is_top3_sniping_bid\":false}"}`

	res, err := parsePlaceBidReply([]interface{}{StatusAlreadyProcessed, payload})

	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyProcessed, res.Status)
	assert.Equal(t, int64(800), res.NewBalance)
	assert.Equal(t, 2, res.Place)
}

func TestParsePlaceBidReplyRejections(t *testing.T) {
	for _, status := range []string{
		StatusRoundEnded,
		StatusNoExistingBid,
		StatusBidExists,
		StatusAlreadyFirstPlace,
		StatusAlreadyInWinning,
		StatusBelowMinBid,
		StatusInsufficientFunds,
	} {
		res, err := parsePlaceBidReply([]interface{}{status})
		require.NoError(t, err, status)
		assert.Equal(t, status, res.Status)
	}
}

func TestParsePlaceBidReplyMalformed(t *testing.T) {
	_, err := parsePlaceBidReply("not a slice")
	assert.Error(t, err)

	_, err = parsePlaceBidReply([]interface{}{})
	assert.Error(t, err)

	_, err = parsePlaceBidReply([]interface{}{StatusOK})
	assert.Error(t, err)

	_, err = parsePlaceBidReply([]interface{}{StatusOK, "{broken"})
	assert.Error(t, err)
}
