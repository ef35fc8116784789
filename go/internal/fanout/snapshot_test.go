package fanout

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Type: msgSnapshot,
		Auction: AuctionState{
			ID:              "a1",
			Status:          "LIVE",
			CurrentRoundIdx: 0,
		},
		TopBids: []BidEntry{
			{UserID: "2", Amount: 200, PlaceID: 1},
			{UserID: "3", Amount: 150, PlaceID: 2},
		},
		AllBids: []BidEntry{
			{UserID: "2", Amount: 200, PlaceID: 1},
			{UserID: "3", Amount: 150, PlaceID: 2},
			{UserID: "1", Amount: 100, PlaceID: 3},
		},
	}
}

func TestContentHashStableForEqualState(t *testing.T) {
	assert.Equal(t, contentHash(sampleSnapshot()), contentHash(sampleSnapshot()))
}

func TestContentHashChangesWithRanking(t *testing.T) {
	base := contentHash(sampleSnapshot())

	augmented := sampleSnapshot()
	augmented.TopBids[0].Amount = 250
	assert.NotEqual(t, base, contentHash(augmented))

	grown := sampleSnapshot()
	grown.AllBids = append(grown.AllBids, BidEntry{UserID: "4", Amount: 50, PlaceID: 4})
	assert.NotEqual(t, base, contentHash(grown))

	moved := sampleSnapshot()
	moved.Auction.CurrentRoundIdx = 1
	assert.NotEqual(t, base, contentHash(moved))
}

func TestContentHashIgnoresTiming(t *testing.T) {
	base := sampleSnapshot()
	withRound := sampleSnapshot()
	withRound.Round = &RoundState{Idx: 0, TimeRemainingMs: 12345}

	// Countdown movement alone must not defeat the dedup.
	assert.Equal(t, contentHash(base), contentHash(withRound))
}

func TestPersonalizeFillsCallerBid(t *testing.T) {
	conn := &Conn{userID: 3}

	frame := conn.personalize(sampleSnapshot())
	require.NotNil(t, frame)

	var out Snapshot
	require.NoError(t, json.Unmarshal(frame, &out))
	require.NotNil(t, out.YourBid)
	assert.Equal(t, "3", out.YourBid.UserID)
	assert.Equal(t, int64(150), out.YourBid.Amount)
	assert.Equal(t, 2, out.YourPlace)
}

func TestPersonalizeAnonymous(t *testing.T) {
	conn := &Conn{}

	frame := conn.personalize(sampleSnapshot())
	require.NotNil(t, frame)

	var out Snapshot
	require.NoError(t, json.Unmarshal(frame, &out))
	assert.Nil(t, out.YourBid)
	assert.Zero(t, out.YourPlace)
}

func TestPersonalizeDoesNotMutateShared(t *testing.T) {
	snap := sampleSnapshot()
	conn := &Conn{userID: 2}

	_ = conn.personalize(snap)

	assert.Nil(t, snap.YourBid)
	assert.Zero(t, snap.YourPlace)
}
