package events

import "github.com/rs/zerolog/log"

// LocalBus is the single-binary bus: hints flow through a buffered channel.
type LocalBus struct {
	ch chan Hint
}

// NewLocalBus creates a bus with a buffer sized for bid bursts.
func NewLocalBus() *LocalBus {
	return &LocalBus{ch: make(chan Hint, 1024)}
}

// AuctionDirty enqueues a hint, dropping it when the buffer is full.
func (b *LocalBus) AuctionDirty(auctionID string, force bool) {
	select {
	case b.ch <- Hint{AuctionID: auctionID, Force: force}:
	default:
		log.Warn().Str("auction_id", auctionID).Msg("hint buffer full, dropping broadcast hint")
	}
}

// Hints returns the receive side of the bus.
func (b *LocalBus) Hints() <-chan Hint {
	return b.ch
}

// Close is a no-op for the local bus.
func (b *LocalBus) Close() {}
