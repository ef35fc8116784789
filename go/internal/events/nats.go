package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const (
	subjectPrefix     = "auction.broadcast."
	subjectWildcard   = "auction.broadcast.>"
	natsMaxReconnects = 60
	natsReconnectWait = 2 * time.Second
)

// NATSBus carries broadcast hints over core NATS so every replica's fan-out
// sees bids committed on any replica.
type NATSBus struct {
	nc  *nats.Conn
	sub *nats.Subscription
	ch  chan Hint
}

// ConnectNATS dials the server and subscribes to the hint subject space.
func ConnectNATS(url string) (*NATSBus, error) {
	opts := []nats.Option{
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	b := &NATSBus{nc: nc, ch: make(chan Hint, 1024)}
	sub, err := nc.Subscribe(subjectWildcard, func(msg *nats.Msg) {
		var hint Hint
		if err := json.Unmarshal(msg.Data, &hint); err != nil {
			log.Error().Err(err).Msg("malformed broadcast hint")
			return
		}
		select {
		case b.ch <- hint:
		default:
			log.Warn().Str("auction_id", hint.AuctionID).Msg("hint buffer full, dropping broadcast hint")
		}
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe to broadcast hints: %w", err)
	}
	b.sub = sub
	return b, nil
}

// AuctionDirty publishes a hint. Failures are logged, not returned: the
// snapshot tick covers the loss.
func (b *NATSBus) AuctionDirty(auctionID string, force bool) {
	data, err := json.Marshal(Hint{AuctionID: auctionID, Force: force})
	if err != nil {
		log.Error().Err(err).Msg("encode broadcast hint")
		return
	}
	if err := b.nc.Publish(subjectPrefix+auctionID, data); err != nil {
		log.Warn().Err(err).Str("auction_id", auctionID).Msg("publish broadcast hint failed")
	}
}

// Hints returns the receive side of the bus.
func (b *NATSBus) Hints() <-chan Hint {
	return b.ch
}

// Close unsubscribes from the hint subjects and closes the connection.
func (b *NATSBus) Close() {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	b.nc.Close()
}
