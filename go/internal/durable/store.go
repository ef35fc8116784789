package durable

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ErrNotFound is returned when a referenced document does not exist.
var ErrNotFound = errors.New("not found")

// Collection names.
const (
	collAuctions   = "auctions"
	collRounds     = "rounds"
	collBids       = "bids"
	collUsers      = "users"
	collDeliveries = "deliveries"
)

// Store owns the Mongo database handle and the per-collection repositories.
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	Auctions   *AuctionRepo
	Rounds     *RoundRepo
	Bids       *BidRepo
	Users      *UserRepo
	Deliveries *DeliveryRepo
}

// Connect opens the client, pings the server and wires the repositories.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	return &Store{
		client:     client,
		db:         db,
		Auctions:   &AuctionRepo{coll: db.Collection(collAuctions)},
		Rounds:     &RoundRepo{coll: db.Collection(collRounds)},
		Bids:       &BidRepo{coll: db.Collection(collBids)},
		Users:      &UserRepo{coll: db.Collection(collUsers)},
		Deliveries: &DeliveryRepo{coll: db.Collection(collDeliveries)},
	}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies connectivity, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}
