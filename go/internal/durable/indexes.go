package durable

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates every index the engine relies on. Creation is
// idempotent; existing indexes are left alone.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		collAuctions: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "start_datetime", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "creator_id", Value: 1}}},
		},
		collRounds: {
			{
				Keys:    bson.D{{Key: "auction_id", Value: 1}, {Key: "idx", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		collBids: {
			{
				Keys:    bson.D{{Key: "idempotency_key", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
			{Keys: bson.D{{Key: "auction_id", Value: 1}, {Key: "round_id", Value: 1}, {Key: "amount", Value: -1}}},
			{
				Keys:    bson.D{{Key: "auction_id", Value: 1}, {Key: "round_id", Value: 1}, {Key: "user_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		collDeliveries: {
			{
				Keys:    bson.D{{Key: "auction_id", Value: 1}, {Key: "round_id", Value: 1}, {Key: "winner_user_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}

	for coll, models := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes for %s: %w", coll, err)
		}
	}
	return nil
}
