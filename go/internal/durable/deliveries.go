package durable

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mcdev12/gavel/go/internal/models"
)

// DeliveryRepo persists delivery records. The unique
// (auction_id, round_id, winner_user_id) index guards against
// double-creation when a round finish is retried.
type DeliveryRepo struct {
	coll *mongo.Collection
}

// Create inserts a delivery; a duplicate of the unique triple is a no-op so
// FinishRound retries stay at-most-once.
func (r *DeliveryRepo) Create(ctx context.Context, d *models.Delivery) error {
	_, err := r.coll.InsertOne(ctx, d)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// ListPendingBefore returns PENDING deliveries created at or before cutoff,
// due to be flipped to DELIVERED.
func (r *DeliveryRepo) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*models.Delivery, error) {
	cur, err := r.coll.Find(ctx, bson.M{
		"status":     models.DeliveryStatusPending,
		"created_at": bson.M{"$lte": cutoff},
	})
	if err != nil {
		return nil, fmt.Errorf("list pending deliveries: %w", err)
	}
	defer cur.Close(ctx)

	var out []*models.Delivery
	for cur.Next(ctx) {
		var d models.Delivery
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode delivery: %w", err)
		}
		out = append(out, &d)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return out, nil
}

// MarkDelivered flips a delivery to DELIVERED.
func (r *DeliveryRepo) MarkDelivered(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.DeliveryStatusPending},
		bson.M{"$set": bson.M{"status": models.DeliveryStatusDelivered, "delivered_at": now}},
	)
	if err != nil {
		return fmt.Errorf("mark delivery delivered: %w", err)
	}
	return nil
}

// ListByAuction returns all deliveries of an auction.
func (r *DeliveryRepo) ListByAuction(ctx context.Context, auctionID string) ([]*models.Delivery, error) {
	cur, err := r.coll.Find(ctx, bson.M{"auction_id": auctionID})
	if err != nil {
		return nil, fmt.Errorf("list auction deliveries: %w", err)
	}
	defer cur.Close(ctx)

	var out []*models.Delivery
	for cur.Next(ctx) {
		var d models.Delivery
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode delivery: %w", err)
		}
		out = append(out, &d)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return out, nil
}
