package durable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mcdev12/gavel/go/internal/models"
)

// RoundRepo persists round documents. The unique (auction_id, idx) index is
// the guard against concurrent round creation.
type RoundRepo struct {
	coll *mongo.Collection
}

// CreateOrGet inserts the round; when a concurrent driver already created
// (auction_id, idx), the existing document is returned instead.
func (r *RoundRepo) CreateOrGet(ctx context.Context, round *models.Round) (*models.Round, error) {
	_, err := r.coll.InsertOne(ctx, round)
	if err == nil {
		return round, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("insert round: %w", err)
	}
	existing, err := r.Get(ctx, round.AuctionID, round.Idx)
	if err != nil {
		return nil, fmt.Errorf("fetch conflicting round: %w", err)
	}
	return existing, nil
}

// Get fetches the round with the given auction and index.
func (r *RoundRepo) Get(ctx context.Context, auctionID string, idx int) (*models.Round, error) {
	var round models.Round
	err := r.coll.FindOne(ctx, bson.M{"auction_id": auctionID, "idx": idx}).Decode(&round)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get round: %w", err)
	}
	return &round, nil
}

// GetByID fetches a round by its id.
func (r *RoundRepo) GetByID(ctx context.Context, id string) (*models.Round, error) {
	var round models.Round
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&round)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get round by id: %w", err)
	}
	return &round, nil
}

// ExtendUntil raises extended_until monotonically. Returns false when the
// stored value is already at or past the requested time.
func (r *RoundRepo) ExtendUntil(ctx context.Context, id string, until time.Time) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{
			"_id": id,
			"$or": bson.A{
				bson.M{"extended_until": bson.M{"$exists": false}},
				bson.M{"extended_until": bson.M{"$lt": until}},
			},
		},
		bson.M{"$set": bson.M{"extended_until": until}},
	)
	if err != nil {
		return false, fmt.Errorf("extend round: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

// ListByAuction returns every round of an auction in index order.
func (r *RoundRepo) ListByAuction(ctx context.Context, auctionID string) ([]*models.Round, error) {
	cur, err := r.coll.Find(ctx, bson.M{"auction_id": auctionID},
		options.Find().SetSort(bson.D{{Key: "idx", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer cur.Close(ctx)

	var out []*models.Round
	for cur.Next(ctx) {
		var round models.Round
		if err := cur.Decode(&round); err != nil {
			return nil, fmt.Errorf("decode round: %w", err)
		}
		out = append(out, &round)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate rounds: %w", err)
	}
	return out, nil
}
