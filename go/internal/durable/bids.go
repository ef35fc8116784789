package durable

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mcdev12/gavel/go/internal/models"
)

// BidRepo is the eventually-consistent mirror of hot-store bids. The mirror
// synchronizer upserts here; after finalization this is the only remaining
// record of the auction's bids.
type BidRepo struct {
	coll *mongo.Collection
}

// Upsert writes the bid keyed by (auction_id, round_id, user_id).
func (r *BidRepo) Upsert(ctx context.Context, bid *models.Bid) error {
	filter := bson.M{
		"auction_id": bid.AuctionID,
		"round_id":   bid.RoundID,
		"user_id":    bid.UserID,
	}
	update := bson.M{
		"$set": bson.M{
			"amount":              bid.Amount,
			"place_id":            bid.PlaceID,
			"is_top3_sniping_bid": bid.IsTop3SnipingBid,
			"updated_at":          bid.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"created_at": bid.CreatedAt,
		},
	}
	if bid.IdempotencyKey != "" {
		update["$setOnInsert"].(bson.M)["idempotency_key"] = bid.IdempotencyKey
	}
	_, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("upsert bid: %w", err)
	}
	return nil
}

// MarkSniping flags a bid as having triggered an anti-sniping extension.
func (r *BidRepo) MarkSniping(ctx context.Context, auctionID, roundID string, userID int64) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"auction_id": auctionID, "round_id": roundID, "user_id": userID},
		bson.M{"$set": bson.M{"is_top3_sniping_bid": true}},
	)
	if err != nil {
		return fmt.Errorf("mark sniping bid: %w", err)
	}
	return nil
}

// GetUserBid fetches one user's bid in a round.
func (r *BidRepo) GetUserBid(ctx context.Context, auctionID, roundID string, userID int64) (*models.Bid, error) {
	var bid models.Bid
	err := r.coll.FindOne(ctx, bson.M{
		"auction_id": auctionID,
		"round_id":   roundID,
		"user_id":    userID,
	}).Decode(&bid)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user bid: %w", err)
	}
	return &bid, nil
}

// ListByRound returns a round's bids ordered amount desc, updated asc — the
// same order the hot ranking encodes.
func (r *BidRepo) ListByRound(ctx context.Context, auctionID, roundID string) ([]*models.Bid, error) {
	cur, err := r.coll.Find(ctx,
		bson.M{"auction_id": auctionID, "round_id": roundID},
		options.Find().SetSort(bson.D{
			{Key: "amount", Value: -1},
			{Key: "updated_at", Value: 1},
			{Key: "user_id", Value: 1},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("list round bids: %w", err)
	}
	return decodeBids(ctx, cur)
}

// ListByAuction returns every bid of an auction across all rounds.
func (r *BidRepo) ListByAuction(ctx context.Context, auctionID string) ([]*models.Bid, error) {
	cur, err := r.coll.Find(ctx, bson.M{"auction_id": auctionID})
	if err != nil {
		return nil, fmt.Errorf("list auction bids: %w", err)
	}
	return decodeBids(ctx, cur)
}

func decodeBids(ctx context.Context, cur *mongo.Cursor) ([]*models.Bid, error) {
	defer cur.Close(ctx)
	var out []*models.Bid
	for cur.Next(ctx) {
		var bid models.Bid
		if err := cur.Decode(&bid); err != nil {
			return nil, fmt.Errorf("decode bid: %w", err)
		}
		out = append(out, &bid)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate bids: %w", err)
	}
	return out, nil
}
