package durable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mcdev12/gavel/go/internal/models"
)

// AuctionRepo persists auction documents. Status transitions are
// compare-and-set so concurrent lifecycle drivers (change feed + reconciler)
// cannot double-apply one.
type AuctionRepo struct {
	coll *mongo.Collection
}

// Create inserts a new auction document.
func (r *AuctionRepo) Create(ctx context.Context, a *models.Auction) error {
	if _, err := r.coll.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("insert auction: %w", err)
	}
	return nil
}

// Get fetches an auction by id.
func (r *AuctionRepo) Get(ctx context.Context, id string) (*models.Auction, error) {
	var a models.Auction
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get auction: %w", err)
	}
	return &a, nil
}

// UpdateAuctionParams are the fields editable while an auction is DRAFT.
type UpdateAuctionParams struct {
	Name               *string
	ItemName           *string
	MinBid             *int64
	WinnersCountTotal  *int
	RoundsCount        *int
	FirstRoundDuration *models.Duration
	RoundDuration      *models.Duration
	StartDatetime      *time.Time
}

// UpdateDraft applies edits to a DRAFT auction owned by creatorID. Returns
// false when no matching draft exists (wrong status or wrong creator).
func (r *AuctionRepo) UpdateDraft(ctx context.Context, id string, creatorID int64, p UpdateAuctionParams) (bool, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.ItemName != nil {
		set["item_name"] = *p.ItemName
	}
	if p.MinBid != nil {
		set["min_bid"] = *p.MinBid
	}
	if p.WinnersCountTotal != nil {
		set["winners_count_total"] = *p.WinnersCountTotal
		set["remaining_items_count"] = *p.WinnersCountTotal
	}
	if p.RoundsCount != nil {
		set["rounds_count"] = *p.RoundsCount
	}
	if p.FirstRoundDuration != nil {
		set["first_round_duration_ms"] = *p.FirstRoundDuration
	}
	if p.RoundDuration != nil {
		set["round_duration_ms"] = *p.RoundDuration
	}
	if p.StartDatetime != nil {
		set["start_datetime"] = *p.StartDatetime
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{
		"_id":        id,
		"status":     models.AuctionStatusDraft,
		"creator_id": creatorID,
	}, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("update draft auction: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// TransitionStatus moves an auction from one status to the next, returning
// false when the document was not in the expected source status.
func (r *AuctionRepo) TransitionStatus(ctx context.Context, id string, from, to models.AuctionStatus) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("transition auction %s -> %s: %w", from, to, err)
	}
	return res.ModifiedCount == 1, nil
}

// SetCurrentRound bumps current_round_idx.
func (r *AuctionRepo) SetCurrentRound(ctx context.Context, id string, idx int) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"current_round_idx": idx, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("set current round: %w", err)
	}
	return nil
}

// DecrementRemaining subtracts served winners from remaining_items_count
// without letting it go negative.
func (r *AuctionRepo) DecrementRemaining(ctx context.Context, id string, by int) error {
	if by <= 0 {
		return nil
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "remaining_items_count": bson.M{"$gte": by}},
		bson.M{"$inc": bson.M{"remaining_items_count": -by}},
	)
	if err != nil {
		return fmt.Errorf("decrement remaining items: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	// Fewer items left than winners served; floor at zero.
	_, err = r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"remaining_items_count": 0}},
	)
	if err != nil {
		return fmt.Errorf("floor remaining items: %w", err)
	}
	return nil
}

// ListByStatus returns all auctions in any of the given statuses.
func (r *AuctionRepo) ListByStatus(ctx context.Context, statuses ...models.AuctionStatus) ([]*models.Auction, error) {
	cur, err := r.coll.Find(ctx, bson.M{"status": bson.M{"$in": statuses}})
	if err != nil {
		return nil, fmt.Errorf("list auctions by status: %w", err)
	}
	defer cur.Close(ctx)

	var out []*models.Auction
	for cur.Next(ctx) {
		var a models.Auction
		if err := cur.Decode(&a); err != nil {
			return nil, fmt.Errorf("decode auction: %w", err)
		}
		out = append(out, &a)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate auctions: %w", err)
	}
	return out, nil
}

// SoftDelete marks a DRAFT auction DELETED. Only the creator may delete.
func (r *AuctionRepo) SoftDelete(ctx context.Context, id string, creatorID int64) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.AuctionStatusDraft, "creator_id": creatorID},
		bson.M{"$set": bson.M{"status": models.AuctionStatusDeleted, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("soft delete auction: %w", err)
	}
	return res.ModifiedCount == 1, nil
}
