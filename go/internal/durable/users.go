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

// UserRepo mirrors user balances. The hot store is authoritative while any
// auction is LIVE; this collection is reconciled by the mirror synchronizer.
type UserRepo struct {
	coll *mongo.Collection
}

// Get fetches a user document.
func (r *UserRepo) Get(ctx context.Context, userID int64) (*models.User, error) {
	var u models.User
	err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// Ensure creates the user with an initial balance when absent.
func (r *UserRepo) Ensure(ctx context.Context, userID, initialBalance int64) error {
	now := time.Now().UTC()
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$setOnInsert": bson.M{
				"balance":    initialBalance,
				"created_at": now,
				"updated_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// SetBalance overwrites the mirrored balance.
func (r *UserRepo) SetBalance(ctx context.Context, userID, balance int64) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"balance": balance, "updated_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("set user balance: %w", err)
	}
	return nil
}

// List streams all user documents, used to prime the hot store at startup.
func (r *UserRepo) List(ctx context.Context) ([]*models.User, error) {
	cur, err := r.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	var out []*models.User
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		out = append(out, &u)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}
