package durable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrChangeFeedUnavailable reports that the deployment cannot serve change
// streams (standalone server without a replicated log). The caller falls back
// to reconciliation polling.
var ErrChangeFeedUnavailable = errors.New("change feed unavailable")

// ChangeEvent is one auction mutation observed on the change feed.
type ChangeEvent struct {
	AuctionID     string
	OperationType string
}

const (
	feedMaxRetries   = 5
	feedRetryBackoff = 2 * time.Second
)

// WatchAuctions tails the auctions collection and pushes an event per
// insert/update/replace into out. It reconnects with bounded retries; when
// the server cannot serve change streams at all it returns
// ErrChangeFeedUnavailable so the reconciler becomes the only driver.
func (s *Store) WatchAuctions(ctx context.Context, out chan<- ChangeEvent) error {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"operationType": bson.M{"$in": bson.A{"insert", "update", "replace"}},
		}}},
	}

	var resumeToken bson.Raw
	retries := 0
	for {
		opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
		if resumeToken != nil {
			opts.SetResumeAfter(resumeToken)
		}

		stream, err := s.db.Collection(collAuctions).Watch(ctx, pipeline, opts)
		if err != nil {
			if isChangeStreamUnsupported(err) {
				return ErrChangeFeedUnavailable
			}
			retries++
			if retries > feedMaxRetries {
				return fmt.Errorf("open change stream after %d retries: %w", feedMaxRetries, err)
			}
			log.Error().Err(err).Int("retry", retries).Msg("change stream open failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(feedRetryBackoff * time.Duration(retries)):
				continue
			}
		}
		retries = 0

		err = s.consumeStream(ctx, stream, out, &resumeToken)
		_ = stream.Close(context.Background())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("change stream interrupted, reconnecting")
			continue
		}
		return nil
	}
}

func (s *Store) consumeStream(ctx context.Context, stream *mongo.ChangeStream, out chan<- ChangeEvent, resumeToken *bson.Raw) error {
	for stream.Next(ctx) {
		*resumeToken = stream.ResumeToken()

		var doc struct {
			OperationType string `bson:"operationType"`
			DocumentKey   struct {
				ID string `bson:"_id"`
			} `bson:"documentKey"`
		}
		if err := stream.Decode(&doc); err != nil {
			log.Error().Err(err).Msg("failed to decode change event")
			continue
		}

		select {
		case out <- ChangeEvent{AuctionID: doc.DocumentKey.ID, OperationType: doc.OperationType}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return stream.Err()
}

// isChangeStreamUnsupported matches the server errors a standalone mongod
// raises for $changeStream.
func isChangeStreamUnsupported(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		// 40573: $changeStream only supported on replica sets.
		// 303: replica set member or mongos required (older servers).
		return cmdErr.Code == 40573 || cmdErr.Code == 303
	}
	return false
}
