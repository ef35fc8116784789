package hotstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v9"
)

// TransferTask is one round-carry unit of work. EnqueuedAtMs is stamped once
// at enqueue time and reused for the deterministic transfer idempotency keys,
// so replays of the same task are no-ops.
type TransferTask struct {
	AuctionID       string `json:"auction_id"`
	CurrentRoundID  string `json:"current_round_id"`
	NextRoundID     string `json:"next_round_id"`
	WinnersPerRound int    `json:"winners_per_round"`
	EnqueuedAtMs    int64  `json:"enqueued_at"`
}

// EnqueueTransfer appends a carry task to the FIFO transfer queue.
func (s *Store) EnqueueTransfer(ctx context.Context, task TransferTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode transfer task: %w", err)
	}
	if err := s.rdb.RPush(ctx, transferQueueKey, data).Err(); err != nil {
		return fmt.Errorf("enqueue transfer task: %w", err)
	}
	return nil
}

// DequeueTransfer blocks up to timeout for the next carry task. Returns nil
// without error when the wait times out.
func (s *Store) DequeueTransfer(ctx context.Context, timeout time.Duration) (*TransferTask, error) {
	res, err := s.rdb.BLPop(ctx, timeout, transferQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue transfer task: %w", err)
	}
	// BLPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BLPOP reply of %d elements", len(res))
	}
	var task TransferTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("decode transfer task: %w", err)
	}
	return &task, nil
}
