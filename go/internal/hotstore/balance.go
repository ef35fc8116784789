package hotstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v9"
)

// Balance returns the hot balance of a user. The second return is false when
// the user has never been primed into the hot store.
func (s *Store) Balance(ctx context.Context, userID int64) (int64, bool, error) {
	raw, err := s.rdb.Get(ctx, userBalanceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("fetch balance: %w", err)
	}
	bal, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("malformed balance %q: %w", raw, err)
	}
	return bal, true, nil
}

// PrimeBalance seeds the hot balance from the durable mirror. Used at
// startup and when a user first appears.
func (s *Store) PrimeBalance(ctx context.Context, userID, balance int64) error {
	if err := s.rdb.Set(ctx, userBalanceKey(userID), balance, 0).Err(); err != nil {
		return fmt.Errorf("prime balance: %w", err)
	}
	return nil
}

// PrimeBalanceIfAbsent seeds the hot balance only when no counter exists yet,
// so a live debit is never overwritten by a stale mirror read.
func (s *Store) PrimeBalanceIfAbsent(ctx context.Context, userID, balance int64) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, userBalanceKey(userID), balance, 0).Result()
	if err != nil {
		return false, fmt.Errorf("prime balance: %w", err)
	}
	return ok, nil
}

// CreditBalance adds amount to a user's hot balance and returns the new
// value. Used by final-round refunds.
func (s *Store) CreditBalance(ctx context.Context, userID, amount int64) (int64, error) {
	newBal, err := s.rdb.IncrBy(ctx, userBalanceKey(userID), amount).Result()
	if err != nil {
		return 0, fmt.Errorf("credit balance: %w", err)
	}
	return newBal, nil
}
