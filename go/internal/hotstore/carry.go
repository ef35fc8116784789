package hotstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v9"
)

// CarryArgs moves a losing bid's amount into the next round. No balance is
// touched: the money was debited when originally staked.
type CarryArgs struct {
	AuctionID      string
	NextRoundID    string
	UserID         int64
	Amount         int64
	IdempotencyKey string
	NowMs          int64
}

// carryBidScript merges a carried amount into the user's next-round bid (or
// creates one), re-scores the ranking entry and marks the deterministic
// transfer key, atomically. Replays with the same key are skipped.
//
// KEYS: 1=bid 2=round ranking set 3=idempotency
// ARGV: 1=user_id 2=amount 3=now_ms 4=bid_ttl_sec 5=idem_ttl_sec
//       6=auction_id 7=round_id
var carryBidScript = redis.NewScript(`
if redis.call('GET', KEYS[3]) then
  return {'ALREADY_PROCESSED'}
end

local amount = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])
local created = now_ms
local final = amount
local sniping = false

local existing = redis.call('GET', KEYS[1])
if existing then
  local bid = cjson.decode(existing)
  final = final + tonumber(bid.amount)
  created = tonumber(bid.created_at)
  if bid.is_top3_sniping_bid then sniping = true end
end

local record = cjson.encode({
  auction_id = ARGV[6],
  round_id = ARGV[7],
  user_id = tonumber(ARGV[1]),
  amount = final,
  created_at = created,
  updated_at = now_ms,
  is_top3_sniping_bid = sniping,
})
redis.call('SET', KEYS[1], record, 'EX', tonumber(ARGV[4]))

local score = -(final * 1e12) + now_ms
redis.call('ZADD', KEYS[2], score, ARGV[1])
redis.call('EXPIRE', KEYS[2], tonumber(ARGV[4]))
redis.call('SET', KEYS[3], '1', 'EX', tonumber(ARGV[5]))

return {'OK', tostring(final)}
`)

// CarryBid applies one carry merge. Returns the user's resulting next-round
// amount and whether the merge was applied (false on idempotent replay).
func (s *Store) CarryBid(ctx context.Context, args CarryArgs) (int64, bool, error) {
	keys := []string{
		bidKey(args.AuctionID, args.NextRoundID, args.UserID),
		roundBidsKey(args.AuctionID, args.NextRoundID),
		idempotencyKey(args.IdempotencyKey),
	}
	argv := []interface{}{
		strconv.FormatInt(args.UserID, 10),
		args.Amount,
		args.NowMs,
		int(BidTTL.Seconds()),
		int(IdempotencyTTL.Seconds()),
		args.AuctionID,
		args.NextRoundID,
	}

	raw, err := carryBidScript.Run(ctx, s.rdb, keys, argv...).Result()
	if err != nil {
		return 0, false, fmt.Errorf("carry bid script: %w", err)
	}
	parts, ok := raw.([]interface{})
	if !ok || len(parts) == 0 {
		return 0, false, fmt.Errorf("unexpected carry reply %T", raw)
	}
	status, _ := parts[0].(string)
	if status == StatusAlreadyProcessed {
		return 0, false, nil
	}
	if status != StatusOK || len(parts) < 2 {
		return 0, false, fmt.Errorf("unexpected carry status %q", status)
	}
	finalStr, _ := parts[1].(string)
	final, err := strconv.ParseInt(finalStr, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("malformed carry amount %q: %w", finalStr, err)
	}
	return final, true, nil
}
