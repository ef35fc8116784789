package hotstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v9"
)

// markSnipingScript flips is_top3_sniping_bid on a live bid record without
// racing concurrent augmentations.
//
// KEYS: 1=bid
var markSnipingScript = redis.NewScript(`
local existing = redis.call('GET', KEYS[1])
if not existing then
  return 0
end
local bid = cjson.decode(existing)
bid.is_top3_sniping_bid = true
local ttl = redis.call('TTL', KEYS[1])
if ttl > 0 then
  redis.call('SET', KEYS[1], cjson.encode(bid), 'EX', ttl)
else
  redis.call('SET', KEYS[1], cjson.encode(bid))
end
return 1
`)

// MarkSnipingBid flags the bid that triggered an anti-sniping extension.
func (s *Store) MarkSnipingBid(ctx context.Context, auctionID, roundID string, userID int64) (bool, error) {
	res, err := markSnipingScript.Run(ctx, s.rdb, []string{bidKey(auctionID, roundID, userID)}).Result()
	if err != nil {
		return false, fmt.Errorf("mark sniping bid: %w", err)
	}
	n, ok := res.(int64)
	if !ok {
		v, err := strconv.ParseInt(fmt.Sprint(res), 10, 64)
		if err != nil {
			return false, fmt.Errorf("unexpected mark sniping reply %T", res)
		}
		n = v
	}
	return n == 1, nil
}
