package hotstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v9"
)

// Script status codes, shared with the Lua side. The bidding package maps
// them onto its error taxonomy.
const (
	StatusOK                 = "OK"
	StatusAlreadyProcessed   = "ALREADY_PROCESSED"
	StatusRoundEnded         = "ROUND_ENDED"
	StatusNoExistingBid      = "NO_EXISTING_BID"
	StatusBidExists          = "BID_EXISTS"
	StatusAlreadyFirstPlace  = "ALREADY_FIRST_PLACE"
	StatusAlreadyInWinning   = "ALREADY_IN_WINNING_TOP"
	StatusBelowMinBid        = "BELOW_MIN_BID"
	StatusInsufficientFunds  = "INSUFFICIENT_BALANCE"
)

// BidRecord is the hot-store representation of a bid. Timestamps are unix
// milliseconds; the durable mirror converts them.
type BidRecord struct {
	AuctionID   string `json:"auction_id"`
	RoundID     string `json:"round_id"`
	UserID      int64  `json:"user_id"`
	Amount      int64  `json:"amount"`
	CreatedAtMs int64  `json:"created_at"`
	UpdatedAtMs int64  `json:"updated_at"`
	Sniping     bool   `json:"is_top3_sniping_bid"`
}

// PlaceBidArgs carries the validated inputs of one bid placement into the
// atomic script. The caller has already resolved auction and round state.
type PlaceBidArgs struct {
	AuctionID       string
	RoundID         string
	UserID          int64
	Amount          int64
	MinBid          int64
	AddToExisting   bool
	IdempotencyKey  string
	NowMs           int64
	RoundEndMs      int64
	WinnersPerRound int
	RoundIdx        int
}

// PlaceBidResult is the outcome of the atomic script.
type PlaceBidResult struct {
	Status      string
	NewBalance  int64
	FinalAmount int64
	Place       int
	Record      BidRecord
}

// placeBidScript performs the whole atomic effect of a bid: idempotency
// check, deadline check, existing-bid gating, minimum-bid gating, balance
// debit, bid write, ranking insert and idempotency marker, as one indivisible
// unit at the hot store.
//
// KEYS: 1=user_balance 2=bid 3=idempotency 4=round ranking set
// ARGV: 1=user_id 2=amount 3=min_bid 4=add_to_existing 5=now_ms 6=round_end_ms
//       7=winners_per_round 8=round_idx 9=bid_ttl_sec 10=idem_ttl_sec
//       11=auction_id 12=round_id
var placeBidScript = redis.NewScript(`
local prior = redis.call('GET', KEYS[3])
if prior then
  return {'ALREADY_PROCESSED', prior}
end
if tonumber(ARGV[5]) >= tonumber(ARGV[6]) then
  return {'ROUND_ENDED'}
end

local amount = tonumber(ARGV[2])
local add_to_existing = ARGV[4] == '1'
local existing = redis.call('GET', KEYS[2])
local bid = nil
if existing then
  bid = cjson.decode(existing)
end

if add_to_existing and not existing then
  return {'NO_EXISTING_BID'}
end
if existing and not add_to_existing then
  return {'BID_EXISTS'}
end

local final = amount
if bid then
  final = final + tonumber(bid.amount)
end
if final < tonumber(ARGV[3]) then
  return {'BELOW_MIN_BID'}
end

if existing then
  local rank = redis.call('ZRANK', KEYS[4], ARGV[1])
  if rank then
    local place = rank + 1
    if place == 1 then
      return {'ALREADY_FIRST_PLACE'}
    end
    local winners = tonumber(ARGV[7])
    local round_idx = tonumber(ARGV[8])
    if place <= winners and not (round_idx == 0 and place <= 3) then
      return {'ALREADY_IN_WINNING_TOP'}
    end
  end
end

local balance = tonumber(redis.call('GET', KEYS[1]) or '0')
if balance < amount then
  return {'INSUFFICIENT_BALANCE'}
end
local new_balance = redis.call('DECRBY', KEYS[1], amount)

local now_ms = tonumber(ARGV[5])
local created = now_ms
local sniping = false
if bid then
  created = tonumber(bid.created_at)
  if bid.is_top3_sniping_bid then sniping = true end
end
local record = cjson.encode({
  auction_id = ARGV[11],
  round_id = ARGV[12],
  user_id = tonumber(ARGV[1]),
  amount = final,
  created_at = created,
  updated_at = now_ms,
  is_top3_sniping_bid = sniping,
})
redis.call('SET', KEYS[2], record, 'EX', tonumber(ARGV[9]))

local score = -(final * 1e12) + now_ms
redis.call('ZADD', KEYS[4], score, ARGV[1])
redis.call('EXPIRE', KEYS[4], tonumber(ARGV[9]))

local place = redis.call('ZRANK', KEYS[4], ARGV[1]) + 1
local reply = cjson.encode({
  balance = new_balance,
  amount = final,
  place = place,
  record = record,
})
redis.call('SET', KEYS[3], reply, 'EX', tonumber(ARGV[10]))

return {'OK', reply}
`)

// PlaceBid runs the atomic bid script.
func (s *Store) PlaceBid(ctx context.Context, args PlaceBidArgs) (*PlaceBidResult, error) {
	keys := []string{
		userBalanceKey(args.UserID),
		bidKey(args.AuctionID, args.RoundID, args.UserID),
		idempotencyKey(args.IdempotencyKey),
		roundBidsKey(args.AuctionID, args.RoundID),
	}
	addFlag := "0"
	if args.AddToExisting {
		addFlag = "1"
	}
	argv := []interface{}{
		strconv.FormatInt(args.UserID, 10),
		args.Amount,
		args.MinBid,
		addFlag,
		args.NowMs,
		args.RoundEndMs,
		args.WinnersPerRound,
		args.RoundIdx,
		int(BidTTL.Seconds()),
		int(IdempotencyTTL.Seconds()),
		args.AuctionID,
		args.RoundID,
	}

	raw, err := placeBidScript.Run(ctx, s.rdb, keys, argv...).Result()
	if err != nil {
		return nil, fmt.Errorf("place bid script: %w", err)
	}
	return parsePlaceBidReply(raw)
}

type scriptReply struct {
	Balance int64           `json:"balance"`
	Amount  int64           `json:"amount"`
	Place   int             `json:"place"`
	Record  json.RawMessage `json:"record"`
}

func parsePlaceBidReply(raw interface{}) (*PlaceBidResult, error) {
	parts, ok := raw.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("unexpected script reply %T", raw)
	}
	status, ok := parts[0].(string)
	if !ok {
		return nil, fmt.Errorf("unexpected script status %T", parts[0])
	}

	res := &PlaceBidResult{Status: status}
	if status != StatusOK && status != StatusAlreadyProcessed {
		return res, nil
	}
	if len(parts) < 2 {
		return nil, fmt.Errorf("script reply %s missing payload", status)
	}
	payload, ok := parts[1].(string)
	if !ok {
		return nil, fmt.Errorf("unexpected script payload %T", parts[1])
	}

	var reply scriptReply
	if err := json.Unmarshal([]byte(payload), &reply); err != nil {
		return nil, fmt.Errorf("decode script payload: %w", err)
	}
	res.NewBalance = reply.Balance
	res.FinalAmount = reply.Amount
	res.Place = reply.Place
	// The record field is itself an encoded JSON document.
	var recordJSON string
	if err := json.Unmarshal(reply.Record, &recordJSON); err != nil {
		return nil, fmt.Errorf("decode bid record envelope: %w", err)
	}
	if err := json.Unmarshal([]byte(recordJSON), &res.Record); err != nil {
		return nil, fmt.Errorf("decode bid record: %w", err)
	}
	return res, nil
}
