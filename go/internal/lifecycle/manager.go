package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/config"
	"github.com/mcdev12/gavel/go/internal/durable"
	"github.com/mcdev12/gavel/go/internal/events"
	"github.com/mcdev12/gavel/go/internal/hotstore"
	"github.com/mcdev12/gavel/go/internal/models"
)

// Domain errors for lifecycle operations, classified once at this boundary.
var (
	ErrNotFound     = durable.ErrNotFound
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state for operation")
	ErrValidation   = errors.New("validation failed")
)

// Manager owns every auction from RELEASED onward: it drives the state
// machine, arms round timers, extends rounds, carries losing bids forward,
// refunds final losers and emits deliveries.
type Manager struct {
	db        *durable.Store
	hot       *hotstore.Store
	clock     clockwork.Clock
	publisher events.Publisher
	tuning    config.Tuning

	instanceID string
	wakeCh     chan struct{}
	workCh     chan string

	// Track in-flight auctions so concurrent timer firings and reconciler
	// passes never double-process one.
	inFlight   map[string]bool
	inFlightMu sync.Mutex

	// Carry tasks already taken for a (current_round, next_round) pair.
	carryDone   map[string]bool
	carryDoneMu sync.Mutex
}

// NewManager wires a lifecycle manager over the two stores.
func NewManager(db *durable.Store, hot *hotstore.Store, publisher events.Publisher, clock clockwork.Clock, tuning config.Tuning) *Manager {
	return &Manager{
		db:         db,
		hot:        hot,
		clock:      clock,
		publisher:  publisher,
		tuning:     tuning,
		instanceID: uuid.New().String()[:8],
		wakeCh:     make(chan struct{}, 1),
		workCh:     make(chan string, tuning.SchedulerWorkers*2),
		inFlight:   make(map[string]bool),
		carryDone:  make(map[string]bool),
	}
}

// Wake pokes the scheduler so it re-evaluates deadlines. Safe from any
// goroutine; coalesces while the scheduler is busy.
func (m *Manager) Wake() {
	select {
	case m.wakeCh <- struct{}{}:
	default:
	}
}

// CreateAuctionRequest carries the creation parameters from the surface.
type CreateAuctionRequest struct {
	Name               string
	CreatorID          int64
	ItemName           string
	MinBid             int64
	WinnersCountTotal  int
	RoundsCount        int
	FirstRoundDuration *time.Duration
	RoundDuration      time.Duration
	StartDatetime      time.Time
}

func (r CreateAuctionRequest) validate(now time.Time) error {
	if r.CreatorID <= 0 {
		return fmt.Errorf("%w: creator_id is required", ErrValidation)
	}
	if r.ItemName == "" {
		return fmt.Errorf("%w: item_name is required", ErrValidation)
	}
	if r.MinBid < 1 {
		return fmt.Errorf("%w: min_bid must be at least 1", ErrValidation)
	}
	if r.WinnersCountTotal < 1 {
		return fmt.Errorf("%w: winners_count_total must be at least 1", ErrValidation)
	}
	if r.RoundsCount < 1 {
		return fmt.Errorf("%w: rounds_count must be at least 1", ErrValidation)
	}
	if r.RoundDuration <= 0 {
		return fmt.Errorf("%w: round_duration must be positive", ErrValidation)
	}
	if !r.StartDatetime.After(now) {
		return fmt.Errorf("%w: start_datetime must be in the future", ErrValidation)
	}
	return nil
}

// CreateAuction creates a DRAFT auction.
func (m *Manager) CreateAuction(ctx context.Context, req CreateAuctionRequest) (*models.Auction, error) {
	now := m.clock.Now().UTC()
	if err := req.validate(now); err != nil {
		return nil, err
	}

	auction := &models.Auction{
		ID:                  uuid.New().String(),
		Name:                req.Name,
		CreatorID:           req.CreatorID,
		ItemName:            req.ItemName,
		MinBid:              req.MinBid,
		WinnersCountTotal:   req.WinnersCountTotal,
		RoundsCount:         req.RoundsCount,
		RoundDuration:       models.DurationFrom(req.RoundDuration),
		StartDatetime:       req.StartDatetime.UTC(),
		Status:              models.AuctionStatusDraft,
		CurrentRoundIdx:     0,
		RemainingItemsCount: req.WinnersCountTotal,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if req.FirstRoundDuration != nil {
		d := models.DurationFrom(*req.FirstRoundDuration)
		auction.FirstRoundDuration = &d
	}

	if err := m.db.Auctions.Create(ctx, auction); err != nil {
		return nil, err
	}
	log.Info().Str("auction_id", auction.ID).Int64("creator_id", auction.CreatorID).Msg("auction created")
	return auction, nil
}

// UpdateAuction edits a DRAFT auction. Only the creator may edit, and the
// start time must remain in the future.
func (m *Manager) UpdateAuction(ctx context.Context, auctionID string, callerID int64, p durable.UpdateAuctionParams) (*models.Auction, error) {
	auction, err := m.db.Auctions.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.CreatorID != callerID {
		return nil, fmt.Errorf("%w: only the creator may edit", ErrForbidden)
	}
	if auction.Status != models.AuctionStatusDraft {
		return nil, fmt.Errorf("%w: only DRAFT auctions are editable", ErrInvalidState)
	}
	if p.StartDatetime != nil && !p.StartDatetime.After(m.clock.Now()) {
		return nil, fmt.Errorf("%w: start_datetime must be in the future", ErrValidation)
	}
	if p.MinBid != nil && *p.MinBid < 1 {
		return nil, fmt.Errorf("%w: min_bid must be at least 1", ErrValidation)
	}
	if p.WinnersCountTotal != nil && *p.WinnersCountTotal < 1 {
		return nil, fmt.Errorf("%w: winners_count_total must be at least 1", ErrValidation)
	}
	if p.RoundsCount != nil && *p.RoundsCount < 1 {
		return nil, fmt.Errorf("%w: rounds_count must be at least 1", ErrValidation)
	}

	matched, err := m.db.Auctions.UpdateDraft(ctx, auctionID, callerID, p)
	if err != nil {
		return nil, err
	}
	if !matched {
		// The draft moved on between the read and the write.
		return nil, fmt.Errorf("%w: auction is no longer editable", ErrInvalidState)
	}
	return m.db.Auctions.Get(ctx, auctionID)
}

// ReleaseAuction moves a DRAFT auction to RELEASED and schedules its start.
func (m *Manager) ReleaseAuction(ctx context.Context, auctionID string, callerID int64) (*models.Auction, error) {
	auction, err := m.db.Auctions.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.CreatorID != callerID {
		return nil, fmt.Errorf("%w: only the creator may release", ErrForbidden)
	}
	if auction.Status != models.AuctionStatusDraft {
		return nil, fmt.Errorf("%w: only DRAFT auctions can be released", ErrInvalidState)
	}
	if !auction.StartDatetime.After(m.clock.Now()) {
		return nil, fmt.Errorf("%w: start_datetime must be in the future", ErrValidation)
	}

	moved, err := m.db.Auctions.TransitionStatus(ctx, auctionID, models.AuctionStatusDraft, models.AuctionStatusReleased)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("%w: auction is no longer DRAFT", ErrInvalidState)
	}

	if err := m.hot.InvalidateAuction(ctx, auctionID); err != nil {
		log.Warn().Err(err).Str("auction_id", auctionID).Msg("failed to invalidate auction cache")
	}
	m.Wake()
	m.publisher.AuctionDirty(auctionID, true)
	log.Info().Str("auction_id", auctionID).Time("start", auction.StartDatetime).Msg("auction released")
	return m.db.Auctions.Get(ctx, auctionID)
}

// DeleteAuction soft-deletes a DRAFT auction.
func (m *Manager) DeleteAuction(ctx context.Context, auctionID string, callerID int64) error {
	auction, err := m.db.Auctions.Get(ctx, auctionID)
	if err != nil {
		return err
	}
	if auction.CreatorID != callerID {
		return fmt.Errorf("%w: only the creator may delete", ErrForbidden)
	}
	if auction.Status != models.AuctionStatusDraft {
		return fmt.Errorf("%w: only DRAFT auctions can be deleted", ErrInvalidState)
	}
	deleted, err := m.db.Auctions.SoftDelete(ctx, auctionID, callerID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: auction is no longer DRAFT", ErrInvalidState)
	}
	log.Info().Str("auction_id", auctionID).Msg("auction deleted")
	return nil
}
