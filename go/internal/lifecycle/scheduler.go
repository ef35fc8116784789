package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/durable"
	"github.com/mcdev12/gavel/go/internal/models"
)

const idlePollDuration = 5 * time.Second

// deadline is the next moment an auction needs the manager's attention.
type deadline struct {
	auctionID string
	at        time.Time
}

// RunScheduler loops forever, sleeping until the earliest deadline across
// all RELEASED and LIVE auctions and firing the due ones. Change-feed
// events, reconciler ticks and anti-sniping extensions wake it early.
func (m *Manager) RunScheduler(ctx context.Context) error {
	log.Info().Str("instance", m.instanceID).Int("workers", m.tuning.SchedulerWorkers).Msg("lifecycle scheduler started")

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	for i := 0; i < m.tuning.SchedulerWorkers; i++ {
		wg.Add(1)
		go m.worker(workerCtx, &wg, i)
	}
	defer func() {
		cancelWorkers()
		close(m.workCh)
		wg.Wait()
		log.Info().Str("instance", m.instanceID).Msg("all lifecycle workers shut down")
	}()

	timer := m.clock.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-m.wakeCh:
		default:
		}

		next, due, err := m.scanDeadlines(ctx)
		if err != nil {
			log.Error().Err(err).Str("instance", m.instanceID).Msg("deadline scan failed, retrying")
			timer.Reset(time.Second)
			select {
			case <-timer.Chan():
				continue
			case <-ctx.Done():
				return nil
			}
		}

		if len(due) == 0 && next == nil {
			timer.Reset(idlePollDuration)
			select {
			case <-timer.Chan():
				continue
			case <-ctx.Done():
				log.Info().Str("instance", m.instanceID).Msg("shutdown during idle")
				return nil
			case <-m.wakeCh:
				continue
			}
		}

		if len(due) == 0 {
			wait := next.at.Sub(m.clock.Now())
			if wait > 0 {
				timer.Reset(wait)
				select {
				case <-timer.Chan():
				case <-ctx.Done():
					log.Info().Str("instance", m.instanceID).Msg("shutdown during wait")
					return nil
				case <-m.wakeCh:
					continue
				}
			}
			continue
		}

		for _, auctionID := range due {
			m.inFlightMu.Lock()
			if m.inFlight[auctionID] {
				m.inFlightMu.Unlock()
				continue
			}
			m.inFlight[auctionID] = true
			m.inFlightMu.Unlock()

			select {
			case <-ctx.Done():
				m.inFlightMu.Lock()
				delete(m.inFlight, auctionID)
				m.inFlightMu.Unlock()
				log.Info().Str("instance", m.instanceID).Msg("shutdown while queueing boundaries")
				return nil
			case m.workCh <- auctionID:
			}
		}

		// Give the workers a beat before rescanning so in-flight auctions
		// are not re-enumerated in a tight loop.
		timer.Reset(100 * time.Millisecond)
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			return nil
		case <-m.wakeCh:
		}
	}
}

// scanDeadlines reads every RELEASED and LIVE auction and splits them into
// the already-due set and the earliest future deadline.
func (m *Manager) scanDeadlines(ctx context.Context) (*deadline, []string, error) {
	auctions, err := m.db.Auctions.ListByStatus(ctx, models.AuctionStatusReleased, models.AuctionStatusLive)
	if err != nil {
		return nil, nil, err
	}

	now := m.clock.Now()
	var next *deadline
	var due []string
	for _, a := range auctions {
		at, ok := m.deadlineFor(ctx, a)
		if !ok {
			continue
		}
		if !at.After(now) {
			due = append(due, a.ID)
			if len(due) >= m.tuning.SchedulerBatchSize {
				break
			}
			continue
		}
		if next == nil || at.Before(next.at) {
			next = &deadline{auctionID: a.ID, at: at}
		}
	}
	return next, due, nil
}

func (m *Manager) deadlineFor(ctx context.Context, a *models.Auction) (time.Time, bool) {
	switch a.Status {
	case models.AuctionStatusReleased:
		return a.StartDatetime, true
	case models.AuctionStatusLive:
		round, err := m.db.Rounds.Get(ctx, a.ID, a.CurrentRoundIdx)
		if errors.Is(err, durable.ErrNotFound) {
			// The round document is missing; treat the auction as due so
			// the worker recreates it.
			return m.clock.Now(), true
		}
		if err != nil {
			log.Error().Err(err).Str("auction_id", a.ID).Msg("failed to load current round for deadline")
			return time.Time{}, false
		}
		return round.EffectiveEnd(), true
	default:
		return time.Time{}, false
	}
}

// worker drains the due-auction channel.
func (m *Manager) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case auctionID, ok := <-m.workCh:
			if !ok {
				return
			}
			if err := m.handleDue(ctx, auctionID); err != nil {
				log.Error().
					Err(err).
					Str("auction_id", auctionID).
					Str("instance", m.instanceID).
					Int("worker_id", workerID).
					Msg("boundary handling failed")
			}
			m.inFlightMu.Lock()
			delete(m.inFlight, auctionID)
			m.inFlightMu.Unlock()
		}
	}
}

// handleDue re-reads authoritative state and applies whichever transition is
// overdue. Both the change feed and the reconciler funnel into this path, so
// the handler never trusts the event that woke it.
func (m *Manager) handleDue(ctx context.Context, auctionID string) error {
	auction, err := m.db.Auctions.Get(ctx, auctionID)
	if err != nil {
		return err
	}
	now := m.clock.Now()

	switch auction.Status {
	case models.AuctionStatusReleased:
		if auction.StartDatetime.After(now) {
			return nil
		}
		return m.goLive(ctx, auction)

	case models.AuctionStatusLive:
		round, err := m.db.Rounds.Get(ctx, auction.ID, auction.CurrentRoundIdx)
		if errors.Is(err, durable.ErrNotFound) {
			// Crash between the index bump and the round insert; recreate.
			_, err := m.startRound(ctx, auction, auction.CurrentRoundIdx)
			return err
		}
		if err != nil {
			return err
		}
		if round.EffectiveEnd().After(now) {
			// An extension landed after this auction was queued.
			return nil
		}
		return m.finishBoundary(ctx, auction, round)

	default:
		return nil
	}
}
