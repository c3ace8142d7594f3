package sync

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"tillsync/internal/infra"
	"tillsync/internal/repository"
)

// ErrOffline is returned by TriggerSync when the connectivity signal is
// false. No remote call is made; the next online transition auto-triggers.
var ErrOffline = errors.New("sync: offline")

// ErrSyncInFlight is returned when a drain is already running. Concurrent
// drains would break FIFO ordering and race on attempt counters, so
// re-entrant triggers are rejected rather than queued.
var ErrSyncInFlight = errors.New("sync: drain already in progress")

// Drainer is what the scheduler runs; satisfied by *Engine.
type Drainer interface {
	Drain(ctx context.Context, merchantID string) (Result, error)
}

// Scheduler observes connectivity transitions and triggers drain passes.
// It exposes the reactive state the UI badge needs (pending count, syncing
// flag, last error) and publishes discrete change notifications instead of
// relying on any UI framework's reactivity.
type Scheduler struct {
	engine Drainer
	outbox repository.OutboxRepository
	conn   infra.ConnectivityObserver

	mu           sync.Mutex
	syncing      bool
	pendingCount int64
	lastErr      string

	countSubs []func(count int64)
	stateSubs []func(syncing bool)
}

func NewScheduler(engine Drainer, outbox repository.OutboxRepository, conn infra.ConnectivityObserver) *Scheduler {
	return &Scheduler{engine: engine, outbox: outbox, conn: conn}
}

// Start primes the pending count and subscribes to connectivity edges.
// Exactly one drain fires per offline→online transition; staying online
// does not retrigger.
func (s *Scheduler) Start(ctx context.Context) {
	if err := s.RefreshPendingCount(ctx); err != nil {
		log.Error().Err(err).Msg("scheduler: initial pending count")
	}
	s.conn.Subscribe(func(online bool) {
		if !online {
			return
		}
		go func() {
			if _, err := s.drain(ctx, ""); err != nil && !errors.Is(err, ErrSyncInFlight) {
				log.Error().Err(err).Msg("scheduler: auto drain")
			}
		}()
	})
}

// OnPendingCountChanged registers a callback fired after every refresh of
// the pending count (post-enqueue, post-drain).
func (s *Scheduler) OnPendingCountChanged(fn func(count int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countSubs = append(s.countSubs, fn)
}

// OnSyncStateChanged registers a callback fired when a drain starts (true)
// and ends (false).
func (s *Scheduler) OnSyncStateChanged(fn func(syncing bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateSubs = append(s.stateSubs, fn)
}

// TriggerSync runs a manual drain pass. It fails fast with ErrOffline when
// disconnected, without contacting the cloud.
func (s *Scheduler) TriggerSync(ctx context.Context, merchantID string) (Result, error) {
	if !s.conn.Online() {
		s.setLastErr(ErrOffline.Error())
		return Result{}, ErrOffline
	}
	return s.drain(ctx, merchantID)
}

func (s *Scheduler) drain(ctx context.Context, merchantID string) (Result, error) {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return Result{}, ErrSyncInFlight
	}
	s.syncing = true
	stateSubs := append([]func(bool){}, s.stateSubs...)
	s.mu.Unlock()
	for _, fn := range stateSubs {
		fn(true)
	}

	defer func() {
		s.mu.Lock()
		s.syncing = false
		subs := append([]func(bool){}, s.stateSubs...)
		s.mu.Unlock()
		for _, fn := range subs {
			fn(false)
		}
	}()

	res, err := s.engine.Drain(ctx, merchantID)
	if err != nil {
		s.setLastErr(err.Error())
	} else {
		s.setLastErr("")
	}

	if rerr := s.RefreshPendingCount(ctx); rerr != nil {
		log.Error().Err(rerr).Msg("scheduler: refresh pending count")
	}
	return res, err
}

// RefreshPendingCount re-queries the outbox and notifies subscribers.
func (s *Scheduler) RefreshPendingCount(ctx context.Context) error {
	count, err := s.outbox.PendingCount(ctx, "")
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.pendingCount = count
	subs := append([]func(int64){}, s.countSubs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(count)
	}
	return nil
}

// PendingCount returns the last refreshed count; advisory for UI badges.
func (s *Scheduler) PendingCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingCount
}

// IsSyncing reports whether a drain pass is in flight.
func (s *Scheduler) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

// LastSyncError returns the last engine-level error, "" when the previous
// drain succeeded.
func (s *Scheduler) LastSyncError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Online reports the current connectivity observation.
func (s *Scheduler) Online() bool { return s.conn.Online() }

func (s *Scheduler) setLastErr(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}
