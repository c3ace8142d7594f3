package infra

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ConnectivityObserver reports whether the cloud is reachable and publishes
// transition edges. Injected (never read from ambient state) so schedulers
// can be tested deterministically with fakes.
type ConnectivityObserver interface {
	Online() bool
	// Subscribe registers fn to run on every offline↔online transition.
	// Callbacks fire on edges only — staying online does not re-fire.
	Subscribe(fn func(online bool))
}

// HealthProber is a polling ConnectivityObserver: it probes the cloud health
// endpoint on a fixed interval and flips its state on result changes.
type HealthProber struct {
	probe        func(ctx context.Context) error
	interval     time.Duration
	probeTimeout time.Duration

	mu     sync.Mutex
	online bool
	subs   []func(online bool)
}

// NewHealthProber starts in the offline state; the first successful probe
// produces the offline→online edge that kicks the initial sync.
func NewHealthProber(probe func(ctx context.Context) error, interval, probeTimeout time.Duration) *HealthProber {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if probeTimeout <= 0 {
		probeTimeout = 3 * time.Second
	}
	return &HealthProber{
		probe:        probe,
		interval:     interval,
		probeTimeout: probeTimeout,
	}
}

func (p *HealthProber) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

func (p *HealthProber) Subscribe(fn func(online bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, fn)
}

// Start launches the polling goroutine. It probes immediately, then on every
// tick, and respects ctx for shutdown.
func (p *HealthProber) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.runProbe(ctx)
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("connectivity: prober shutting down")
				return
			case <-ticker.C:
				p.runProbe(ctx)
			}
		}
	}()
}

func (p *HealthProber) runProbe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()
	p.set(p.probe(probeCtx) == nil)
}

// set flips the state and notifies subscribers on edges only.
func (p *HealthProber) set(online bool) {
	p.mu.Lock()
	if p.online == online {
		p.mu.Unlock()
		return
	}
	p.online = online
	subs := make([]func(bool), len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	log.Info().Bool("online", online).Msg("connectivity: state changed")
	for _, fn := range subs {
		fn(online)
	}
}
