package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Poller issues a full-state refresh at a fixed interval while at least
// one subscriber holds polling demand. The ticker only exists while
// demand is non-zero, so no timer leaks once the last subscriber
// releases, and a reentrancy guard keeps a slow refresh from stacking
// behind the next tick.
type Poller struct {
	interval time.Duration
	refresh  func(ctx context.Context) error

	mu      sync.Mutex
	demand  int
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool

	inFlight atomic.Bool
}

// NewPoller creates a poller that invokes refresh on each tick.
func NewPoller(interval time.Duration, refresh func(ctx context.Context) error) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{interval: interval, refresh: refresh}
}

// Acquire registers polling demand and returns the matching release.
// The loop starts on the first acquisition and stops when the last
// holder releases. Release is safe to call more than once.
func (p *Poller) Acquire() func() {
	p.mu.Lock()
	p.demand++
	if !p.running {
		p.start()
	}
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.demand--
			if p.demand <= 0 && p.running {
				p.stop()
			}
		})
	}
}

// IsRunning reports whether the poll loop is currently active.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Shutdown stops the loop regardless of outstanding demand; used on
// daemon shutdown.
func (p *Poller) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.demand = 0
	if p.running {
		p.stop()
	}
}

// RefreshNow runs one refresh immediately, honoring the reentrancy
// guard shared with the poll loop.
func (p *Poller) RefreshNow(ctx context.Context) error {
	return p.tick(ctx)
}

// start launches the poll loop; caller holds p.mu.
func (p *Poller) start() {
	p.stopCh = make(chan struct{})
	p.running = true
	p.wg.Add(1)
	go p.loop(p.stopCh)
	log.Infof("[Poller] Started (interval: %s)", p.interval)
}

// stop halts the poll loop; caller holds p.mu.
func (p *Poller) stop() {
	close(p.stopCh)
	p.stopCh = nil
	p.running = false
	log.Info("[Poller] Stopped, no remaining subscribers")
}

func (p *Poller) loop(stopCh chan struct{}) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := p.tick(context.Background()); err != nil {
				log.Errorf("[Poller] Refresh failed: %v", err)
			}
		}
	}
}

// tick runs one refresh unless another one is still in flight.
func (p *Poller) tick(ctx context.Context) error {
	if !p.inFlight.CompareAndSwap(false, true) {
		log.Debug("[Poller] Skipping tick, refresh already in flight")
		return nil
	}
	defer p.inFlight.Store(false)
	return p.refresh(ctx)
}
