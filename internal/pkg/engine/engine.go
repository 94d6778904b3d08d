package engine

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/FreightFox/FreightFox/internal/pkg/env"
	"github.com/FreightFox/FreightFox/internal/pkg/marketplace"
	"github.com/FreightFox/FreightFox/internal/pkg/store"
)

// Engine keeps the local entity store consistent with the marketplace
// under the three update channels: user-initiated commands, the periodic
// poll and the push listener. It owns the component wiring and the
// start/stop lifecycle; all state lives in the store.
type Engine struct {
	store      *store.Store
	client     *marketplace.Client
	reconciler *Reconciler
	gate       *Gate
	poller     *Poller
	push       *PushListener
	actorID    string

	mu             sync.Mutex
	running        bool
	stopCh         chan struct{}
	wg             sync.WaitGroup
	snapshotTicker *time.Ticker

	verifMu      sync.Mutex
	verifRelease func()
	unsubVerif   func()
}

// New wires an engine from its collaborators.
func New(st *store.Store, client *marketplace.Client, actorID string, pollInterval time.Duration) *Engine {
	e := &Engine{
		store:   st,
		client:  client,
		actorID: actorID,
	}
	e.reconciler = NewReconciler(st)
	e.gate = NewGate(st)
	e.poller = NewPoller(pollInterval, e.refresh)
	e.push = NewPushListener(e.reconciler, actorID)
	return e
}

// NewFromEnv builds the engine from environment configuration and
// restores the last snapshot for a warm start.
func NewFromEnv() *Engine {
	st := store.New()
	if err := store.LoadSnapshot(st); err != nil {
		log.Warnf("[Engine] Starting cold, snapshot unavailable: %v", err)
	}

	interval := 30 * time.Second
	if raw := env.GetEnv("POLL_INTERVAL_SECONDS", ""); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			interval = time.Duration(v) * time.Second
		}
	}

	return New(st, marketplace.NewClientFromEnv(), env.GetEnv("CARRIER_ID", ""), interval)
}

// Store exposes the entity store for read access and subscriptions.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Start launches the push listener, the verification-driven polling
// demand and the periodic snapshot writer, then hydrates the store with
// one immediate refresh.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.stopCh = make(chan struct{})
	e.running = true
	log.Info("[Engine] Starting sync engine")

	e.push.Start()

	// Poll while unverified; stop once the gate opens. Evaluated on
	// every verification change, whichever channel delivered it.
	e.unsubVerif = e.store.Subscribe(store.KindVerification, func(store.Kind, string) {
		e.evaluatePollingDemand()
	})
	e.evaluatePollingDemand()

	e.snapshotTicker = time.NewTicker(30 * time.Second)
	e.wg.Add(1)
	go e.snapshotWorker()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.poller.RefreshNow(context.Background()); err != nil {
			log.Errorf("[Engine] Initial refresh failed: %v", err)
		}
	}()

	log.Info("[Engine] Started successfully")
}

// Stop halts all background work and persists a final snapshot.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	log.Info("[Engine] Stopping sync engine...")

	if e.unsubVerif != nil {
		e.unsubVerif()
		e.unsubVerif = nil
	}
	e.releaseVerificationDemand()
	e.push.Stop()
	e.poller.Shutdown()

	if e.snapshotTicker != nil {
		e.snapshotTicker.Stop()
	}
	close(e.stopCh)
	e.running = false
	e.wg.Wait()

	if err := store.SaveSnapshot(e.store); err != nil {
		log.Errorf("[Engine] Final snapshot failed: %v", err)
	}
	log.Info("[Engine] Stopped")
}

// RequestPolling registers external (UI) polling demand and returns the
// matching release.
func (e *Engine) RequestPolling() func() {
	return e.poller.Acquire()
}

// RefreshNow runs one full refresh immediately.
func (e *Engine) RefreshNow(ctx context.Context) error {
	return e.poller.RefreshNow(ctx)
}

// evaluatePollingDemand holds poll demand exactly while the actor is not
// verified.
func (e *Engine) evaluatePollingDemand() {
	e.verifMu.Lock()
	defer e.verifMu.Unlock()

	if e.gate.CanWrite() {
		if e.verifRelease != nil {
			log.Info("[Engine] Actor verified, releasing verification poll demand")
			e.verifRelease()
			e.verifRelease = nil
		}
		return
	}
	if e.verifRelease == nil {
		log.Info("[Engine] Actor not verified, polling for verification updates")
		e.verifRelease = e.poller.Acquire()
	}
}

func (e *Engine) releaseVerificationDemand() {
	e.verifMu.Lock()
	defer e.verifMu.Unlock()
	if e.verifRelease != nil {
		e.verifRelease()
		e.verifRelease = nil
	}
}

// snapshotWorker periodically persists the store for warm restarts.
func (e *Engine) snapshotWorker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case <-e.snapshotTicker.C:
			if err := store.SaveSnapshot(e.store); err != nil {
				log.Errorf("[Engine] Snapshot failed: %v", err)
			}
		}
	}
}

// refresh performs one full-state poll and feeds every record to the
// reconciler tagged as poll input. Partial failures are joined and
// reported; whatever arrived is still merged.
func (e *Engine) refresh(ctx context.Context) error {
	var errs []error

	if profile, err := e.client.Profile(ctx); err != nil {
		errs = append(errs, err)
	} else {
		v := profile.Verification()
		e.reconciler.Apply(Fact{Source: SourcePoll, Verification: &v})
	}

	if bids, err := e.client.MyBids(ctx); err != nil {
		errs = append(errs, err)
	} else {
		for i := range bids {
			e.reconciler.Apply(Fact{Source: SourcePoll, Bid: &bids[i]})
		}
	}

	if bids, err := e.client.BidsOnMyShipments(ctx); err != nil {
		errs = append(errs, err)
	} else {
		for i := range bids {
			e.reconciler.Apply(Fact{Source: SourcePoll, Bid: &bids[i]})
		}
	}

	if shipments, err := e.client.AvailableShipments(ctx); err != nil {
		errs = append(errs, err)
	} else {
		for i := range shipments {
			e.reconciler.Apply(Fact{Source: SourcePoll, Shipment: &shipments[i]})
		}
	}

	if shipments, err := e.client.MyActiveShipments(ctx); err != nil {
		errs = append(errs, err)
	} else {
		for i := range shipments {
			e.reconciler.Apply(Fact{Source: SourcePoll, Shipment: &shipments[i]})
		}
	}

	if subs, err := e.client.MySubscriptions(ctx); err != nil {
		errs = append(errs, err)
	} else {
		for i := range subs {
			e.reconciler.Apply(Fact{Source: SourcePoll, Subscription: &subs[i]})
		}
	}

	return errors.Join(errs...)
}
