package engine

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/FreightFox/FreightFox/app/models"
	"github.com/FreightFox/FreightFox/internal/pkg/store"
)

// Source tags where a fact came from
type Source string

const (
	SourceCommand Source = "command"
	SourcePoll    Source = "poll"
	SourcePush    Source = "push"
)

// DiscardReason explains why the reconciler dropped a fact
type DiscardReason string

const (
	DiscardStale    DiscardReason = "stale"
	DiscardBackward DiscardReason = "backward_transition"
)

// Fact is one incoming record about the remote state, from a command
// response, a poll result or a push event. Exactly one entity field is
// set. ServerTime defaults to the entity's own updated_at stamp.
type Fact struct {
	Source       Source
	Bid          *models.Bid
	Shipment     *models.Shipment
	Subscription *models.Subscription
	Verification *models.VerificationStatus
	ServerTime   time.Time
}

// Reconciler merges facts from the three update channels into the entity
// store. Conflicts resolve last-writer-wins by server timestamp, with a
// monotonic status guard so a slow poll can never roll a record back
// behind a transition a push already delivered. All merges serialize on
// one mutex, so facts interleave whole even though commands, the poller
// and the push listener suspend independently.
type Reconciler struct {
	mu    sync.Mutex
	store *store.Store

	// optimistic bid field patches applied locally but not yet
	// acknowledged by a command response, keyed by bid id
	pendingBids map[string]store.BidPatch

	// OnDiscard observes stale/backward drops. Discards are expected
	// and frequent, so they are not errors; the hook exists for
	// diagnostics and tests.
	OnDiscard func(kind store.Kind, id string, reason DiscardReason)
}

// NewReconciler creates a reconciler writing into st.
func NewReconciler(st *store.Store) *Reconciler {
	return &Reconciler{
		store:       st,
		pendingBids: make(map[string]store.BidPatch),
	}
}

// Apply merges one fact into the store under the reconciliation rules.
func (r *Reconciler) Apply(f Fact) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case f.Bid != nil:
		r.applyBid(f)
	case f.Shipment != nil:
		r.applyShipment(f)
	case f.Subscription != nil:
		r.applySubscription(f)
	case f.Verification != nil:
		r.applyVerification(f)
	}
}

// ApplyAll merges a batch of facts in order.
func (r *Reconciler) ApplyAll(facts []Fact) {
	for _, f := range facts {
		r.Apply(f)
	}
}

// ReplaceBid swaps an optimistic temporary bid for the server record of
// a successful create. The server id wins; any pending patch for the
// temporary id is dropped.
func (r *Reconciler) ReplaceBid(tempID string, b models.Bid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pendingBids, tempID)
	r.store.ReplaceBid(tempID, b)
}

// ReplaceSubscription swaps an optimistic temporary subscription for the
// server record of a successful create.
func (r *Reconciler) ReplaceSubscription(tempID string, sub models.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store.ReplaceSubscription(tempID, sub)
}

// RevertBid undoes an optimistic patch after a rejected command, but
// only while the patch stamped at the given time is still the latest
// write for the bid. A fact that landed during the round-trip has
// already superseded the optimistic state and wins over the revert.
func (r *Reconciler) RevertBid(id string, stamped time.Time, prior models.Bid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.store.Bid(id); ok && cur.UpdatedAt.Equal(stamped) {
		r.store.PutBid(prior)
	}
}

// RevertSubscription undoes an optimistic subscription patch under the
// same still-latest rule as RevertBid.
func (r *Reconciler) RevertSubscription(id string, stamped time.Time, prior models.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.store.Subscription(id); ok && cur.UpdatedAt.Equal(stamped) {
		r.store.PutSubscription(prior)
	}
}

// TrackPendingBid records an optimistic edit so poll/push facts preserve
// its fields until a command response for the bid arrives.
func (r *Reconciler) TrackPendingBid(id string, p store.BidPatch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingBids[id] = p
}

// ClearPendingBid forgets an optimistic edit, typically after rollback.
func (r *Reconciler) ClearPendingBid(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pendingBids, id)
}

func (r *Reconciler) applyBid(f Fact) {
	incoming := *f.Bid

	// A command response settles the optimistic edit even when the
	// record itself loses the timestamp race below.
	if f.Source == SourceCommand {
		delete(r.pendingBids, incoming.ID)
	}

	ts := f.ServerTime
	if ts.IsZero() {
		ts = incoming.UpdatedAt
	}

	cur, ok := r.store.Bid(incoming.ID)
	if ok {
		if ts.Before(cur.UpdatedAt) {
			r.discard(store.KindBid, incoming.ID, DiscardStale)
			return
		}
		if models.BidStatusRank(incoming.Status) < models.BidStatusRank(cur.Status) {
			r.discard(store.KindBid, incoming.ID, DiscardBackward)
			return
		}
	}

	if f.Source != SourceCommand {
		if pending, hasPending := r.pendingBids[incoming.ID]; hasPending {
			// preserve locally optimistic fields until the command lands
			if pending.Price != nil {
				incoming.Price = *pending.Price
			}
			if pending.ETA != nil {
				incoming.ETA = *pending.ETA
			}
			if pending.Message != nil {
				incoming.Message = *pending.Message
			}
		}
	}

	r.store.PutBid(incoming)
}

func (r *Reconciler) applyShipment(f Fact) {
	incoming := *f.Shipment
	ts := f.ServerTime
	if ts.IsZero() {
		ts = incoming.UpdatedAt
	}

	if cur, ok := r.store.Shipment(incoming.ID); ok && ts.Before(cur.UpdatedAt) {
		r.discard(store.KindShipment, incoming.ID, DiscardStale)
		return
	}
	r.store.PutShipment(incoming)
}

func (r *Reconciler) applySubscription(f Fact) {
	incoming := *f.Subscription
	ts := f.ServerTime
	if ts.IsZero() {
		ts = incoming.UpdatedAt
	}

	cur, ok := r.store.Subscription(incoming.ID)
	if ok {
		if ts.Before(cur.UpdatedAt) {
			r.discard(store.KindSubscription, incoming.ID, DiscardStale)
			return
		}
		if models.SubscriptionStatusRank(incoming.Status) < models.SubscriptionStatusRank(cur.Status) {
			r.discard(store.KindSubscription, incoming.ID, DiscardBackward)
			return
		}
	}
	r.store.PutSubscription(incoming)
}

func (r *Reconciler) applyVerification(f Fact) {
	incoming := *f.Verification
	ts := f.ServerTime
	if ts.IsZero() {
		ts = incoming.UpdatedAt
	}

	if cur := r.store.Verification(); cur.ActorID != "" && ts.Before(cur.UpdatedAt) {
		r.discard(store.KindVerification, incoming.ActorID, DiscardStale)
		return
	}
	r.store.PutVerification(incoming)
}

func (r *Reconciler) discard(kind store.Kind, id string, reason DiscardReason) {
	log.Debugf("[Reconciler] Discarded %s fact for %s/%s", reason, kind, id)
	if r.OnDiscard != nil {
		r.OnDiscard(kind, id, reason)
	}
}
