package store

import (
	"sync"
	"time"

	"github.com/FreightFox/FreightFox/app/models"
)

// Kind identifies an entity family inside the store
type Kind string

const (
	KindBid          Kind = "bid"
	KindShipment     Kind = "shipment"
	KindSubscription Kind = "subscription"
	KindVerification Kind = "verification"
)

// Callback is invoked synchronously after a put or patch, with the kind
// and id of the record that changed.
type Callback func(kind Kind, id string)

// Store is the normalized in-memory cache of everything the engine knows
// about bids, shipments, subscriptions and the actor's verification
// state. It holds no business logic; every component reads, computes and
// writes back through this contract, so there is exactly one copy of
// every entity at any instant.
//
// Records are never deleted, only transitioned, to preserve history for
// display. The single exception is RemoveBid, which exists for rolling
// back an optimistic create the server rejected.
type Store struct {
	mu            sync.RWMutex
	bids          map[string]models.Bid
	shipments     map[string]models.Shipment
	subscriptions map[string]models.Subscription
	verification  models.VerificationStatus

	subMu     sync.Mutex
	subs      map[Kind]map[int]Callback
	nextSubID int
}

// New creates an empty entity store.
func New() *Store {
	return &Store{
		bids:          make(map[string]models.Bid),
		shipments:     make(map[string]models.Shipment),
		subscriptions: make(map[string]models.Subscription),
		subs:          make(map[Kind]map[int]Callback),
	}
}

// BidPatch is a shallow merge applied to a stored bid. Nil fields are
// left untouched.
type BidPatch struct {
	Price     *string
	ETA       *string
	Message   *string
	Status    *models.BidStatus
	UpdatedAt *time.Time
}

// SubscriptionPatch is a shallow merge applied to a stored subscription.
// Metadata entries are merged key-wise.
type SubscriptionPatch struct {
	Status           *models.SubscriptionStatus
	CurrentPeriodEnd *time.Time
	Metadata         map[string]string
	UpdatedAt        *time.Time
}

// Bid returns the bid with the given id.
func (s *Store) Bid(id string) (models.Bid, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bids[id]
	return b, ok
}

// Bids returns a copy of all known bids.
func (s *Store) Bids() []models.Bid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Bid, 0, len(s.bids))
	for _, b := range s.bids {
		out = append(out, b)
	}
	return out
}

// ActiveBidFor returns the pending or accepted bid of the given carrier
// on the given shipment, if one exists.
func (s *Store) ActiveBidFor(shipmentID, carrierID string) (models.Bid, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bids {
		if b.ShipmentID == shipmentID && b.CarrierID == carrierID && b.IsActive() {
			return b, true
		}
	}
	return models.Bid{}, false
}

// PutBid upserts a bid (full replace) and notifies subscribers.
func (s *Store) PutBid(b models.Bid) {
	s.mu.Lock()
	s.bids[b.ID] = b
	s.mu.Unlock()
	s.notify(KindBid, b.ID)
}

// PatchBid applies a shallow merge to the stored bid and notifies
// subscribers. It reports whether the bid existed.
func (s *Store) PatchBid(id string, p BidPatch) (models.Bid, bool) {
	s.mu.Lock()
	b, ok := s.bids[id]
	if !ok {
		s.mu.Unlock()
		return models.Bid{}, false
	}
	if p.Price != nil {
		b.Price = *p.Price
	}
	if p.ETA != nil {
		b.ETA = *p.ETA
	}
	if p.Message != nil {
		b.Message = *p.Message
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.UpdatedAt != nil {
		b.UpdatedAt = *p.UpdatedAt
	}
	s.bids[id] = b
	s.mu.Unlock()
	s.notify(KindBid, id)
	return b, true
}

// RemoveBid deletes a bid record. Only the optimistic-create rollback
// path may use this; reconciled records are never removed.
func (s *Store) RemoveBid(id string) {
	s.mu.Lock()
	_, ok := s.bids[id]
	delete(s.bids, id)
	s.mu.Unlock()
	if ok {
		s.notify(KindBid, id)
	}
}

// ReplaceBid swaps a temporary optimistic bid for the server record in
// one step. The server id wins; the temporary record vanishes.
func (s *Store) ReplaceBid(tempID string, b models.Bid) {
	s.mu.Lock()
	delete(s.bids, tempID)
	s.bids[b.ID] = b
	s.mu.Unlock()
	s.notify(KindBid, tempID)
	s.notify(KindBid, b.ID)
}

// Shipment returns the shipment summary with the given id.
func (s *Store) Shipment(id string) (models.Shipment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shipments[id]
	return sh, ok
}

// Shipments returns a copy of all known shipment summaries.
func (s *Store) Shipments() []models.Shipment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Shipment, 0, len(s.shipments))
	for _, sh := range s.shipments {
		out = append(out, sh)
	}
	return out
}

// PutShipment upserts a shipment summary and notifies subscribers.
func (s *Store) PutShipment(sh models.Shipment) {
	s.mu.Lock()
	s.shipments[sh.ID] = sh
	s.mu.Unlock()
	s.notify(KindShipment, sh.ID)
}

// Subscription returns the subscription with the given id.
func (s *Store) Subscription(id string) (models.Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[id]
	return sub, ok
}

// Subscriptions returns a copy of all known subscriptions.
func (s *Store) Subscriptions() []models.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		out = append(out, sub)
	}
	return out
}

// ActiveSubscription returns the subscription with status active, if any.
func (s *Store) ActiveSubscription() (models.Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subscriptions {
		if sub.IsActive() {
			return sub, true
		}
	}
	return models.Subscription{}, false
}

// PutSubscription upserts a subscription and notifies subscribers.
func (s *Store) PutSubscription(sub models.Subscription) {
	s.mu.Lock()
	s.subscriptions[sub.ID] = sub
	s.mu.Unlock()
	s.notify(KindSubscription, sub.ID)
}

// PatchSubscription applies a shallow merge to the stored subscription
// and notifies subscribers. It reports whether the subscription existed.
func (s *Store) PatchSubscription(id string, p SubscriptionPatch) (models.Subscription, bool) {
	s.mu.Lock()
	sub, ok := s.subscriptions[id]
	if !ok {
		s.mu.Unlock()
		return models.Subscription{}, false
	}
	if p.Status != nil {
		sub.Status = *p.Status
	}
	if p.CurrentPeriodEnd != nil {
		sub.CurrentPeriodEnd = p.CurrentPeriodEnd
	}
	if len(p.Metadata) > 0 {
		if sub.Metadata == nil {
			sub.Metadata = make(map[string]string, len(p.Metadata))
		}
		for k, v := range p.Metadata {
			sub.Metadata[k] = v
		}
	}
	if p.UpdatedAt != nil {
		sub.UpdatedAt = *p.UpdatedAt
	}
	s.subscriptions[id] = sub
	s.mu.Unlock()
	s.notify(KindSubscription, id)
	return sub, true
}

// RemoveSubscription deletes a subscription record. Only the
// optimistic-create rollback path may use this.
func (s *Store) RemoveSubscription(id string) {
	s.mu.Lock()
	_, ok := s.subscriptions[id]
	delete(s.subscriptions, id)
	s.mu.Unlock()
	if ok {
		s.notify(KindSubscription, id)
	}
}

// ReplaceSubscription swaps a temporary optimistic subscription for the
// server record in one step.
func (s *Store) ReplaceSubscription(tempID string, sub models.Subscription) {
	s.mu.Lock()
	delete(s.subscriptions, tempID)
	s.subscriptions[sub.ID] = sub
	s.mu.Unlock()
	s.notify(KindSubscription, tempID)
	s.notify(KindSubscription, sub.ID)
}

// Verification returns the current actor's verification record.
func (s *Store) Verification() models.VerificationStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verification
}

// PutVerification replaces the actor's verification record and notifies
// subscribers.
func (s *Store) PutVerification(v models.VerificationStatus) {
	s.mu.Lock()
	s.verification = v
	s.mu.Unlock()
	s.notify(KindVerification, v.ActorID)
}

// Subscribe registers a callback for changes of the given kind and
// returns the matching unsubscribe function.
func (s *Store) Subscribe(kind Kind, cb Callback) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subs[kind] == nil {
		s.subs[kind] = make(map[int]Callback)
	}
	id := s.nextSubID
	s.nextSubID++
	s.subs[kind][id] = cb
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs[kind], id)
	}
}

// notify fires subscriber callbacks synchronously, outside the entity
// lock so callbacks may read the store.
func (s *Store) notify(kind Kind, id string) {
	s.subMu.Lock()
	cbs := make([]Callback, 0, len(s.subs[kind]))
	for _, cb := range s.subs[kind] {
		cbs = append(cbs, cb)
	}
	s.subMu.Unlock()
	for _, cb := range cbs {
		cb(kind, id)
	}
}
