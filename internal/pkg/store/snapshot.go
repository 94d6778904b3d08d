package store

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/FreightFox/FreightFox/app/models"
	"github.com/FreightFox/FreightFox/internal/pkg/cache"
)

const (
	// SnapshotKey is the Redis key holding the serialized store state
	SnapshotKey = "freightfox:store:snapshot"
	// SnapshotTTL bounds how stale a warm-start snapshot may be
	SnapshotTTL = 24 * time.Hour
)

// Snapshot is the serializable representation of the store, persisted to
// Redis so a restarted daemon can serve last-known state before the
// first poll completes.
type Snapshot struct {
	Bids          []models.Bid               `json:"bids"`
	Shipments     []models.Shipment          `json:"shipments"`
	Subscriptions []models.Subscription      `json:"subscriptions"`
	Verification  *models.VerificationStatus `json:"verification,omitempty"`
	SavedAt       time.Time                  `json:"saved_at"`
}

// Snapshot captures the current store contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{SavedAt: time.Now().UTC()}
	for _, b := range s.bids {
		snap.Bids = append(snap.Bids, b)
	}
	for _, sh := range s.shipments {
		snap.Shipments = append(snap.Shipments, sh)
	}
	for _, sub := range s.subscriptions {
		snap.Subscriptions = append(snap.Subscriptions, sub)
	}
	if s.verification.ActorID != "" {
		v := s.verification
		snap.Verification = &v
	}
	return snap
}

// Restore loads snapshot contents into the store without firing
// subscriber callbacks; it runs before any subscriber exists.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range snap.Bids {
		s.bids[b.ID] = b
	}
	for _, sh := range snap.Shipments {
		s.shipments[sh.ID] = sh
	}
	for _, sub := range snap.Subscriptions {
		s.subscriptions[sub.ID] = sub
	}
	if snap.Verification != nil {
		s.verification = *snap.Verification
	}
}

// SaveSnapshot persists the store to Redis. Failures are logged and
// returned but never fatal; the snapshot is a warm-start optimization.
func SaveSnapshot(s *Store) error {
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return err
	}
	if err := cache.Set(SnapshotKey, data, SnapshotTTL); err != nil {
		log.Errorf("[Store] Failed to save snapshot: %v", err)
		return err
	}
	return nil
}

// LoadSnapshot restores the last persisted snapshot into the store. A
// missing snapshot is not an error.
func LoadSnapshot(s *Store) error {
	data, err := cache.Get(SnapshotKey)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		log.Errorf("[Store] Failed to load snapshot: %v", err)
		return err
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		log.Errorf("[Store] Failed to decode snapshot: %v", err)
		return err
	}
	s.Restore(snap)
	log.Infof("[Store] Restored snapshot from %s (%d bids, %d shipments, %d subscriptions)",
		snap.SavedAt.Format(time.RFC3339), len(snap.Bids), len(snap.Shipments), len(snap.Subscriptions))
	return nil
}
