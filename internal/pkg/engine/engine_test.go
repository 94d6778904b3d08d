package engine

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreightFox/FreightFox/app/models"
)

func TestVerificationDrivesPollingDemand(t *testing.T) {
	e := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	// unverified actor: the engine holds poll demand
	e.evaluatePollingDemand()
	assert.True(t, e.poller.IsRunning())

	// re-evaluating while still unverified must not stack demand
	e.evaluatePollingDemand()

	verifyActor(e)
	e.evaluatePollingDemand()
	assert.False(t, e.poller.IsRunning(), "verification releases the poll demand")

	// a later downgrade re-acquires it
	e.store.PutVerification(models.VerificationStatus{
		ActorID:   "carrier-1",
		Value:     models.VerificationRejected,
		UpdatedAt: time.Now().UTC(),
	})
	e.evaluatePollingDemand()
	assert.True(t, e.poller.IsRunning())

	e.poller.Shutdown()
}

func TestRefreshMergesAllCollections(t *testing.T) {
	now := time.Now().UTC()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": "carrier-1", "verification_status": "verified", "updated_at": now,
		})
	})
	mux.HandleFunc("/bids/mine", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Bid{bidFixture("bid-1", models.BidStatusPending, now)})
	})
	mux.HandleFunc("/bids/on-my-shipments", func(w http.ResponseWriter, r *http.Request) {
		b := bidFixture("bid-2", models.BidStatusPending, now)
		b.CarrierID = "carrier-2"
		b.ShipmentID = "ship-9"
		writeJSON(w, http.StatusOK, []models.Bid{b})
	})
	mux.HandleFunc("/shipments/available-for-bidding", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Shipment{{ID: "ship-1", Status: models.ShipmentStatusOpen, OwnerID: "shipper-9", UpdatedAt: now}})
	})
	mux.HandleFunc("/shipments/my-active", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Shipment{{ID: "ship-9", Status: models.ShipmentStatusInProgress, OwnerID: "carrier-1", UpdatedAt: now}})
	})
	mux.HandleFunc("/subscriptions/my-subscriptions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Subscription{subscriptionFixture("sub-1", models.SubscriptionStatusActive, now)})
	})

	e := newTestEngine(t, mux)
	require.NoError(t, e.refresh(context.Background()))

	assert.True(t, e.gate.CanWrite())
	assert.Len(t, e.store.Bids(), 2)
	assert.Len(t, e.store.Shipments(), 2)
	assert.Len(t, e.store.Subscriptions(), 1)
}

func TestRefreshMergesPartialResults(t *testing.T) {
	now := time.Now().UTC()
	mux := http.NewServeMux()
	mux.HandleFunc("/bids/mine", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Bid{bidFixture("bid-1", models.BidStatusPending, now)})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, map[string]string{"message": "upstream down"})
	})

	e := newTestEngine(t, mux)
	err := e.refresh(context.Background())

	assert.Error(t, err, "partial failure still reports")
	assert.Len(t, e.store.Bids(), 1, "the collections that arrived are merged anyway")
}

func TestRefreshDoesNotResurrectStaleState(t *testing.T) {
	now := time.Now().UTC()
	mux := http.NewServeMux()
	mux.HandleFunc("/bids/mine", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Bid{bidFixture("bid-1", models.BidStatusPending, now.Add(-time.Minute))})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []interface{}{})
	})

	e := newTestEngine(t, mux)
	e.store.PutBid(bidFixture("bid-1", models.BidStatusAccepted, now))

	_ = e.refresh(context.Background())

	got, _ := e.store.Bid("bid-1")
	assert.Equal(t, models.BidStatusAccepted, got.Status)
}
