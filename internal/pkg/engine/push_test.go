package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreightFox/FreightFox/app/models"
	"github.com/FreightFox/FreightFox/internal/pkg/store"
)

// translate runs without a live redis connection, so these tests build
// the listener by hand.
func newTestListener(st *store.Store) *PushListener {
	return &PushListener{
		reconciler: NewReconciler(st),
		actorID:    "carrier-1",
	}
}

func pushPayload(t *testing.T, env pushEnvelope) []byte {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

func TestTranslateNewShipment(t *testing.T) {
	l := newTestListener(store.New())
	now := time.Now().UTC()

	fact := l.translate(ChannelNewShipment, pushPayload(t, pushEnvelope{
		Timestamp: now,
		Shipment:  &models.Shipment{ID: "ship-1", Status: models.ShipmentStatusOpen, OwnerID: "shipper-9", UpdatedAt: now},
	}))

	require.NotNil(t, fact)
	assert.Equal(t, SourcePush, fact.Source)
	assert.Equal(t, "ship-1", fact.Shipment.ID)
	assert.Equal(t, now, fact.ServerTime)
}

func TestTranslateFiltersOwnShipments(t *testing.T) {
	l := newTestListener(store.New())

	fact := l.translate(ChannelNewShipment, pushPayload(t, pushEnvelope{
		Timestamp: time.Now().UTC(),
		Shipment:  &models.Shipment{ID: "ship-1", Status: models.ShipmentStatusOpen, OwnerID: "carrier-1"},
	}))
	assert.Nil(t, fact, "the actor's own shipments never surface as bidding opportunities")
}

func TestTranslateFiltersNonOpenShipments(t *testing.T) {
	l := newTestListener(store.New())

	fact := l.translate(ChannelNewShipment, pushPayload(t, pushEnvelope{
		Timestamp: time.Now().UTC(),
		Shipment:  &models.Shipment{ID: "ship-1", Status: models.ShipmentStatusBiddingClosed, OwnerID: "shipper-9"},
	}))
	assert.Nil(t, fact)
}

func TestTranslateShipmentUpdatedPassesNonOpen(t *testing.T) {
	l := newTestListener(store.New())

	// Updates flow through regardless of status; only first sightings on
	// the new-shipment channel are filtered.
	fact := l.translate(ChannelShipmentUpdated, pushPayload(t, pushEnvelope{
		Timestamp: time.Now().UTC(),
		Shipment:  &models.Shipment{ID: "ship-1", Status: models.ShipmentStatusInProgress, OwnerID: "carrier-1"},
	}))
	require.NotNil(t, fact)
	assert.Equal(t, models.ShipmentStatusInProgress, fact.Shipment.Status)
}

func TestTranslateVerificationUpdated(t *testing.T) {
	st := store.New()
	l := newTestListener(st)
	now := time.Now().UTC()

	fact := l.translate(ChannelVerificationUpdated, pushPayload(t, pushEnvelope{
		Timestamp:    now,
		Verification: &models.VerificationStatus{ActorID: "carrier-1", Value: models.VerificationVerified, UpdatedAt: now},
	}))
	require.NotNil(t, fact)

	l.reconciler.Apply(*fact)
	assert.True(t, st.Verification().CanWrite())
}

func TestTranslateDropsMalformedPayload(t *testing.T) {
	l := newTestListener(store.New())
	assert.Nil(t, l.translate(ChannelNewShipment, []byte("{not json")))
	assert.Nil(t, l.translate(ChannelNewShipment, pushPayload(t, pushEnvelope{Timestamp: time.Now().UTC()})))
	assert.Nil(t, l.translate("freightfox:events:unknown", pushPayload(t, pushEnvelope{})))
}
