package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/FreightFox/FreightFox/app/models"
	"github.com/FreightFox/FreightFox/internal/pkg/cache"
)

// Redis channels the marketplace platform publishes push events on
const (
	ChannelNewShipment         = "freightfox:events:new-shipment"
	ChannelShipmentUpdated     = "freightfox:events:shipment-updated"
	ChannelVerificationUpdated = "freightfox:events:verification-updated"
)

// pushEnvelope is the wire shape of one push event: the full entity
// payload plus the server-side emission timestamp.
type pushEnvelope struct {
	Timestamp    time.Time                  `json:"timestamp"`
	Shipment     *models.Shipment           `json:"shipment,omitempty"`
	Verification *models.VerificationStatus `json:"verification,omitempty"`
}

// PushListener subscribes to the marketplace push channels and feeds the
// events into the reconciler. Reconnection is the redis client's
// concern; the listener just drains the subscription.
type PushListener struct {
	reconciler *Reconciler
	actorID    string
	client     *redis.Client

	mu      sync.Mutex
	pubsub  *redis.PubSub
	wg      sync.WaitGroup
	running bool
}

// NewPushListener creates a listener for the given carrier.
func NewPushListener(reconciler *Reconciler, actorID string) *PushListener {
	return &PushListener{
		reconciler: reconciler,
		actorID:    actorID,
		client:     cache.GetClient(),
	}
}

// Start opens the subscription and begins draining events.
func (l *PushListener) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}

	l.pubsub = l.client.Subscribe(context.Background(),
		ChannelNewShipment, ChannelShipmentUpdated, ChannelVerificationUpdated)
	l.running = true

	ch := l.pubsub.Channel()
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for msg := range ch {
			if fact := l.translate(msg.Channel, []byte(msg.Payload)); fact != nil {
				l.reconciler.Apply(*fact)
			}
		}
	}()
	log.Info("[Push] Listening for marketplace events")
}

// Stop closes the subscription and waits for the drain loop to exit.
func (l *PushListener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	if err := l.pubsub.Close(); err != nil {
		log.Errorf("[Push] Failed to close subscription: %v", err)
	}
	l.running = false
	l.wg.Wait()
	log.Info("[Push] Stopped")
}

// translate maps one push message to a reconciler fact, or nil when the
// event is filtered or malformed. new-shipment only surfaces shipments
// the actor does not own and that are still open.
func (l *PushListener) translate(channel string, payload []byte) *Fact {
	var env pushEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		log.Errorf("[Push] Dropping malformed event on %s: %v", channel, err)
		return nil
	}

	switch channel {
	case ChannelNewShipment:
		if env.Shipment == nil {
			return nil
		}
		if env.Shipment.OwnerID == l.actorID || !env.Shipment.IsOpen() {
			log.Debugf("[Push] Filtered new-shipment %s", env.Shipment.ID)
			return nil
		}
		return &Fact{Source: SourcePush, Shipment: env.Shipment, ServerTime: env.Timestamp}
	case ChannelShipmentUpdated:
		if env.Shipment == nil {
			return nil
		}
		return &Fact{Source: SourcePush, Shipment: env.Shipment, ServerTime: env.Timestamp}
	case ChannelVerificationUpdated:
		if env.Verification == nil {
			return nil
		}
		return &Fact{Source: SourcePush, Verification: env.Verification, ServerTime: env.Timestamp}
	default:
		return nil
	}
}
