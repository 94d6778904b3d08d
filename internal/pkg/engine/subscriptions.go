package engine

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/FreightFox/FreightFox/app/models"
	"github.com/FreightFox/FreightFox/internal/pkg/marketplace"
	"github.com/FreightFox/FreightFox/internal/pkg/store"
)

// CreateSubscriptionInput carries the caller-supplied subscription terms.
type CreateSubscriptionInput struct {
	Plan         string `json:"plan" validate:"required"`
	BillingCycle string `json:"billing_cycle" validate:"required"`
}

// CreateSubscriptionResult carries the pending subscription and the
// opaque payment reference the external checkout widget needs.
type CreateSubscriptionResult struct {
	Subscription models.Subscription `json:"subscription"`
	Reference    string              `json:"reference"`
}

// CreateSubscription opens a new subscription in pending_payment state.
// At most one active subscription may exist; the check runs against the
// store, with the server as authoritative fallback.
func (e *Engine) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (CreateSubscriptionResult, error) {
	if err := validateInput(in); err != nil {
		return CreateSubscriptionResult{}, err
	}
	if !models.ValidPlan(in.Plan) {
		return CreateSubscriptionResult{}, marketplace.NewError(marketplace.KindValidation, "unknown plan")
	}
	if !models.ValidBillingCycle(in.BillingCycle) {
		return CreateSubscriptionResult{}, marketplace.NewError(marketplace.KindValidation, "unknown billing cycle")
	}
	if err := e.gate.Require(); err != nil {
		return CreateSubscriptionResult{}, err
	}

	if active, ok := e.store.ActiveSubscription(); ok {
		log.Debugf("[Engine] CreateSubscription blocked by active subscription %s", active.ID)
		return CreateSubscriptionResult{}, marketplace.NewError(marketplace.KindAlreadyActive, "an active subscription already exists")
	}

	now := time.Now().UTC()
	temp := models.Subscription{
		ID:           models.TempSubscriptionIDPrefix + uuid.New().String(),
		Plan:         in.Plan,
		BillingCycle: in.BillingCycle,
		Status:       models.SubscriptionStatusPendingPayment,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	e.store.PutSubscription(temp)

	resp, err := e.client.CreateSubscription(ctx, marketplace.CreateSubscriptionRequest{
		Plan:         in.Plan,
		BillingCycle: in.BillingCycle,
	})
	if err != nil {
		e.store.RemoveSubscription(temp.ID)
		log.Infof("[Engine] CreateSubscription rejected: %v", err)
		return CreateSubscriptionResult{}, err
	}

	sub := resp.Subscription
	if resp.Reference != "" {
		if sub.Metadata == nil {
			sub.Metadata = make(map[string]string, 1)
		}
		sub.Metadata[models.MetadataKeyReference] = resp.Reference
	}
	e.reconciler.ReplaceSubscription(temp.ID, sub)
	log.Infof("[Engine] Created subscription %s (%s/%s), awaiting payment", sub.ID, in.Plan, in.BillingCycle)
	return CreateSubscriptionResult{Subscription: sub, Reference: resp.Reference}, nil
}

// ConfirmSubscription reports a completed payment. The reference is an
// opaque correlation token from the payment widget, passed through
// verbatim. Confirming an already-active subscription with the same
// reference succeeds without a second network call; payment callbacks
// fire more than once.
func (e *Engine) ConfirmSubscription(ctx context.Context, reference string) (models.Subscription, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return models.Subscription{}, marketplace.NewError(marketplace.KindValidation, "payment reference is required")
	}

	if sub, ok := e.subscriptionByReference(reference); ok && sub.IsActive() {
		return sub, nil
	}

	var prior *models.Subscription
	var stamped time.Time
	if sub, ok := e.subscriptionByReference(reference); ok && sub.Status == models.SubscriptionStatusPendingPayment {
		p := sub
		prior = &p
		active := models.SubscriptionStatusActive
		stamped = time.Now().UTC()
		e.store.PatchSubscription(sub.ID, store.SubscriptionPatch{Status: &active, UpdatedAt: &stamped})
	}

	confirmed, err := e.client.ConfirmSubscription(ctx, reference)
	if err != nil {
		if prior != nil {
			e.reconciler.RevertSubscription(prior.ID, stamped, *prior)
		}
		log.Infof("[Engine] ConfirmSubscription for reference %s rejected: %v", reference, err)
		return models.Subscription{}, err
	}

	if confirmed.Metadata == nil {
		confirmed.Metadata = map[string]string{models.MetadataKeyReference: reference}
	} else if confirmed.Reference() == "" {
		confirmed.Metadata[models.MetadataKeyReference] = reference
	}
	e.reconciler.Apply(Fact{Source: SourceCommand, Subscription: &confirmed})
	log.Infof("[Engine] Subscription %s active until %v", confirmed.ID, confirmed.CurrentPeriodEnd)
	return confirmed, nil
}

// CancelSubscription transitions an active subscription to cancelled.
// Cancelling twice yields the non-fatal already_cancelled rejection;
// callers should refresh rather than report a failure.
func (e *Engine) CancelSubscription(ctx context.Context, subscriptionID string) (models.Subscription, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return models.Subscription{}, marketplace.NewError(marketplace.KindValidation, "subscription id is required")
	}
	if err := e.gate.Require(); err != nil {
		return models.Subscription{}, err
	}

	prior, known := e.store.Subscription(subscriptionID)
	if known && prior.Status == models.SubscriptionStatusCancelled {
		return models.Subscription{}, marketplace.NewError(marketplace.KindAlreadyCancelled, "subscription is already cancelled")
	}
	var stamped time.Time
	if known {
		cancelled := models.SubscriptionStatusCancelled
		stamped = time.Now().UTC()
		e.store.PatchSubscription(subscriptionID, store.SubscriptionPatch{Status: &cancelled, UpdatedAt: &stamped})
	}

	result, err := e.client.CancelSubscription(ctx, subscriptionID)
	if err != nil {
		if known {
			e.reconciler.RevertSubscription(subscriptionID, stamped, prior)
		}
		log.Infof("[Engine] CancelSubscription %s rejected: %v", subscriptionID, err)
		return models.Subscription{}, err
	}

	e.reconciler.Apply(Fact{Source: SourceCommand, Subscription: &result})
	log.Infof("[Engine] Cancelled subscription %s", subscriptionID)
	return result, nil
}

// subscriptionByReference finds the subscription carrying the payment
// reference in its metadata.
func (e *Engine) subscriptionByReference(reference string) (models.Subscription, bool) {
	for _, sub := range e.store.Subscriptions() {
		if sub.Reference() == reference {
			return sub, true
		}
	}
	return models.Subscription{}, false
}
