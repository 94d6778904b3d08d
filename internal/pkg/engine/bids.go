package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/FreightFox/FreightFox/app/models"
	"github.com/FreightFox/FreightFox/internal/pkg/marketplace"
	"github.com/FreightFox/FreightFox/internal/pkg/store"
)

var validate = validator.New()

// CreateBidInput carries the caller-supplied fields of a new bid.
type CreateBidInput struct {
	ShipmentID string `json:"shipment_id" validate:"required"`
	Price      string `json:"price" validate:"required"`
	Currency   string `json:"currency" validate:"required,len=3"`
	ETA        string `json:"eta" validate:"required"`
	Message    string `json:"message"`
}

// EditBidInput carries the editable fields of a pending bid.
type EditBidInput struct {
	Price   string `json:"price" validate:"required"`
	ETA     string `json:"eta" validate:"required"`
	Message string `json:"message"`
}

// AcceptBidResult carries the accepted bid and the optional conversation
// the server opened for follow-on chat; chat initiation itself is the
// caller's concern.
type AcceptBidResult struct {
	Bid            models.Bid `json:"bid"`
	ConversationID string     `json:"conversation_id,omitempty"`
}

// CreateBid places a new bid on a shipment. The local record appears
// optimistically with a temporary id and is replaced by the server
// record on success, or removed entirely on any rejection.
func (e *Engine) CreateBid(ctx context.Context, in CreateBidInput) (models.Bid, error) {
	if err := validateInput(in); err != nil {
		return models.Bid{}, err
	}
	if err := requirePositivePrice(in.Price); err != nil {
		return models.Bid{}, err
	}
	if err := e.gate.Require(); err != nil {
		return models.Bid{}, err
	}

	if sh, ok := e.store.Shipment(in.ShipmentID); ok && !sh.IsOpen() {
		return models.Bid{}, marketplace.NewError(marketplace.KindConflict, "shipment no longer accepts bids")
	}
	// The store check runs first; the server's own conflict response is
	// the authoritative fallback when the store is stale.
	if existing, ok := e.store.ActiveBidFor(in.ShipmentID, e.actorID); ok {
		log.Debugf("[Engine] CreateBid blocked by local bid %s on shipment %s", existing.ID, in.ShipmentID)
		return models.Bid{}, marketplace.NewError(marketplace.KindDuplicateBid, "an active bid on this shipment already exists")
	}

	now := time.Now().UTC()
	temp := models.Bid{
		ID:         models.TempBidIDPrefix + uuid.New().String(),
		ShipmentID: in.ShipmentID,
		CarrierID:  e.actorID,
		Price:      in.Price,
		Currency:   in.Currency,
		ETA:        in.ETA,
		Message:    in.Message,
		Status:     models.BidStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	e.store.PutBid(temp)

	created, err := e.client.CreateBid(ctx, marketplace.CreateBidRequest{
		ShipmentID: in.ShipmentID,
		Price:      in.Price,
		Currency:   in.Currency,
		ETA:        in.ETA,
		Message:    in.Message,
	})
	if err != nil {
		e.store.RemoveBid(temp.ID)
		log.Infof("[Engine] CreateBid on shipment %s rejected: %v", in.ShipmentID, err)
		return models.Bid{}, err
	}

	e.reconciler.ReplaceBid(temp.ID, created)
	log.Infof("[Engine] Created bid %s on shipment %s", created.ID, in.ShipmentID)
	return created, nil
}

// EditBid mutates a pending bid in place. The optimistic patch is
// preserved across poll/push merges until the server response lands, and
// reverted if the server rejects the edit.
func (e *Engine) EditBid(ctx context.Context, bidID string, in EditBidInput) (models.Bid, error) {
	if err := validateInput(in); err != nil {
		return models.Bid{}, err
	}
	if err := requirePositivePrice(in.Price); err != nil {
		return models.Bid{}, err
	}
	if err := e.gate.Require(); err != nil {
		return models.Bid{}, err
	}

	prior, ok := e.store.Bid(bidID)
	if !ok {
		return models.Bid{}, marketplace.NewError(marketplace.KindConflict, "bid is not known locally")
	}
	if prior.Status != models.BidStatusPending {
		return models.Bid{}, marketplace.NewError(marketplace.KindNotPending, "only pending bids can be edited")
	}

	now := time.Now().UTC()
	patch := store.BidPatch{Price: &in.Price, ETA: &in.ETA, Message: &in.Message, UpdatedAt: &now}
	e.store.PatchBid(bidID, patch)
	e.reconciler.TrackPendingBid(bidID, patch)

	updated, err := e.client.UpdateBid(ctx, bidID, marketplace.UpdateBidRequest{
		Price:   in.Price,
		ETA:     in.ETA,
		Message: in.Message,
	})
	if err != nil {
		e.reconciler.ClearPendingBid(bidID)
		e.reconciler.RevertBid(bidID, now, prior)
		log.Infof("[Engine] EditBid %s rejected: %v", bidID, err)
		return models.Bid{}, err
	}

	e.reconciler.Apply(Fact{Source: SourceCommand, Bid: &updated})
	return updated, nil
}

// AcceptBid transitions a bid to accepted on behalf of the shipment
// owner. Sibling bids on the same shipment are left alone; the server is
// authoritative for any side effects and later polls deliver them.
func (e *Engine) AcceptBid(ctx context.Context, bidID string) (AcceptBidResult, error) {
	if err := e.gate.Require(); err != nil {
		return AcceptBidResult{}, err
	}

	prior, known := e.store.Bid(bidID)
	var stamped time.Time
	if known {
		if prior.Status != models.BidStatusPending {
			return AcceptBidResult{}, marketplace.NewError(marketplace.KindNotPending, "only pending bids can be accepted")
		}
		status := models.BidStatusAccepted
		stamped = time.Now().UTC()
		e.store.PatchBid(bidID, store.BidPatch{Status: &status, UpdatedAt: &stamped})
	}

	resp, err := e.client.AcceptBid(ctx, bidID)
	if err != nil {
		if known {
			e.reconciler.RevertBid(bidID, stamped, prior)
		}
		log.Infof("[Engine] AcceptBid %s rejected: %v", bidID, err)
		return AcceptBidResult{}, err
	}

	e.reconciler.Apply(Fact{Source: SourceCommand, Bid: &resp.Bid})
	log.Infof("[Engine] Accepted bid %s", bidID)
	return AcceptBidResult{Bid: resp.Bid, ConversationID: resp.ConversationID}, nil
}

// RejectBid transitions a bid to rejected on behalf of the shipment owner.
func (e *Engine) RejectBid(ctx context.Context, bidID string) (models.Bid, error) {
	if err := e.gate.Require(); err != nil {
		return models.Bid{}, err
	}

	prior, known := e.store.Bid(bidID)
	var stamped time.Time
	if known {
		if prior.Status != models.BidStatusPending {
			return models.Bid{}, marketplace.NewError(marketplace.KindNotPending, "only pending bids can be rejected")
		}
		status := models.BidStatusRejected
		stamped = time.Now().UTC()
		e.store.PatchBid(bidID, store.BidPatch{Status: &status, UpdatedAt: &stamped})
	}

	rejected, err := e.client.RejectBid(ctx, bidID)
	if err != nil {
		if known {
			e.reconciler.RevertBid(bidID, stamped, prior)
		}
		log.Infof("[Engine] RejectBid %s rejected: %v", bidID, err)
		return models.Bid{}, err
	}

	e.reconciler.Apply(Fact{Source: SourceCommand, Bid: &rejected})
	return rejected, nil
}

// validateInput maps struct tag violations to the validation rejection kind.
func validateInput(in interface{}) error {
	if err := validate.Struct(in); err != nil {
		return marketplace.NewError(marketplace.KindValidation, err.Error())
	}
	return nil
}

// requirePositivePrice checks the decimal string without otherwise
// interpreting it; the engine never does price arithmetic.
func requirePositivePrice(price string) error {
	v, err := strconv.ParseFloat(price, 64)
	if err != nil || v <= 0 {
		return marketplace.NewError(marketplace.KindValidation, "price must be a positive decimal")
	}
	return nil
}
