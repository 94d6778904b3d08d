package marketplace

import (
	"time"

	"github.com/FreightFox/FreightFox/app/models"
)

// CreateBidRequest is the wire shape for POST /bids.
type CreateBidRequest struct {
	ShipmentID string `json:"shipment_id"`
	Price      string `json:"price"`
	Currency   string `json:"currency"`
	ETA        string `json:"eta"`
	Message    string `json:"message,omitempty"`
}

// UpdateBidRequest is the wire shape for PUT /bids/:id.
type UpdateBidRequest struct {
	Price   string `json:"price"`
	ETA     string `json:"eta"`
	Message string `json:"message,omitempty"`
}

// AcceptBidResponse carries the transitioned bid plus the optional chat
// conversation the server opened for the matched pair.
type AcceptBidResponse struct {
	Bid            models.Bid `json:"bid"`
	ConversationID string     `json:"conversation_id,omitempty"`
}

// CreateSubscriptionRequest is the wire shape for POST /subscriptions/create.
type CreateSubscriptionRequest struct {
	Plan         string `json:"plan"`
	BillingCycle string `json:"billing_cycle"`
}

// CreateSubscriptionResponse carries the pending subscription plus the
// opaque payment reference the external payment widget drives.
type CreateSubscriptionResponse struct {
	Subscription models.Subscription `json:"subscription"`
	Reference    string              `json:"reference"`
}

// ConfirmSubscriptionRequest is the wire shape for POST /subscriptions/confirm.
type ConfirmSubscriptionRequest struct {
	Reference string `json:"reference"`
}

// Profile is the GET /auth/profile response; the engine only consumes
// the verification state it carries.
type Profile struct {
	ID                 string                   `json:"id"`
	VerificationStatus models.VerificationValue `json:"verification_status"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

// Verification converts the profile into the store's verification record.
func (p Profile) Verification() models.VerificationStatus {
	return models.VerificationStatus{
		ActorID:   p.ID,
		Value:     p.VerificationStatus,
		UpdatedAt: p.UpdatedAt,
	}
}
