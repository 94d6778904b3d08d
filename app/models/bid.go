package models

import (
	"strings"
	"time"
)

// BidStatus defines the lifecycle state of a bid
type BidStatus string

const (
	BidStatusPending  BidStatus = "pending"
	BidStatusAccepted BidStatus = "accepted"
	BidStatusRejected BidStatus = "rejected"
)

// TempBidIDPrefix marks locally generated bid ids that have not been
// acknowledged by the marketplace yet.
const TempBidIDPrefix = "tmp-"

// Bid mirrors a carrier bid on a shipment as known to the marketplace.
// Price is carried as a decimal string; the engine never does arithmetic
// on it beyond positivity validation.
type Bid struct {
	ID         string    `json:"id"`
	ShipmentID string    `json:"shipment_id"`
	CarrierID  string    `json:"carrier_id"`
	Price      string    `json:"price"`
	Currency   string    `json:"currency"`
	ETA        string    `json:"eta"`
	Message    string    `json:"message,omitempty"`
	Status     BidStatus `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsActive reports whether the bid blocks another bid on the same
// (shipment, carrier) pair. Rejected bids never block.
func (b *Bid) IsActive() bool {
	return b.Status == BidStatusPending || b.Status == BidStatusAccepted
}

// IsTemporary reports whether the bid still carries a local optimistic id.
func (b *Bid) IsTemporary() bool {
	return strings.HasPrefix(b.ID, TempBidIDPrefix)
}

// BidStatusRank orders bid statuses for the monotonic transition guard.
// pending < accepted and pending < rejected; accepted and rejected are
// terminal and never yield to each other or back to pending.
func BidStatusRank(s BidStatus) int {
	switch s {
	case BidStatusPending:
		return 1
	case BidStatusAccepted, BidStatusRejected:
		return 2
	default:
		return 0
	}
}
