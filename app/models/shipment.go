package models

import "time"

// ShipmentStatus defines the server-owned shipment state
type ShipmentStatus string

const (
	ShipmentStatusOpen          ShipmentStatus = "open"
	ShipmentStatusBiddingClosed ShipmentStatus = "bidding_closed"
	ShipmentStatusInProgress    ShipmentStatus = "in_progress"
	ShipmentStatusCompleted     ShipmentStatus = "completed"
	ShipmentStatusCancelled     ShipmentStatus = "cancelled"
)

// Shipment is the read-only summary the engine keeps per shipment. It is
// owned and mutated entirely server-side; locally it only gates whether a
// new bid may be created and feeds display.
type Shipment struct {
	ID        string         `json:"id"`
	Status    ShipmentStatus `json:"status"`
	OwnerID   string         `json:"owner_id"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// IsOpen reports whether the shipment still accepts new bids.
func (s *Shipment) IsOpen() bool {
	return s.Status == ShipmentStatusOpen
}
