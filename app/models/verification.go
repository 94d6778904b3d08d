package models

import "time"

// VerificationValue defines the actor verification state
type VerificationValue string

const (
	VerificationUnverified VerificationValue = "unverified"
	VerificationPending    VerificationValue = "pending"
	VerificationVerified   VerificationValue = "verified"
	VerificationRejected   VerificationValue = "rejected"
)

// VerificationStatus is attached to the current actor and gates every
// write operation of the engine.
type VerificationStatus struct {
	ActorID   string            `json:"actor_id"`
	Value     VerificationValue `json:"value"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// CanWrite derives the write capability from the verification value.
func (v VerificationStatus) CanWrite() bool {
	return v.Value == VerificationVerified
}
