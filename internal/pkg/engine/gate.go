package engine

import (
	"github.com/FreightFox/FreightFox/internal/pkg/marketplace"
	"github.com/FreightFox/FreightFox/internal/pkg/store"
)

// Gate derives the actor's write capability from the verification record
// in the store. It admits mutation commands and drives poller demand:
// the engine keeps polling requested while the gate denies writes and
// releases it once the actor is verified.
type Gate struct {
	store *store.Store
}

// NewGate creates a verification gate reading from st.
func NewGate(st *store.Store) *Gate {
	return &Gate{store: st}
}

// CanWrite reports whether the current actor may issue writes.
func (g *Gate) CanWrite() bool {
	v := g.store.Verification()
	return v.CanWrite()
}

// Require returns a typed rejection when the actor may not write.
func (g *Gate) Require() error {
	if g.CanWrite() {
		return nil
	}
	return marketplace.NewError(marketplace.KindUnverified, "account is not verified for marketplace writes")
}
