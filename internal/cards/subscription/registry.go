package subscription

import (
	"sync"

	usermodels "cardfeed/internal/users/models"
)

// Registry holds the live subscriptions, at most one per client. Register and
// Cancel are serialized against Snapshot so a dispatch pass sees either the
// old or the new subscription for a client, never a torn state.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]*Subscription)}
}

// Register creates a subscription for the client, atomically replacing and
// closing any previous one for the same client id.
func (r *Registry) Register(clientID string, user usermodels.UserContext, opts Options) *Subscription {
	sub := newSubscription(clientID, user, opts)

	r.mu.Lock()
	prev := r.subs[clientID]
	r.subs[clientID] = sub
	r.mu.Unlock()

	if prev != nil {
		prev.terminate(StateReplaced)
	}
	return sub
}

// Cancel removes the client's subscription and closes its stream.
func (r *Registry) Cancel(clientID string) {
	r.mu.Lock()
	sub := r.subs[clientID]
	delete(r.subs, clientID)
	r.mu.Unlock()

	if sub != nil {
		sub.terminate(StateCancelled)
	}
}

// Remove drops the subscription only if it is still the registered one for
// its client. The dispatcher calls this after an Offer overflow so a newer
// registration for the same client is left untouched.
func (r *Registry) Remove(sub *Subscription) {
	r.mu.Lock()
	if r.subs[sub.ClientID] == sub {
		delete(r.subs, sub.ClientID)
	}
	r.mu.Unlock()
}

// Snapshot returns the live subscriptions at a point in time.
func (r *Registry) Snapshot() []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	return out
}

// Count returns the number of live subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
