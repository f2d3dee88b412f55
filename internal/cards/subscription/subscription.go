// Package subscription tracks live feed subscriptions: one per client, each
// with its own bounded delivery buffer. The dispatcher fans events out to the
// registered subscriptions; a subscriber that stops draining its buffer is
// disconnected rather than ever blocking the dispatcher.
package subscription

import (
	"sync"
	"time"

	"cardfeed/internal/cards/view"
	usermodels "cardfeed/internal/users/models"
)

// State is the lifecycle phase of a subscription. The only transitions are
// Active -> Replaced and Active -> Cancelled; both are terminal.
type State int

const (
	StateActive State = iota
	StateReplaced
	StateCancelled
)

// DefaultBufferSize bounds the per-subscriber delivery buffer.
const DefaultBufferSize = 128

// Options carries the per-client feed parameters.
type Options struct {
	RangeStart       time.Time // zero = open lower bound
	RangeEnd         time.Time // zero = open upper bound
	UpdatedFrom      time.Time // zero = no catch-up lower bound
	NotificationOnly bool
	BufferSize       int
}

// Subscription is one client's live request for card operations.
type Subscription struct {
	ClientID string
	User     usermodels.UserContext
	Opts     Options

	mu    sync.Mutex
	state State
	out   chan view.Operation
}

func newSubscription(clientID string, user usermodels.UserContext, opts Options) *Subscription {
	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Subscription{
		ClientID: clientID,
		User:     user,
		Opts:     opts,
		out:      make(chan view.Operation, size),
	}
}

// Operations is the subscriber's delivery stream. It is closed when the
// subscription is replaced or cancelled.
func (s *Subscription) Operations() <-chan view.Operation {
	return s.out
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OfferResult reports what happened to an offered operation.
type OfferResult int

const (
	OfferDelivered OfferResult = iota
	OfferOverflow              // buffer was full; the subscription is now cancelled
	OfferClosed                // the subscription had already terminated
)

// Offer enqueues an operation without blocking. A full buffer cancels the
// subscription (backpressure-as-disconnect); offers after termination are
// no-ops.
func (s *Subscription) Offer(op view.Operation) OfferResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return OfferClosed
	}
	select {
	case s.out <- op:
		return OfferDelivered
	default:
		s.state = StateCancelled
		close(s.out)
		return OfferOverflow
	}
}

// terminate moves the subscription to a terminal state and closes the stream.
// Safe to call more than once; only the first call has an effect.
func (s *Subscription) terminate(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return
	}
	s.state = to
	close(s.out)
}
