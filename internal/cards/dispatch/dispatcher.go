// Package dispatch consumes the ordered card event stream from the bus and
// fans each event out to the live subscriptions. Fan-out for one event runs
// concurrently but completes before the next event is consumed, so every
// subscriber observes card mutations in publish order.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	cardmodels "cardfeed/internal/cards/models"
	"cardfeed/internal/cards/resolver"
	"cardfeed/internal/cards/subscription"
	"cardfeed/internal/cards/view"
	"cardfeed/internal/eventbus"
)

// Metrics is the subset of instrumentation the dispatcher reports to.
type Metrics interface {
	IncOperationsDispatched(opType string)
	IncSubscriberOverflows()
}

// Dispatcher routes bus events to subscribers.
type Dispatcher struct {
	bus      eventbus.Bus
	registry *subscription.Registry
	resolver *resolver.Resolver
	logger   *slog.Logger
	metrics  Metrics
}

// New creates a dispatcher. metrics may be nil.
func New(bus eventbus.Bus, registry *subscription.Registry, res *resolver.Resolver, logger *slog.Logger, metrics Metrics) *Dispatcher {
	return &Dispatcher{
		bus:      bus,
		registry: registry,
		resolver: res,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run consumes card and ack events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	events, err := d.bus.Subscribe(ctx, eventbus.TopicCard, eventbus.TopicAck)
	if err != nil {
		return fmt.Errorf("subscribe card topics: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			var op cardmodels.CardOperation
			if err := json.Unmarshal(msg.Payload, &op); err != nil {
				d.logger.Error("malformed card operation on bus",
					"topic", msg.Topic, "error", err)
				continue
			}
			d.dispatch(ctx, op)
		}
	}
}

// dispatch fans one operation out to every live subscription. Evaluation is
// isolated per subscriber: a panic while resolving one subscriber is logged
// and skips only that subscriber's delivery.
func (d *Dispatcher) dispatch(ctx context.Context, op cardmodels.CardOperation) {
	subs := d.registry.Snapshot()
	g, _ := errgroup.WithContext(ctx)
	for _, sub := range subs {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("subscriber evaluation failed",
						"client", sub.ClientID, "card", op.CardID, "panic", r)
				}
			}()
			d.deliver(op, sub)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) deliver(op cardmodels.CardOperation, sub *subscription.Subscription) {
	switch op.Type {
	case cardmodels.OperationAck, cardmodels.OperationAckCancel:
		// Ack overlays carry no card; every live subscriber gets them and
		// applies them to cards already in its feed.
		d.offer(sub, view.Operation{
			Type:         op.Type,
			CardID:       op.CardID,
			CardUID:      op.CardUID,
			EntitiesAcks: op.EntitiesAcks,
		})
		return
	}

	if op.Card == nil {
		return
	}

	if d.resolver.MustReceive(op.Card, sub.User) {
		if !op.Card.ActiveWindowOverlaps(sub.Opts.RangeStart, sub.Opts.RangeEnd) {
			return
		}
		d.offer(sub, d.project(op, sub))
		return
	}

	// A subscriber losing visibility on an update still needs the stale
	// version swept from its feed.
	if d.resolver.MustReceiveDeleteOnUpdate(op, sub.User) {
		d.offer(sub, view.Operation{
			Type:    cardmodels.OperationDelete,
			CardID:  op.CardID,
			CardUID: op.Card.UID,
		})
	}
}

// project applies the per-user overlay and the notification-only stripping.
func (d *Dispatcher) project(op cardmodels.CardOperation, sub *subscription.Subscription) view.Operation {
	cv := view.Annotate(op.Card, sub.User)
	if sub.Opts.NotificationOnly {
		cv.Data = nil
	}
	return view.Operation{
		Type:    op.Type,
		CardID:  op.CardID,
		CardUID: op.Card.UID,
		Card:    &cv,
	}
}

func (d *Dispatcher) offer(sub *subscription.Subscription, op view.Operation) {
	switch sub.Offer(op) {
	case subscription.OfferDelivered:
		if d.metrics != nil {
			d.metrics.IncOperationsDispatched(string(op.Type))
		}
	case subscription.OfferOverflow:
		// The slow subscriber was disconnected instead of blocking the
		// dispatch pass.
		d.registry.Remove(sub)
		if d.metrics != nil {
			d.metrics.IncSubscriberOverflows()
		}
		d.logger.Warn("subscriber buffer overflow, cancelling subscription",
			"client", sub.ClientID)
	case subscription.OfferClosed:
		// In-flight fan-out to a closed subscription is a no-op.
	}
}
