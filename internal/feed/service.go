// Package feed manages live card subscriptions: registration, the catch-up
// load of cards already in the requested range, and disconnection.
package feed

import (
	"context"
	"log/slog"

	cardmodels "cardfeed/internal/cards/models"
	"cardfeed/internal/cards/perimeter"
	"cardfeed/internal/cards/resolver"
	"cardfeed/internal/cards/store"
	"cardfeed/internal/cards/subscription"
	"cardfeed/internal/cards/view"
	"cardfeed/internal/connections"
	usermodels "cardfeed/internal/users/models"
)

// Metrics is the subset of instrumentation the feed reports to.
type Metrics interface {
	SetActiveSubscriptions(count int)
}

// Service wires the subscription registry, the card store and the connection
// tracker behind the subscribe/unsubscribe operations.
type Service struct {
	registry *subscription.Registry
	store    store.Store
	resolver *resolver.Resolver
	tracker  connections.Tracker
	logger   *slog.Logger
	metrics  Metrics
	buffer   int
}

// NewService creates the feed service. metrics may be nil; bufferSize <= 0
// falls back to the subscription default.
func NewService(registry *subscription.Registry, st store.Store, res *resolver.Resolver, tracker connections.Tracker, logger *slog.Logger, metrics Metrics, bufferSize int) *Service {
	return &Service{
		registry: registry,
		store:    st,
		resolver: res,
		tracker:  tracker,
		logger:   logger,
		metrics:  metrics,
		buffer:   bufferSize,
	}
}

// Registry exposes the subscription registry for the dispatcher wiring.
func (s *Service) Registry() *subscription.Registry {
	return s.registry
}

// Subscribe opens (or replaces) the client's subscription and emits initial
// ADD operations for cards already matching the requested range. Among
// archived duplicates of the same card id, only the most recently published
// version is delivered.
func (s *Service) Subscribe(ctx context.Context, clientID string, user usermodels.UserContext, opts subscription.Options) (*subscription.Subscription, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = s.buffer
	}
	sub := s.registry.Register(clientID, user, opts)
	if s.metrics != nil {
		s.metrics.SetActiveSubscriptions(s.registry.Count())
	}

	if err := s.tracker.Connected(ctx, connections.Connection{
		ClientID: clientID,
		Login:    user.User.Login,
		Groups:   user.User.Groups,
		Entities: user.User.Entities,
	}); err != nil {
		s.logger.Warn("connection tracking failed", "client", clientID, "error", err)
	}

	if err := s.catchUp(ctx, sub); err != nil {
		s.registry.Cancel(clientID)
		return nil, err
	}

	s.logger.Info("feed subscription opened",
		"client", clientID, "login", user.User.Login,
		"notification_only", opts.NotificationOnly)
	return sub, nil
}

// Unsubscribe closes the client's subscription and clears its presence.
func (s *Service) Unsubscribe(ctx context.Context, clientID string) {
	s.registry.Cancel(clientID)
	if s.metrics != nil {
		s.metrics.SetActiveSubscriptions(s.registry.Count())
	}
	if err := s.tracker.Disconnected(ctx, clientID); err != nil {
		s.logger.Warn("connection removal failed", "client", clientID, "error", err)
	}
	s.logger.Info("feed subscription closed", "client", clientID)
}

// Connections lists the currently connected feed clients.
func (s *Service) Connections(ctx context.Context) ([]connections.Connection, error) {
	return s.tracker.List(ctx)
}

// catchUp loads cards already active in the subscription's range and offers
// them as ADD operations before live dispatch takes over.
func (s *Service) catchUp(ctx context.Context, sub *subscription.Subscription) error {
	opts := sub.Opts
	if opts.RangeStart.IsZero() && opts.RangeEnd.IsZero() && opts.UpdatedFrom.IsZero() {
		return nil
	}
	cards, err := s.store.FindCurrentInRange(ctx, opts.RangeStart, opts.RangeEnd, opts.UpdatedFrom)
	if err != nil {
		return err
	}

	idx := perimeter.BuildIndex(sub.User)
	for _, card := range latestPerCard(cards) {
		if !s.resolver.MustReceiveWithIndex(card, sub.User, idx) {
			continue
		}
		cv := view.Annotate(card, sub.User)
		if opts.NotificationOnly {
			cv.Data = nil
		}
		sub.Offer(view.Operation{
			Type:    cardmodels.OperationAdd,
			CardID:  card.ID,
			CardUID: card.UID,
			Card:    &cv,
		})
	}
	return nil
}

// latestPerCard keeps, for each card id, the version with the most recent
// publish date. Later entries win ties so the newest stored version survives.
func latestPerCard(cards []*cardmodels.Card) []*cardmodels.Card {
	latest := make(map[string]*cardmodels.Card, len(cards))
	order := make([]string, 0, len(cards))
	for _, card := range cards {
		existing, ok := latest[card.ID]
		if !ok {
			latest[card.ID] = card
			order = append(order, card.ID)
			continue
		}
		if !card.PublishDate.Before(existing.PublishDate) {
			latest[card.ID] = card
		}
	}
	out := make([]*cardmodels.Card, 0, len(latest))
	for _, id := range order {
		out = append(out, latest[id])
	}
	return out
}
