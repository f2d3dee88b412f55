// Package resolver decides whether a user may see a given card.
//
// Rules for receiving cards:
//  1. A notification opt-out for the card's process/state blocks delivery
//     outright.
//  2. The user must hold Receive or ReceiveAndWrite on the process/state.
//  3. A card sent to the user directly is received.
//  4. A card sent to groups and/or entities is received when the user matches
//     every non-empty recipient collection; both collections empty means this
//     rule does not apply.
//  5. A card published by one of the user's entities is received.
//  6. A card published by the user themself is received.
package resolver

import (
	"log/slog"

	cardmodels "cardfeed/internal/cards/models"
	"cardfeed/internal/cards/perimeter"
	usermodels "cardfeed/internal/users/models"
)

// Resolver evaluates card visibility for user contexts. It is stateless and
// safe for concurrent use.
type Resolver struct {
	logger *slog.Logger
}

// New creates a Resolver. A nil logger disables debug tracing.
func New(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{logger: logger}
}

// MustReceive reports whether user may see card. The same (card, user) pair
// always yields the same answer.
func (r *Resolver) MustReceive(card *cardmodels.Card, user usermodels.UserContext) bool {
	return r.mustReceive(card, user, perimeter.BuildIndex(user))
}

// MustReceiveWithIndex is MustReceive with a prebuilt perimeter index, for
// callers that evaluate many cards against the same user.
func (r *Resolver) MustReceiveWithIndex(card *cardmodels.Card, user usermodels.UserContext, idx perimeter.Index) bool {
	return r.mustReceive(card, user, idx)
}

func (r *Resolver) mustReceive(card *cardmodels.Card, user usermodels.UserContext, idx perimeter.Index) bool {
	if card == nil {
		return false
	}
	if !user.MustBeNotified(card.Process, card.State) {
		return false
	}
	if !idx.CanReceive(card.Process, card.State) {
		return false
	}

	login := user.User.Login
	if contains(card.UserRecipients, login) {
		r.logger.Debug("user is in user recipients", "login", login, "card", card.ID)
		return true
	}

	if matchesGroupOrEntityRecipients(card, user) {
		r.logger.Debug("user matches group/entity recipients", "login", login, "card", card.ID)
		return true
	}

	// Cards published by one of the user's entities are always visible to
	// that entity's members.
	if card.PublisherType == cardmodels.PublisherEntity && user.MemberOfEntity(card.Publisher) {
		r.logger.Debug("user is member of publishing entity", "login", login, "card", card.ID)
		return true
	}

	if card.PublisherType == cardmodels.PublisherUser && card.Publisher == login {
		r.logger.Debug("user is the card publisher", "login", login, "card", card.ID)
		return true
	}

	return false
}

// MustReceiveDeleteOnUpdate reports whether a subscriber who does not pass
// MustReceive for the updated card must still get a synthetic DELETE so the
// stale version leaves their feed. Rights and the notification opt-out are
// checked against the card's process/state, which never change across an
// update.
func (r *Resolver) MustReceiveDeleteOnUpdate(op cardmodels.CardOperation, user usermodels.UserContext) bool {
	if op.Type != cardmodels.OperationUpdate || op.Card == nil {
		return false
	}
	if !user.MustBeNotified(op.Card.Process, op.Card.State) {
		return false
	}
	return perimeter.BuildIndex(user).CanReceive(op.Card.Process, op.Card.State)
}

// matchesGroupOrEntityRecipients applies rule 4: every non-empty recipient
// collection must intersect the user's memberships, and at least one of the
// two collections must be non-empty for the rule to grant anything.
func matchesGroupOrEntityRecipients(card *cardmodels.Card, user usermodels.UserContext) bool {
	if len(card.GroupRecipients) > 0 && !intersects(user.User.Groups, card.GroupRecipients) {
		return false
	}
	if len(card.EntityRecipients) > 0 && !intersects(user.User.Entities, card.EntityRecipients) {
		return false
	}
	return len(card.GroupRecipients) > 0 || len(card.EntityRecipients) > 0
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, v := range a {
		if contains(b, v) {
			return true
		}
	}
	return false
}
