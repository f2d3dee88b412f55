// Package store persists cards and executes the archived query predicate.
// Two implementations exist: an in-memory store for tests and single-process
// runs, and a PostgreSQL store for production. Both accept the same QuerySpec
// so the query engine stays backend-agnostic.
package store

import (
	"context"
	"time"

	cardmodels "cardfeed/internal/cards/models"
)

// Store is the persistence contract for cards. Save upserts the current
// version and archives the snapshot; the archive keeps every version.
type Store interface {
	Save(ctx context.Context, card *cardmodels.Card) error
	FindByID(ctx context.Context, id string) (*cardmodels.Card, error)
	FindArchivedByUID(ctx context.Context, uid string) (*cardmodels.Card, error)
	FindChildren(ctx context.Context, parentID string) ([]*cardmodels.Card, error)
	Delete(ctx context.Context, id string) error

	// ApplyAck records (or cancels) a user acknowledgement with the acking
	// entities on the current card version.
	ApplyAck(ctx context.Context, uid, login string, entities []string, cancel bool) error
	// MarkRead records that the user has read the current card version.
	MarkRead(ctx context.Context, uid, login string) error

	// FindCurrentInRange returns current cards whose active window overlaps
	// [from, to] and, when updatedFrom is set, published at or after it.
	// Used for the catch-up load on subscribe.
	FindCurrentInRange(ctx context.Context, from, to, updatedFrom time.Time) ([]*cardmodels.Card, error)

	// QueryArchived executes the filter spec over the archive and returns the
	// matching page plus the total match count.
	QueryArchived(ctx context.Context, spec QuerySpec) ([]*cardmodels.Card, int64, error)
}

// QuerySpec is the store-level archived query: user visibility plus the
// declarative column filters, sort fixed to publishDate descending.
type QuerySpec struct {
	Visibility Visibility
	Filters    []cardmodels.Filter
	Page       int
	Size       int
}

// Visibility is the declarative form of the resolver's rules 2-6, built once
// per query from the user context. Notification opt-outs deliberately do not
// appear here: suppressed-but-permitted cards stay queryable in the archive.
type Visibility struct {
	Login          string
	Groups         []string
	Entities       []string
	ReceivableKeys []string // "process.state" keys the user may receive
}

// Matches evaluates the visibility rules against a card in Go. The memory
// store uses it directly; the PostgreSQL store compiles the same rules to SQL.
func (v Visibility) Matches(card *cardmodels.Card) bool {
	if !containsString(v.ReceivableKeys, card.ProcessStateKey()) {
		return false
	}
	if containsString(card.UserRecipients, v.Login) {
		return true
	}
	if matchesRecipientSets(card, v.Groups, v.Entities) {
		return true
	}
	if card.PublisherType == cardmodels.PublisherEntity && containsString(v.Entities, card.Publisher) {
		return true
	}
	if card.PublisherType == cardmodels.PublisherUser && card.Publisher == v.Login {
		return true
	}
	return false
}

func matchesRecipientSets(card *cardmodels.Card, groups, entities []string) bool {
	if len(card.GroupRecipients) == 0 && len(card.EntityRecipients) == 0 {
		return false
	}
	if len(card.GroupRecipients) > 0 && !intersect(card.GroupRecipients, groups) {
		return false
	}
	if len(card.EntityRecipients) > 0 && !intersect(card.EntityRecipients, entities) {
		return false
	}
	return true
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func intersect(a, b []string) bool {
	for _, v := range a {
		if containsString(b, v) {
			return true
		}
	}
	return false
}
