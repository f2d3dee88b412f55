// Package archive answers paginated historical card queries. The engine
// combines the user's visibility predicate with the request's declarative
// filters, delegates execution to the store, and overlays per-user read/ack
// flags on every returned card.
package archive

import (
	"context"
	"log/slog"
	"time"

	cardmodels "cardfeed/internal/cards/models"
	"cardfeed/internal/cards/perimeter"
	"cardfeed/internal/cards/store"
	"cardfeed/internal/cards/view"
	usermodels "cardfeed/internal/users/models"
	dErrors "cardfeed/pkg/domainerrors"
)

// Metrics is the subset of instrumentation the engine reports to.
type Metrics interface {
	ObserveArchiveQuery(duration time.Duration)
}

// Engine executes archived card queries. Stateless per call and safe for
// concurrent use.
type Engine struct {
	store   store.Store
	logger  *slog.Logger
	metrics Metrics
}

// New creates a query engine over the given store. metrics may be nil.
func New(st store.Store, logger *slog.Logger, metrics Metrics) *Engine {
	return &Engine{store: st, logger: logger, metrics: metrics}
}

// Query returns one page of archived cards visible to the user and matching
// all filters, sorted by publishDate descending.
//
// Notification opt-outs do not restrict archived queries: a user who muted a
// process/state can still search its history as long as they hold a right.
func (e *Engine) Query(ctx context.Context, user usermodels.UserContext, filter cardmodels.CardsFilter) (cardmodels.Page[view.CardView], error) {
	var zero cardmodels.Page[view.CardView]
	if filter.Page < 0 {
		return zero, dErrors.New(dErrors.CodeBadRequest, "page must not be negative")
	}
	if filter.Size <= 0 {
		return zero, dErrors.New(dErrors.CodeBadRequest, "size must be positive")
	}
	for _, f := range filter.Filters {
		if !cardmodels.ValidFilterColumn(f.ColumnName) {
			return zero, dErrors.Newf(dErrors.CodeBadRequest, "unknown filter column %q", f.ColumnName)
		}
	}

	start := time.Now()
	spec := store.QuerySpec{
		Visibility: visibilityFor(user),
		Filters:    filter.Filters,
		Page:       filter.Page,
		Size:       filter.Size,
	}
	cards, total, err := e.store.QueryArchived(ctx, spec)
	if err != nil {
		return zero, err
	}
	if e.metrics != nil {
		e.metrics.ObserveArchiveQuery(time.Since(start))
	}

	views := make([]view.CardView, 0, len(cards))
	for _, card := range cards {
		views = append(views, view.Annotate(card, user))
	}
	e.logger.Debug("archived query",
		"login", user.User.Login, "filters", len(filter.Filters),
		"page", filter.Page, "total", total)
	return cardmodels.NewPage(views, total, filter.Page, filter.Size), nil
}

// FindByUID returns one archived card version if the user may see it.
func (e *Engine) FindByUID(ctx context.Context, user usermodels.UserContext, uid string) (view.CardView, error) {
	card, err := e.store.FindArchivedByUID(ctx, uid)
	if err != nil {
		return view.CardView{}, err
	}
	if !visibilityFor(user).Matches(card) {
		return view.CardView{}, dErrors.Newf(dErrors.CodeNotFound, "archived card %s not found", uid)
	}
	return view.Annotate(card, user), nil
}

// visibilityFor flattens the user context into the store-level clause:
// the receivable process/state keys plus the membership sets.
func visibilityFor(user usermodels.UserContext) store.Visibility {
	idx := perimeter.BuildIndex(user)
	keys := make([]string, 0, len(idx))
	for key, right := range idx {
		if right.CanReceive() {
			keys = append(keys, key)
		}
	}
	return store.Visibility{
		Login:          user.User.Login,
		Groups:         user.User.Groups,
		Entities:       user.User.Entities,
		ReceivableKeys: keys,
	}
}
