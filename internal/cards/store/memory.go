package store

import (
	"context"
	"sort"
	"sync"
	"time"

	cardmodels "cardfeed/internal/cards/models"
	dErrors "cardfeed/pkg/domainerrors"
)

// MemoryStore keeps current cards and their archived versions in memory.
// Suited to tests and single-process deployments; use PostgresStore otherwise.
type MemoryStore struct {
	mu      sync.RWMutex
	current map[string]*cardmodels.Card
	archive []*cardmodels.Card
}

// NewMemoryStore creates an empty in-memory card store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{current: make(map[string]*cardmodels.Card)}
}

// Save upserts the current version of the card and appends an archive copy.
func (s *MemoryStore) Save(ctx context.Context, card *cardmodels.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current[card.ID] = card.Clone()
	s.archive = append(s.archive, card.Clone())
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*cardmodels.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	card, ok := s.current[id]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "card %s not found", id)
	}
	return card.Clone(), nil
}

func (s *MemoryStore) FindArchivedByUID(ctx context.Context, uid string) (*cardmodels.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, card := range s.archive {
		if card.UID == uid {
			return card.Clone(), nil
		}
	}
	return nil, dErrors.Newf(dErrors.CodeNotFound, "archived card %s not found", uid)
}

func (s *MemoryStore) FindChildren(ctx context.Context, parentID string) ([]*cardmodels.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var children []*cardmodels.Card
	for _, card := range s.current {
		if card.ParentCardID == parentID {
			children = append(children, card.Clone())
		}
	}
	return children, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.current[id]; !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "card %s not found", id)
	}
	delete(s.current, id)
	return nil
}

func (s *MemoryStore) ApplyAck(ctx context.Context, uid, login string, entities []string, cancel bool) error {
	return s.mutateCurrentByUID(uid, func(card *cardmodels.Card) {
		if cancel {
			card.UsersAcks = removeString(card.UsersAcks, login)
			for _, e := range entities {
				card.EntitiesAcks = removeString(card.EntitiesAcks, e)
			}
			return
		}
		card.UsersAcks = appendUnique(card.UsersAcks, login)
		for _, e := range entities {
			card.EntitiesAcks = appendUnique(card.EntitiesAcks, e)
		}
	})
}

func (s *MemoryStore) MarkRead(ctx context.Context, uid, login string) error {
	return s.mutateCurrentByUID(uid, func(card *cardmodels.Card) {
		card.UsersReads = appendUnique(card.UsersReads, login)
	})
}

// mutateCurrentByUID rewrites the current card and its archive copy in one
// step so ack and read sets stay visible through archived queries, matching
// the PostgreSQL store's transactional update of both tables.
func (s *MemoryStore) mutateCurrentByUID(uid string, mutate func(*cardmodels.Card)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	card := s.findCurrentByUID(uid)
	if card == nil {
		return dErrors.Newf(dErrors.CodeNotFound, "card %s not found", uid)
	}
	mutate(card)
	for i, archived := range s.archive {
		if archived.UID == uid {
			s.archive[i] = card.Clone()
		}
	}
	return nil
}

func (s *MemoryStore) FindCurrentInRange(ctx context.Context, from, to, updatedFrom time.Time) ([]*cardmodels.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*cardmodels.Card
	for _, card := range s.current {
		if !card.ActiveWindowOverlaps(from, to) {
			continue
		}
		if !updatedFrom.IsZero() && card.PublishDate.Before(updatedFrom) {
			continue
		}
		out = append(out, card.Clone())
	}
	return out, nil
}

// QueryArchived filters the archive, sorts by publishDate descending with
// insertion order breaking ties, and slices out the requested page.
func (s *MemoryStore) QueryArchived(ctx context.Context, spec QuerySpec) ([]*cardmodels.Card, int64, error) {
	for _, f := range spec.Filters {
		if !cardmodels.ValidFilterColumn(f.ColumnName) {
			return nil, 0, dErrors.Newf(dErrors.CodeBadRequest, "unknown filter column %q", f.ColumnName)
		}
	}

	s.mu.RLock()
	var matched []*cardmodels.Card
	for _, card := range s.archive {
		if spec.Visibility.Matches(card) && matchesFilters(card, spec.Filters) {
			matched = append(matched, card.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].PublishDate.After(matched[j].PublishDate)
	})

	total := int64(len(matched))
	start := spec.Page * spec.Size
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + spec.Size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// findCurrentByUID must be called with the lock held.
func (s *MemoryStore) findCurrentByUID(uid string) *cardmodels.Card {
	for _, card := range s.current {
		if card.UID == uid {
			return card
		}
	}
	return nil
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}

func removeString(values []string, v string) []string {
	out := values[:0]
	for _, existing := range values {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}
