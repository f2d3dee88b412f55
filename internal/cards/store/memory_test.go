package store

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	cardmodels "cardfeed/internal/cards/models"
	dErrors "cardfeed/pkg/domainerrors"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
	ctx   context.Context
	base  time.Time
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.ctx = context.Background()
	s.base = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newCard(instance string, publish time.Time) *cardmodels.Card {
	return &cardmodels.Card{
		UID:               "uid-" + instance + "-" + strconv.FormatInt(publish.UnixMilli(), 10),
		ID:                cardmodels.CardID("alerting", instance),
		Process:           "alerting",
		ProcessInstanceID: instance,
		State:             "pending",
		Publisher:         "publisher-service",
		PublisherType:     cardmodels.PublisherExternal,
		Severity:          cardmodels.SeverityAlarm,
		Title:             "title-" + instance,
		PublishDate:       publish,
		StartDate:         publish,
		GroupRecipients:   []string{"dispatchers"},
	}
}

func (s *MemoryStoreSuite) visibility() Visibility {
	return Visibility{
		Login:          "operator1",
		Groups:         []string{"dispatchers"},
		ReceivableKeys: []string{"alerting.pending"},
	}
}

func (s *MemoryStoreSuite) millis(t time.Time) []string {
	return []string{strconv.FormatInt(t.UnixMilli(), 10)}
}

func (s *MemoryStoreSuite) TestCurrentLifecycle() {
	s.Run("save then find by id", func() {
		card := s.newCard("instance-1", s.base)
		s.Require().NoError(s.store.Save(s.ctx, card))

		found, err := s.store.FindByID(s.ctx, card.ID)
		s.Require().NoError(err)
		s.Equal(card.UID, found.UID)
	})

	s.Run("save replaces the current version but archives both", func() {
		first := s.newCard("instance-1", s.base)
		second := s.newCard("instance-1", s.base.Add(time.Hour))
		s.Require().NoError(s.store.Save(s.ctx, first))
		s.Require().NoError(s.store.Save(s.ctx, second))

		found, err := s.store.FindByID(s.ctx, first.ID)
		s.Require().NoError(err)
		s.Equal(second.UID, found.UID)

		archivedFirst, err := s.store.FindArchivedByUID(s.ctx, first.UID)
		s.Require().NoError(err)
		s.Equal(first.UID, archivedFirst.UID)
	})

	s.Run("delete removes the current version only", func() {
		card := s.newCard("instance-1", s.base)
		s.Require().NoError(s.store.Save(s.ctx, card))
		s.Require().NoError(s.store.Delete(s.ctx, card.ID))

		_, err := s.store.FindByID(s.ctx, card.ID)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))

		_, err = s.store.FindArchivedByUID(s.ctx, card.UID)
		s.NoError(err)
	})

	s.Run("delete of an unknown card reports not found", func() {
		err := s.store.Delete(s.ctx, "alerting.nothing")
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})

	s.Run("find children", func() {
		parent := s.newCard("parent", s.base)
		child := s.newCard("child", s.base)
		child.ParentCardID = parent.ID
		s.Require().NoError(s.store.Save(s.ctx, parent))
		s.Require().NoError(s.store.Save(s.ctx, child))

		children, err := s.store.FindChildren(s.ctx, parent.ID)
		s.Require().NoError(err)
		s.Require().Len(children, 1)
		s.Equal(child.ID, children[0].ID)
	})
}

func (s *MemoryStoreSuite) TestAcksAndReads() {
	card := s.newCard("instance-1", s.base)
	s.Require().NoError(s.store.Save(s.ctx, card))

	s.Run("ack is recorded once per user", func() {
		s.Require().NoError(s.store.ApplyAck(s.ctx, card.UID, "operator1", []string{"control-room-a"}, false))
		s.Require().NoError(s.store.ApplyAck(s.ctx, card.UID, "operator1", nil, false))

		found, err := s.store.FindByID(s.ctx, card.ID)
		s.Require().NoError(err)
		s.Equal([]string{"operator1"}, found.UsersAcks)
		s.Equal([]string{"control-room-a"}, found.EntitiesAcks)
	})

	s.Run("ack cancellation removes user and entities", func() {
		s.Require().NoError(s.store.ApplyAck(s.ctx, card.UID, "operator1", []string{"control-room-a"}, true))

		found, err := s.store.FindByID(s.ctx, card.ID)
		s.Require().NoError(err)
		s.Empty(found.UsersAcks)
		s.Empty(found.EntitiesAcks)
	})

	s.Run("read marking is idempotent", func() {
		s.Require().NoError(s.store.MarkRead(s.ctx, card.UID, "operator2"))
		s.Require().NoError(s.store.MarkRead(s.ctx, card.UID, "operator2"))

		found, err := s.store.FindByID(s.ctx, card.ID)
		s.Require().NoError(err)
		s.Equal([]string{"operator2"}, found.UsersReads)
	})

	s.Run("ack on an unknown uid reports not found", func() {
		err := s.store.ApplyAck(s.ctx, "nope", "operator1", nil, false)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})
}

func (s *MemoryStoreSuite) TestAcksAndReadsReachArchive() {
	card := s.newCard("instance-1", s.base)
	s.Require().NoError(s.store.Save(s.ctx, card))

	s.Run("ack shows on the archived copy", func() {
		s.Require().NoError(s.store.ApplyAck(s.ctx, card.UID, "operator1", []string{"control-room-a"}, false))

		archived, err := s.store.FindArchivedByUID(s.ctx, card.UID)
		s.Require().NoError(err)
		s.Contains(archived.UsersAcks, "operator1")
		s.Contains(archived.EntitiesAcks, "control-room-a")
	})

	s.Run("read shows on the archived copy", func() {
		s.Require().NoError(s.store.MarkRead(s.ctx, card.UID, "operator1"))

		archived, err := s.store.FindArchivedByUID(s.ctx, card.UID)
		s.Require().NoError(err)
		s.Contains(archived.UsersReads, "operator1")
	})

	s.Run("archived query sees the updated sets", func() {
		cards, _, err := s.store.QueryArchived(s.ctx, QuerySpec{Visibility: s.visibility(), Page: 0, Size: 10})
		s.Require().NoError(err)
		s.Require().Len(cards, 1)
		s.Contains(cards[0].UsersAcks, "operator1")
		s.Contains(cards[0].UsersReads, "operator1")
	})

	s.Run("ack cancellation clears the archived copy too", func() {
		s.Require().NoError(s.store.ApplyAck(s.ctx, card.UID, "operator1", []string{"control-room-a"}, true))

		archived, err := s.store.FindArchivedByUID(s.ctx, card.UID)
		s.Require().NoError(err)
		s.Empty(archived.UsersAcks)
		s.Empty(archived.EntitiesAcks)
	})

	s.Run("only the current version's archive row is rewritten", func() {
		newer := s.newCard("instance-1", s.base.Add(time.Hour))
		s.Require().NoError(s.store.Save(s.ctx, newer))
		s.Require().NoError(s.store.ApplyAck(s.ctx, newer.UID, "operator2", nil, false))

		older, err := s.store.FindArchivedByUID(s.ctx, card.UID)
		s.Require().NoError(err)
		s.NotContains(older.UsersAcks, "operator2")
	})
}

func (s *MemoryStoreSuite) TestFindCurrentInRange() {
	endEarly := s.base.Add(30 * time.Minute)
	open := s.newCard("open-ended", s.base)
	closed := s.newCard("closed", s.base)
	closed.EndDate = &endEarly
	late := s.newCard("late", s.base.Add(2*time.Hour))
	late.StartDate = s.base.Add(2 * time.Hour)

	for _, c := range []*cardmodels.Card{open, closed, late} {
		s.Require().NoError(s.store.Save(s.ctx, c))
	}

	s.Run("window bounds select overlapping cards", func() {
		got, err := s.store.FindCurrentInRange(s.ctx, s.base.Add(time.Hour), s.base.Add(90*time.Minute), time.Time{})
		s.Require().NoError(err)
		s.Len(got, 1) // only the open-ended card overlaps
		s.Equal(open.ID, got[0].ID)
	})

	s.Run("updatedFrom filters on publish date", func() {
		got, err := s.store.FindCurrentInRange(s.ctx, time.Time{}, time.Time{}, s.base.Add(time.Hour))
		s.Require().NoError(err)
		s.Len(got, 1)
		s.Equal(late.ID, got[0].ID)
	})
}

func (s *MemoryStoreSuite) TestQueryArchivedVisibility() {
	visible := s.newCard("visible", s.base)
	otherGroup := s.newCard("other-group", s.base)
	otherGroup.GroupRecipients = []string{"planners"}
	noRights := s.newCard("no-rights", s.base)
	noRights.State = "confidential"
	direct := s.newCard("direct", s.base)
	direct.GroupRecipients = nil
	direct.UserRecipients = []string{"operator1"}

	for _, c := range []*cardmodels.Card{visible, otherGroup, noRights, direct} {
		s.Require().NoError(s.store.Save(s.ctx, c))
	}

	cards, total, err := s.store.QueryArchived(s.ctx, QuerySpec{
		Visibility: s.visibility(),
		Page:       0,
		Size:       10,
	})
	s.Require().NoError(err)
	s.Equal(int64(2), total)

	var ids []string
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	s.ElementsMatch([]string{visible.ID, direct.ID}, ids)
}

func (s *MemoryStoreSuite) TestQueryArchivedFilters() {
	early := s.newCard("early", s.base)
	mid := s.newCard("mid", s.base.Add(time.Hour))
	mid.Severity = cardmodels.SeverityInformation
	lateEnd := s.base.Add(3 * time.Hour)
	late := s.newCard("late", s.base.Add(2*time.Hour))
	late.StartDate = s.base.Add(2 * time.Hour)
	late.EndDate = &lateEnd

	for _, c := range []*cardmodels.Card{early, mid, late} {
		s.Require().NoError(s.store.Save(s.ctx, c))
	}

	query := func(filters ...cardmodels.Filter) []string {
		cards, _, err := s.store.QueryArchived(s.ctx, QuerySpec{
			Visibility: s.visibility(),
			Filters:    filters,
			Page:       0,
			Size:       10,
		})
		s.Require().NoError(err)
		ids := make([]string, 0, len(cards))
		for _, c := range cards {
			ids = append(ids, c.ProcessInstanceID)
		}
		return ids
	}

	s.Run("publish date bounds are inclusive", func() {
		ids := query(
			cardmodels.Filter{ColumnName: cardmodels.ColumnPublishDateFrom, MatchType: cardmodels.MatchEquals, Values: s.millis(s.base.Add(time.Hour))},
			cardmodels.Filter{ColumnName: cardmodels.ColumnPublishDateTo, MatchType: cardmodels.MatchEquals, Values: s.millis(s.base.Add(2 * time.Hour))},
		)
		s.ElementsMatch([]string{"mid", "late"}, ids)
	})

	s.Run("activeFrom keeps open-ended cards", func() {
		ids := query(cardmodels.Filter{ColumnName: cardmodels.ColumnActiveFrom, MatchType: cardmodels.MatchEquals, Values: s.millis(s.base.Add(4 * time.Hour))})
		s.ElementsMatch([]string{"early", "mid"}, ids) // late ended at base+3h
	})

	s.Run("activeTo drops cards starting after the bound", func() {
		ids := query(cardmodels.Filter{ColumnName: cardmodels.ColumnActiveTo, MatchType: cardmodels.MatchEquals, Values: s.millis(s.base.Add(time.Hour))})
		s.ElementsMatch([]string{"early", "mid"}, ids)
	})

	s.Run("scalar EQUALS and IN accept any listed value", func() {
		ids := query(cardmodels.Filter{ColumnName: "severity", MatchType: cardmodels.MatchIn, Values: []string{"INFORMATION"}})
		s.ElementsMatch([]string{"mid"}, ids)
	})

	s.Run("unknown column rejects the query", func() {
		_, _, err := s.store.QueryArchived(s.ctx, QuerySpec{
			Visibility: s.visibility(),
			Filters:    []cardmodels.Filter{{ColumnName: "nonsense", MatchType: cardmodels.MatchEquals, Values: []string{"x"}}},
			Page:       0,
			Size:       10,
		})
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})

	s.Run("filters combine with AND semantics", func() {
		ids := query(
			cardmodels.Filter{ColumnName: "severity", MatchType: cardmodels.MatchEquals, Values: []string{"ALARM"}},
			cardmodels.Filter{ColumnName: cardmodels.ColumnPublishDateFrom, MatchType: cardmodels.MatchEquals, Values: s.millis(s.base.Add(time.Hour))},
		)
		s.ElementsMatch([]string{"late"}, ids)
	})
}

func (s *MemoryStoreSuite) TestQueryArchivedSortAndPaging() {
	for i := 0; i < 5; i++ {
		card := s.newCard("instance-"+strconv.Itoa(i), s.base.Add(time.Duration(i)*time.Hour))
		s.Require().NoError(s.store.Save(s.ctx, card))
	}

	s.Run("sorted by publish date descending", func() {
		cards, total, err := s.store.QueryArchived(s.ctx, QuerySpec{Visibility: s.visibility(), Page: 0, Size: 10})
		s.Require().NoError(err)
		s.Equal(int64(5), total)
		s.Equal("instance-4", cards[0].ProcessInstanceID)
		s.Equal("instance-0", cards[4].ProcessInstanceID)
	})

	s.Run("page slicing returns 2,2,1 for size 2", func() {
		for page, want := range map[int]int{0: 2, 1: 2, 2: 1} {
			cards, total, err := s.store.QueryArchived(s.ctx, QuerySpec{Visibility: s.visibility(), Page: page, Size: 2})
			s.Require().NoError(err)
			s.Equal(int64(5), total)
			s.Len(cards, want, "page %d", page)
		}
	})

	s.Run("page past the end is empty", func() {
		cards, total, err := s.store.QueryArchived(s.ctx, QuerySpec{Visibility: s.visibility(), Page: 9, Size: 2})
		s.Require().NoError(err)
		s.Equal(int64(5), total)
		s.Empty(cards)
	})

	s.Run("equal publish dates keep insertion order", func() {
		a := s.newCard("tie-a", s.base.Add(10*time.Hour))
		b := s.newCard("tie-b", s.base.Add(10*time.Hour))
		s.Require().NoError(s.store.Save(s.ctx, a))
		s.Require().NoError(s.store.Save(s.ctx, b))

		cards, _, err := s.store.QueryArchived(s.ctx, QuerySpec{Visibility: s.visibility(), Page: 0, Size: 2})
		s.Require().NoError(err)
		s.Equal("tie-a", cards[0].ProcessInstanceID)
		s.Equal("tie-b", cards[1].ProcessInstanceID)
	})
}
