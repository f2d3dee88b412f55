package archive

import (
	"context"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	cardmodels "cardfeed/internal/cards/models"
	"cardfeed/internal/cards/store"
	usermodels "cardfeed/internal/users/models"
	dErrors "cardfeed/pkg/domainerrors"
)

type ArchiveEngineSuite struct {
	suite.Suite
	engine *Engine
	store  *store.MemoryStore
	ctx    context.Context
	base   time.Time
	user   usermodels.UserContext
}

func (s *ArchiveEngineSuite) SetupTest() {
	s.store = store.NewMemoryStore()
	s.engine = New(s.store, slog.New(slog.DiscardHandler), nil)
	s.ctx = context.Background()
	s.base = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.user = usermodels.UserContext{
		User: usermodels.User{Login: "operator1", Groups: []string{"dispatchers"}},
		ComputedPerimeters: []usermodels.ComputedPerimeter{
			{Process: "alerting", State: "pending", Right: usermodels.RightReceive},
		},
	}
}

func TestArchiveEngineSuite(t *testing.T) {
	suite.Run(t, new(ArchiveEngineSuite))
}

func (s *ArchiveEngineSuite) saveCards(n int) {
	for i := 0; i < n; i++ {
		card := &cardmodels.Card{
			UID:               "uid-" + strconv.Itoa(i),
			ID:                cardmodels.CardID("alerting", "instance-"+strconv.Itoa(i)),
			Process:           "alerting",
			ProcessInstanceID: "instance-" + strconv.Itoa(i),
			State:             "pending",
			Publisher:         "publisher-service",
			PublisherType:     cardmodels.PublisherExternal,
			PublishDate:       s.base.Add(time.Duration(i) * time.Hour),
			StartDate:         s.base,
			GroupRecipients:   []string{"dispatchers"},
			UsersAcks:         []string{"operator1"},
		}
		s.Require().NoError(s.store.Save(s.ctx, card))
	}
}

func (s *ArchiveEngineSuite) TestQueryValidation() {
	s.Run("negative page is rejected", func() {
		_, err := s.engine.Query(s.ctx, s.user, cardmodels.CardsFilter{Page: -1, Size: 10})
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})

	s.Run("non-positive size is rejected", func() {
		_, err := s.engine.Query(s.ctx, s.user, cardmodels.CardsFilter{Page: 0, Size: 0})
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})

	s.Run("unknown filter column is rejected", func() {
		_, err := s.engine.Query(s.ctx, s.user, cardmodels.CardsFilter{
			Page: 0,
			Size: 10,
			Filters: []cardmodels.Filter{
				{ColumnName: "nonsense", MatchType: cardmodels.MatchEquals, Values: []string{"x"}},
			},
		})
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})
}

func (s *ArchiveEngineSuite) TestQueryPagination() {
	s.saveCards(5)

	page, err := s.engine.Query(s.ctx, s.user, cardmodels.CardsFilter{Page: 2, Size: 2})
	s.Require().NoError(err)

	s.Equal(int64(5), page.TotalElements)
	s.Equal(3, page.TotalPages)
	s.Len(page.Content, 1)
	s.Equal("uid-0", page.Content[0].UID)
}

func (s *ArchiveEngineSuite) TestQueryAnnotatesViews() {
	s.saveCards(1)

	page, err := s.engine.Query(s.ctx, s.user, cardmodels.CardsFilter{Page: 0, Size: 10})
	s.Require().NoError(err)
	s.Require().Len(page.Content, 1)
	s.True(page.Content[0].HasBeenAcknowledged)
	s.False(page.Content[0].HasBeenRead)
}

func (s *ArchiveEngineSuite) TestEmptyResultStillHasOnePage() {
	page, err := s.engine.Query(s.ctx, s.user, cardmodels.CardsFilter{Page: 0, Size: 10})
	s.Require().NoError(err)
	s.Zero(page.TotalElements)
	s.Equal(1, page.TotalPages)
	s.Empty(page.Content)
}

func (s *ArchiveEngineSuite) TestFindByUID() {
	s.saveCards(1)

	s.Run("visible card is returned with overlay", func() {
		cv, err := s.engine.FindByUID(s.ctx, s.user, "uid-0")
		s.Require().NoError(err)
		s.Equal("uid-0", cv.UID)
		s.True(cv.HasBeenAcknowledged)
	})

	s.Run("invisible card reads as not found", func() {
		stranger := usermodels.UserContext{User: usermodels.User{Login: "operator9"}}
		_, err := s.engine.FindByUID(s.ctx, stranger, "uid-0")
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})

	s.Run("unknown uid reads as not found", func() {
		_, err := s.engine.FindByUID(s.ctx, s.user, "uid-missing")
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})
}
