package processgroups

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "cardfeed/pkg/domainerrors"
)

type ProcessGroupsSuite struct {
	suite.Suite
	svc *Service
	ctx context.Context
}

func TestProcessGroupsSuite(t *testing.T) {
	suite.Run(t, new(ProcessGroupsSuite))
}

func (s *ProcessGroupsSuite) SetupTest() {
	s.svc = New(slog.New(slog.DiscardHandler))
	s.ctx = context.Background()
}

func (s *ProcessGroupsSuite) TestReplace() {
	s.Run("valid upload installs the set", func() {
		err := s.svc.Replace(s.ctx, []Group{
			{ID: "maintenance", Processes: []string{"outage", "repair"}},
			{ID: "alerting", Processes: []string{"alerting"}},
		})
		s.Require().NoError(err)
		s.Len(s.svc.List(s.ctx), 2)
	})

	s.Run("upload replaces the previous set wholesale", func() {
		s.Require().NoError(s.svc.Replace(s.ctx, []Group{{ID: "a", Processes: []string{"p1"}}}))
		s.Require().NoError(s.svc.Replace(s.ctx, []Group{{ID: "b", Processes: []string{"p2"}}}))

		groups := s.svc.List(s.ctx)
		s.Require().Len(groups, 1)
		s.Equal("b", groups[0].ID)
	})

	s.Run("duplicate process across groups rejects with conflict", func() {
		s.Require().NoError(s.svc.Replace(s.ctx, []Group{{ID: "a", Processes: []string{"p1"}}}))

		err := s.svc.Replace(s.ctx, []Group{
			{ID: "a", Processes: []string{"p1"}},
			{ID: "b", Processes: []string{"p1"}},
		})
		s.True(dErrors.Is(err, dErrors.CodeConflict))

		groups := s.svc.List(s.ctx)
		s.Require().Len(groups, 1)
		s.Equal([]string{"p1"}, groups[0].Processes)
	})

	s.Run("duplicate process within one group is deduplicated", func() {
		err := s.svc.Replace(s.ctx, []Group{{ID: "a", Processes: []string{"p1", " p1 ", "p2"}}})
		s.Require().NoError(err)

		groups := s.svc.List(s.ctx)
		s.Require().Len(groups, 1)
		s.Equal([]string{"p1", "p2"}, groups[0].Processes)
	})

	s.Run("missing group id rejects", func() {
		err := s.svc.Replace(s.ctx, []Group{{Processes: []string{"p1"}}})
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})
}

func (s *ProcessGroupsSuite) TestListIsolation() {
	s.Require().NoError(s.svc.Replace(s.ctx, []Group{{ID: "a", Processes: []string{"p1"}}}))

	got := s.svc.List(s.ctx)
	got[0].ID = "mutated"

	s.Equal("a", s.svc.List(s.ctx)[0].ID)
}
