package view

import (
	"testing"

	"github.com/stretchr/testify/suite"

	cardmodels "cardfeed/internal/cards/models"
	usermodels "cardfeed/internal/users/models"
)

type OverlaySuite struct {
	suite.Suite
	card *cardmodels.Card
}

func (s *OverlaySuite) SetupTest() {
	s.card = &cardmodels.Card{
		UID:          "uid-1",
		ID:           "alerting.instance-1",
		UsersAcks:    []string{"operator2"},
		UsersReads:   []string{"operator3"},
		EntitiesAcks: []string{"control-room-a"},
	}
}

func TestOverlaySuite(t *testing.T) {
	suite.Run(t, new(OverlaySuite))
}

func (s *OverlaySuite) TestAnnotate() {
	s.Run("personal acknowledgement sets the flag", func() {
		user := usermodels.UserContext{User: usermodels.User{Login: "operator2"}}
		cv := Annotate(s.card, user)
		s.True(cv.HasBeenAcknowledged)
		s.False(cv.HasBeenRead)
	})

	s.Run("entity acknowledgement counts for members", func() {
		user := usermodels.UserContext{User: usermodels.User{Login: "operator9", Entities: []string{"control-room-a"}}}
		cv := Annotate(s.card, user)
		s.True(cv.HasBeenAcknowledged)
	})

	s.Run("read flag is strictly per user", func() {
		user := usermodels.UserContext{User: usermodels.User{Login: "operator3", Entities: []string{"control-room-b"}}}
		cv := Annotate(s.card, user)
		s.True(cv.HasBeenRead)
		s.False(cv.HasBeenAcknowledged)
	})

	s.Run("unrelated user gets neither flag", func() {
		user := usermodels.UserContext{User: usermodels.User{Login: "operator5"}}
		cv := Annotate(s.card, user)
		s.False(cv.HasBeenAcknowledged)
		s.False(cv.HasBeenRead)
	})

	s.Run("annotation never mutates the stored card", func() {
		user := usermodels.UserContext{User: usermodels.User{Login: "operator2"}}
		cv := Annotate(s.card, user)
		cv.UsersAcks = append(cv.UsersAcks, "operator7")
		s.Equal([]string{"operator2"}, s.card.UsersAcks)
	})
}
