// Package view projects stored cards into per-user views. The projection adds
// read and acknowledgement flags relative to one user and never mutates the
// stored snapshot; both the live feed and the archive query paths use it so
// the flags stay consistent across both.
package view

import (
	cardmodels "cardfeed/internal/cards/models"
	usermodels "cardfeed/internal/users/models"
)

// CardView is a card plus the per-user read/ack overlay.
type CardView struct {
	*cardmodels.Card
	HasBeenAcknowledged bool `json:"hasBeenAcknowledged"`
	HasBeenRead         bool `json:"hasBeenRead"`
}

// Annotate builds the per-user view of a card. The card is copied first so
// the caller's snapshot stays untouched.
func Annotate(card *cardmodels.Card, user usermodels.UserContext) CardView {
	cp := card.Clone()
	return CardView{
		Card:                cp,
		HasBeenAcknowledged: acknowledged(cp, user),
		HasBeenRead:         read(cp, user),
	}
}

func acknowledged(card *cardmodels.Card, user usermodels.UserContext) bool {
	for _, login := range card.UsersAcks {
		if login == user.User.Login {
			return true
		}
	}
	for _, entity := range card.EntitiesAcks {
		if user.MemberOfEntity(entity) {
			return true
		}
	}
	return false
}

func read(card *cardmodels.Card, user usermodels.UserContext) bool {
	for _, login := range card.UsersReads {
		if login == user.User.Login {
			return true
		}
	}
	return false
}
