package publication

import (
	cardmodels "cardfeed/internal/cards/models"
	"cardfeed/internal/cards/perimeter"
	usermodels "cardfeed/internal/users/models"
)

// permissions holds the write-side authorization rules. Separate from the
// resolver: visibility and write access follow different rules.
type permissions struct{}

// canSend requires a ReceiveAndWrite right on the card's process/state and
// rejects READONLY users outright.
func (permissions) canSend(card *cardmodels.Card, user usermodels.UserContext) bool {
	if user.IsReadOnly() {
		return false
	}
	return perimeter.BuildIndex(user).CanWrite(card.Process, card.State)
}

// canEdit allows an update when the publisher is unchanged, or when the user
// belongs to the previous publisher entity or to one of the entities the old
// card explicitly allows to edit.
func (permissions) canEdit(user usermodels.UserContext, card, oldCard *cardmodels.Card) bool {
	if oldCard.Publisher == card.Publisher {
		return true
	}
	if user.MemberOfEntity(oldCard.Publisher) {
		return true
	}
	for _, entity := range oldCard.EntitiesAllowedToEdit {
		if user.MemberOfEntity(entity) {
			return true
		}
	}
	return false
}

// canDelete allows deletion of entity-published cards by members of the
// publishing entity holding a write right.
func (permissions) canDelete(card *cardmodels.Card, user usermodels.UserContext) bool {
	if user.IsReadOnly() {
		return false
	}
	if card.PublisherType != cardmodels.PublisherEntity || !user.MemberOfEntity(card.Publisher) {
		return false
	}
	return perimeter.BuildIndex(user).CanWrite(card.Process, card.State)
}
