package view

import cardmodels "cardfeed/internal/cards/models"

// Operation is a card operation as delivered to one subscriber: the bus-level
// operation with the card projected through the per-user overlay.
type Operation struct {
	Type         cardmodels.OperationType `json:"type"`
	CardID       string                   `json:"cardId"`
	CardUID      string                   `json:"cardUid,omitempty"`
	Card         *CardView                `json:"card,omitempty"`
	EntitiesAcks []string                 `json:"entitiesAcks,omitempty"`
}
