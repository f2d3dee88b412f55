package models

// OperationType enumerates the card mutations carried on the event bus and
// delivered to feed subscribers.
type OperationType string

const (
	OperationAdd       OperationType = "ADD"
	OperationUpdate    OperationType = "UPDATE"
	OperationDelete    OperationType = "DELETE"
	OperationAck       OperationType = "ACK"
	OperationAckCancel OperationType = "ACK_CANCEL"
)

// CardOperation is the unit of delivery to a subscriber. Card is present for
// ADD/UPDATE, EntitiesAcks for ACK/ACK_CANCEL.
type CardOperation struct {
	Type         OperationType `json:"type"`
	CardID       string        `json:"cardId"`
	CardUID      string        `json:"cardUid,omitempty"`
	Card         *Card         `json:"card,omitempty"`
	EntitiesAcks []string      `json:"entitiesAcks,omitempty"`
}
