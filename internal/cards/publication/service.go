// Package publication validates, persists and announces card mutations.
// Every accepted mutation terminates in an event-bus publish; the dispatcher
// on the consultation side turns those events into per-subscriber deliveries.
package publication

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cardfeed/internal/cards/extract"
	cardmodels "cardfeed/internal/cards/models"
	"cardfeed/internal/cards/store"
	"cardfeed/internal/eventbus"
	usermodels "cardfeed/internal/users/models"
	dErrors "cardfeed/pkg/domainerrors"
	pstrings "cardfeed/pkg/platform/strings"
)

// Metrics is the subset of instrumentation the service reports to.
type Metrics interface {
	IncCardsPublished(opType string)
}

// Service is the card publication façade.
type Service struct {
	store      store.Store
	bus        eventbus.Bus
	validator  validator
	perms      permissions
	logger     *slog.Logger
	metrics    Metrics
	dataFields []string
	now        func() time.Time
}

// NewService creates the publication service. dataFields lists the dot-paths
// of card data forwarded to feed subscribers; everything else is stripped
// before an operation reaches the bus. metrics may be nil.
func NewService(st store.Store, bus eventbus.Bus, logger *slog.Logger, metrics Metrics, dataFields []string) *Service {
	return &Service{
		store:      st,
		bus:        bus,
		validator:  validator{store: st},
		logger:     logger,
		metrics:    metrics,
		dataFields: dataFields,
		now:        time.Now,
	}
}

// PublishCard validates and stores the card, then announces it as ADD or
// UPDATE. Validation failures reject the card before anything is applied.
func (s *Service) PublishCard(ctx context.Context, card *cardmodels.Card, user usermodels.UserContext) (*cardmodels.Card, error) {
	if card == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no card in request")
	}
	if card.PublisherType == "" {
		card.PublisherType = cardmodels.PublisherExternal
	}
	if err := s.validator.validate(ctx, card); err != nil {
		return nil, err
	}
	if !s.perms.canSend(card, user) {
		return nil, dErrors.Newf(dErrors.CodeForbidden,
			"user %s is not allowed to publish on %s.%s", user.User.Login, card.Process, card.State)
	}

	card.ID = cardmodels.CardID(card.Process, card.ProcessInstanceID)
	card.UID = uuid.NewString()
	card.PublishDate = s.now().UTC()
	card.UserRecipients = pstrings.DedupeAndTrim(card.UserRecipients)
	card.GroupRecipients = pstrings.DedupeAndTrim(card.GroupRecipients)
	card.EntityRecipients = pstrings.DedupeAndTrim(card.EntityRecipients)
	card.EntitiesAllowedToEdit = pstrings.DedupeAndTrim(card.EntitiesAllowedToEdit)

	opType := cardmodels.OperationAdd
	existing, err := s.store.FindByID(ctx, card.ID)
	switch {
	case err == nil:
		if !s.perms.canEdit(user, card, existing) {
			return nil, dErrors.Newf(dErrors.CodeForbidden,
				"user %s is not allowed to edit card %s", user.User.Login, card.ID)
		}
		opType = cardmodels.OperationUpdate
	case !dErrors.Is(err, dErrors.CodeNotFound):
		return nil, err
	}

	if err := s.store.Save(ctx, card); err != nil {
		return nil, err
	}
	if err := s.notify(ctx, card, opType); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncCardsPublished(string(opType))
	}
	return card, nil
}

// DeleteCard removes the card and its children (nesting is one level deep)
// and announces a DELETE for each.
func (s *Service) DeleteCard(ctx context.Context, id string, user usermodels.UserContext) error {
	card, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	allowed := s.perms.canDelete(card, user) ||
		(card.PublisherType == cardmodels.PublisherUser && card.Publisher == user.User.Login && !user.IsReadOnly())
	if !allowed {
		return dErrors.Newf(dErrors.CodeForbidden,
			"user %s is not allowed to delete card %s", user.User.Login, id)
	}

	children, err := s.store.FindChildren(ctx, id)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := s.store.Delete(ctx, child.ID); err != nil {
			return err
		}
		if err := s.notify(ctx, child, cardmodels.OperationDelete); err != nil {
			return err
		}
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.notify(ctx, card, cardmodels.OperationDelete); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncCardsPublished(string(cardmodels.OperationDelete))
	}
	return nil
}

// Ack records an acknowledgement (or its cancellation) and publishes the
// matching ACK / ACK_CANCEL event.
func (s *Service) Ack(ctx context.Context, uid, login string, entitiesAcks []string, cancel bool) error {
	card, err := s.store.FindArchivedByUID(ctx, uid)
	if err != nil {
		return err
	}
	if err := s.store.ApplyAck(ctx, uid, login, entitiesAcks, cancel); err != nil {
		return err
	}
	return s.PublishAck(ctx, uid, card.ID, entitiesAcks, cancel)
}

// PublishAck announces an acknowledgement event without touching the store.
func (s *Service) PublishAck(ctx context.Context, uid, cardID string, entitiesAcks []string, cancel bool) error {
	opType := cardmodels.OperationAck
	if cancel {
		opType = cardmodels.OperationAckCancel
	}
	op := cardmodels.CardOperation{
		Type:         opType,
		CardID:       cardID,
		CardUID:      uid,
		EntitiesAcks: entitiesAcks,
	}
	if err := s.publish(ctx, eventbus.TopicAck, op); err != nil {
		return err
	}
	s.logger.Debug("acknowledgement sent to event bus",
		"type", opType, "card_uid", uid, "card_id", cardID, "entities_acks", entitiesAcks)
	return nil
}

// MarkRead records that the user has read the card. Reads are per-user state
// only; no bus event is published for them.
func (s *Service) MarkRead(ctx context.Context, uid, login string) error {
	return s.store.MarkRead(ctx, uid, login)
}

// notify puts the card operation on the bus with its data reduced to the
// configured feed fields.
func (s *Service) notify(ctx context.Context, card *cardmodels.Card, opType cardmodels.OperationType) error {
	light := card.Clone()
	if len(s.dataFields) > 0 && card.Data != nil {
		light.Data = extract.ExtractFields(card.Data, s.dataFields)
	} else {
		light.Data = nil
	}

	op := cardmodels.CardOperation{
		Type:    opType,
		CardID:  card.ID,
		CardUID: card.UID,
		Card:    light,
	}
	if err := s.publish(ctx, eventbus.TopicCard, op); err != nil {
		return err
	}
	s.logger.Debug("card operation sent to event bus",
		"type", opType, "card_id", card.ID,
		"group_recipients", card.GroupRecipients,
		"entity_recipients", card.EntityRecipients,
		"user_recipients", card.UserRecipients)
	return nil
}

func (s *Service) publish(ctx context.Context, topic string, op cardmodels.CardOperation) error {
	payload, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal card operation: %w", err)
	}
	return s.bus.Publish(ctx, topic, payload)
}
