package publication

import (
	"context"
	"strings"

	cardmodels "cardfeed/internal/cards/models"
	"cardfeed/internal/cards/store"
	dErrors "cardfeed/pkg/domainerrors"
)

// forbiddenChars are rejected in process and processInstanceId because both
// end up in card ids and URLs.
const forbiddenChars = "#?/"

// validator applies the structural card rules. It needs the store to check
// parent card references.
type validator struct {
	store store.Store
}

func (v validator) validate(ctx context.Context, card *cardmodels.Card) error {
	if err := v.validateParentReferences(ctx, card); err != nil {
		return err
	}

	for field, value := range map[string]string{
		"publisher":         card.Publisher,
		"process":           card.Process,
		"processVersion":    card.ProcessVersion,
		"state":             card.State,
		"processInstanceId": card.ProcessInstanceID,
		"title":             card.Title,
		"summary":           card.Summary,
	} {
		if value == "" {
			return dErrors.Newf(dErrors.CodeBadRequest, "impossible to publish card because there is no %s", field)
		}
	}
	if card.Severity == "" {
		return dErrors.New(dErrors.CodeBadRequest, "impossible to publish card because there is no severity")
	}
	if card.StartDate.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "impossible to publish card because there is no startDate")
	}

	if card.EndDate != nil && card.EndDate.Before(card.StartDate) {
		return dErrors.New(dErrors.CodeBadRequest, "constraint violation: endDate must be after startDate")
	}
	if card.ExpirationDate != nil && card.ExpirationDate.Before(card.StartDate) {
		return dErrors.New(dErrors.CodeBadRequest, "constraint violation: expirationDate must be after startDate")
	}
	for _, span := range card.TimeSpans {
		if span.End != nil && span.End.Before(span.Start) {
			return dErrors.New(dErrors.CodeBadRequest, "constraint violation: timeSpan.end must be after timeSpan.start")
		}
	}
	if card.RRule != nil && card.RRule.DurationInMinutes < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "constraint violation: rRule.durationInMinutes must be greater than or equal to 0")
	}

	// '.' separates process and state in routing keys.
	if strings.Contains(card.Process, ".") || strings.Contains(card.State, ".") {
		return dErrors.New(dErrors.CodeBadRequest, "constraint violation: character '.' is forbidden in process and state")
	}
	if strings.ContainsAny(card.Process, forbiddenChars) || strings.ContainsAny(card.ProcessInstanceID, forbiddenChars) {
		return dErrors.New(dErrors.CodeBadRequest, "constraint violation: forbidden characters ('#','?','/') in process or processInstanceId")
	}
	return nil
}

// validateParentReferences enforces the one-level nesting rule: a parent must
// exist and must not itself be a child card, and initialParentCardUid must
// reference an archived version.
func (v validator) validateParentReferences(ctx context.Context, card *cardmodels.Card) error {
	if card.ParentCardID != "" {
		parent, err := v.store.FindByID(ctx, card.ParentCardID)
		if dErrors.Is(err, dErrors.CodeNotFound) {
			return dErrors.Newf(dErrors.CodeBadRequest, "the parentCardId %s is not the id of any card", card.ParentCardID)
		}
		if err != nil {
			return err
		}
		if parent.ParentCardID != "" {
			return dErrors.Newf(dErrors.CodeBadRequest, "the parentCardId %s is a child card", card.ParentCardID)
		}
	}
	if card.InitialParentCardUID != "" {
		if _, err := v.store.FindArchivedByUID(ctx, card.InitialParentCardUID); err != nil {
			if dErrors.Is(err, dErrors.CodeNotFound) {
				return dErrors.Newf(dErrors.CodeBadRequest, "the initialParentCardUid %s is not the uid of any card", card.InitialParentCardUID)
			}
			return err
		}
	}
	return nil
}
