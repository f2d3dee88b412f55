// Package handler exposes the card publication and archive endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	cardmodels "cardfeed/internal/cards/models"
	"cardfeed/internal/cards/view"
	"cardfeed/internal/platform/middleware"
	"cardfeed/internal/processgroups"
	"cardfeed/internal/transport/http/shared"
	usermodels "cardfeed/internal/users/models"
	dErrors "cardfeed/pkg/domainerrors"
)

// PublicationService defines the card publication operations.
type PublicationService interface {
	PublishCard(ctx context.Context, card *cardmodels.Card, user usermodels.UserContext) (*cardmodels.Card, error)
	DeleteCard(ctx context.Context, id string, user usermodels.UserContext) error
	Ack(ctx context.Context, uid, login string, entitiesAcks []string, cancel bool) error
	MarkRead(ctx context.Context, uid, login string) error
}

// ArchiveService defines the archive query operations.
type ArchiveService interface {
	Query(ctx context.Context, user usermodels.UserContext, filter cardmodels.CardsFilter) (cardmodels.Page[view.CardView], error)
	FindByUID(ctx context.Context, user usermodels.UserContext, uid string) (view.CardView, error)
}

// ProcessGroupsService defines the process group upload operations.
type ProcessGroupsService interface {
	Replace(ctx context.Context, groups []processgroups.Group) error
	List(ctx context.Context) []processgroups.Group
}

// Handler handles card publication, acknowledgement and archive endpoints.
type Handler struct {
	logger      *slog.Logger
	publication PublicationService
	archive     ArchiveService
	groups      ProcessGroupsService
	auth        func(http.Handler) http.Handler
}

// New creates a new card Handler. auth is the middleware attaching the
// authenticated user context.
func New(publication PublicationService, archive ArchiveService, groups ProcessGroupsService, logger *slog.Logger, auth func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:      logger,
		publication: publication,
		archive:     archive,
		groups:      groups,
		auth:        auth,
	}
}

// Register registers the card routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(cardRouter chi.Router) {
		cardRouter.Use(middleware.Recovery(h.logger))
		cardRouter.Use(middleware.RequestID)
		cardRouter.Use(middleware.Logger(h.logger))
		cardRouter.Use(middleware.Timeout(30 * time.Second))
		cardRouter.Use(middleware.ContentTypeJSON)
		cardRouter.Use(h.auth)
		cardRouter.Post("/cards", h.handlePublishCard)
		cardRouter.Delete("/cards/{process}/{processInstanceId}", h.handleDeleteCard)
		cardRouter.Post("/cards/{uid}/ack", h.handleAck)
		cardRouter.Delete("/cards/{uid}/ack", h.handleAckCancel)
		cardRouter.Post("/cards/{uid}/read", h.handleRead)
		cardRouter.Post("/archives", h.handleQueryArchives)
		cardRouter.Get("/archives/{uid}", h.handleGetArchived)
		cardRouter.Post("/processGroups", h.handleReplaceProcessGroups)
		cardRouter.Get("/processGroups", h.handleListProcessGroups)
	})
}

func (h *Handler) handlePublishCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	user, ok := middleware.GetUserContext(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "user context missing despite auth middleware",
			"request_id", requestID)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var card cardmodels.Card
	if err := json.NewDecoder(r.Body).Decode(&card); err != nil {
		h.logger.WarnContext(ctx, "invalid publish card request",
			"request_id", requestID,
			"error", err.Error())
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	published, err := h.publication.PublishCard(ctx, &card, user)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to publish card", err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, publishCardResponse{
		ID:  published.ID,
		UID: published.UID,
	})
}

func (h *Handler) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.GetUserContext(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	id := cardmodels.CardID(chi.URLParam(r, "process"), chi.URLParam(r, "processInstanceId"))
	if err := h.publication.DeleteCard(ctx, id, user); err != nil {
		h.writeServiceError(ctx, w, "failed to delete card", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAck(w http.ResponseWriter, r *http.Request) {
	h.recordAck(w, r, false)
}

func (h *Handler) handleAckCancel(w http.ResponseWriter, r *http.Request) {
	h.recordAck(w, r, true)
}

func (h *Handler) recordAck(w http.ResponseWriter, r *http.Request, cancel bool) {
	ctx := r.Context()

	user, ok := middleware.GetUserContext(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	// The body carries the entities the user acknowledges on behalf of.
	// An empty or absent body means a personal acknowledgement.
	var entitiesAcks []string
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&entitiesAcks)
	}

	uid := chi.URLParam(r, "uid")
	if err := h.publication.Ack(ctx, uid, user.User.Login, entitiesAcks, cancel); err != nil {
		h.writeServiceError(ctx, w, "failed to record acknowledgement", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.GetUserContext(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	uid := chi.URLParam(r, "uid")
	if err := h.publication.MarkRead(ctx, uid, user.User.Login); err != nil {
		h.writeServiceError(ctx, w, "failed to record read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleQueryArchives(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	user, ok := middleware.GetUserContext(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var filter cardmodels.CardsFilter
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		h.logger.WarnContext(ctx, "invalid archive query",
			"request_id", requestID,
			"error", err.Error())
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	page, err := h.archive.Query(ctx, user, filter)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to query archives", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGetArchived(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.GetUserContext(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	card, err := h.archive.FindByUID(ctx, user, chi.URLParam(r, "uid"))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to load archived card", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, card)
}

func (h *Handler) handleReplaceProcessGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	user, ok := middleware.GetUserContext(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	if !user.IsAdmin() {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "process group upload requires the ADMIN permission"))
		return
	}

	var upload struct {
		Groups []processgroups.Group `json:"groups"`
	}
	if err := json.NewDecoder(r.Body).Decode(&upload); err != nil {
		h.logger.WarnContext(ctx, "invalid process groups upload",
			"request_id", requestID,
			"error", err.Error())
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.groups.Replace(ctx, upload.Groups); err != nil {
		h.writeServiceError(ctx, w, "failed to replace process groups", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleListProcessGroups(w http.ResponseWriter, r *http.Request) {
	groups := h.groups.List(r.Context())
	if groups == nil {
		groups = []processgroups.Group{}
	}
	shared.WriteJSON(w, http.StatusOK, struct {
		Groups []processgroups.Group `json:"groups"`
	}{Groups: groups})
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	requestID := middleware.GetRequestID(ctx)
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal:
		h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err.Error())
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, msg))
	default:
		h.logger.WarnContext(ctx, msg, "request_id", requestID, "error", err.Error())
		shared.WriteError(w, err)
	}
}

type publishCardResponse struct {
	ID  string `json:"id"`
	UID string `json:"uid"`
}
