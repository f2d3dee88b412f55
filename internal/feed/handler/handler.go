// Package handler exposes the live card feed over a websocket plus the
// connection listing endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"cardfeed/internal/cards/subscription"
	"cardfeed/internal/connections"
	"cardfeed/internal/feed"
	"cardfeed/internal/platform/middleware"
	"cardfeed/internal/transport/http/shared"
	usermodels "cardfeed/internal/users/models"
	dErrors "cardfeed/pkg/domainerrors"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// rangeUpdate is the in-band message a client sends to change the time
// window of its subscription. It replaces the current subscription.
type rangeUpdate struct {
	RangeStart  int64 `json:"rangeStart"`
	RangeEnd    int64 `json:"rangeEnd"`
	UpdatedFrom int64 `json:"updatedFrom"`
}

// Handler handles the feed websocket and connection listing.
type Handler struct {
	logger    *slog.Logger
	feed      *feed.Service
	validator middleware.TokenValidator
	directory middleware.UserDirectory
	auth      func(http.Handler) http.Handler
	upgrader  websocket.Upgrader
}

// New creates a new feed Handler. The websocket endpoint authenticates the
// token itself because browsers cannot set headers on websocket upgrades, so
// it accepts a token query parameter as well.
func New(feedSvc *feed.Service, validator middleware.TokenValidator, directory middleware.UserDirectory, logger *slog.Logger, auth func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:    logger,
		feed:      feedSvc,
		validator: validator,
		directory: directory,
		auth:      auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Register registers the feed routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(feedRouter chi.Router) {
		feedRouter.Use(middleware.Recovery(h.logger))
		feedRouter.Use(middleware.RequestID)
		feedRouter.Use(middleware.Logger(h.logger))
		feedRouter.Get("/cardSubscription", h.handleSubscribe)
	})

	r.Group(func(connRouter chi.Router) {
		connRouter.Use(middleware.Recovery(h.logger))
		connRouter.Use(middleware.RequestID)
		connRouter.Use(middleware.Logger(h.logger))
		connRouter.Use(middleware.ContentTypeJSON)
		connRouter.Use(h.auth)
		connRouter.Get("/connections", h.handleConnections)
	})
}

func (h *Handler) handleConnections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conns, err := h.feed.Connections(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list connections",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error())
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list connections"))
		return
	}
	if conns == nil {
		conns = []connections.Connection{}
	}
	shared.WriteJSON(w, http.StatusOK, conns)
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.authenticate(ctx, r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = uuid.NewString()
	}
	opts, err := optionsFromQuery(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.WarnContext(ctx, "websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	sub, err := h.feed.Subscribe(ctx, clientID, user, opts)
	if err != nil {
		h.logger.ErrorContext(ctx, "subscription failed",
			"client_id", clientID, "login", user.User.Login, "error", err.Error())
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"),
			time.Now().Add(writeWait))
		return
	}
	defer h.feed.Unsubscribe(context.WithoutCancel(ctx), clientID)

	// The read loop replaces the subscription on range updates and hands the
	// replacement to the write loop over this channel.
	replaced := make(chan *subscription.Subscription, 1)
	go h.readLoop(ctx, conn, clientID, user, opts, replaced)
	h.writeLoop(ctx, conn, sub, replaced)
}

func (h *Handler) authenticate(ctx context.Context, r *http.Request) (usermodels.UserContext, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return usermodels.UserContext{}, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token")
	}
	login, err := h.validator.ValidateToken(token)
	if err != nil {
		return usermodels.UserContext{}, err
	}
	user, err := h.directory.UserContext(ctx, login)
	if err != nil {
		return usermodels.UserContext{}, dErrors.New(dErrors.CodeUnauthorized, "unknown user")
	}
	return user, nil
}

// readLoop consumes client messages: pongs keep the connection alive, range
// update messages open a replacement subscription for the same client id.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, clientID string, user usermodels.UserContext, opts subscription.Options, replaced chan<- *subscription.Subscription) {
	defer close(replaced)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var update rangeUpdate
		if err := conn.ReadJSON(&update); err != nil {
			return
		}
		opts.RangeStart = millisTime(update.RangeStart)
		opts.RangeEnd = millisTime(update.RangeEnd)
		opts.UpdatedFrom = millisTime(update.UpdatedFrom)

		sub, err := h.feed.Subscribe(ctx, clientID, user, opts)
		if err != nil {
			h.logger.WarnContext(ctx, "range update failed",
				"client_id", clientID, "error", err.Error())
			return
		}
		replaced <- sub
	}
}

// writeLoop streams operations to the client. When the current subscription
// is replaced by a range update it switches to the replacement; any other
// termination ends the connection.
func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, sub *subscription.Subscription, replaced <-chan *subscription.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case op, ok := <-sub.Operations():
			if !ok {
				if sub.State() != subscription.StateReplaced {
					return
				}
				next, ok := <-replaced
				if !ok {
					return
				}
				sub = next
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(op); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// optionsFromQuery parses the subscription window from the query string. A
// malformed time parameter rejects the request rather than falling back to an
// open bound.
func optionsFromQuery(r *http.Request) (subscription.Options, error) {
	q := r.URL.Query()
	rangeStart, err := queryMillis(q, "rangeStart")
	if err != nil {
		return subscription.Options{}, err
	}
	rangeEnd, err := queryMillis(q, "rangeEnd")
	if err != nil {
		return subscription.Options{}, err
	}
	updatedFrom, err := queryMillis(q, "updatedFrom")
	if err != nil {
		return subscription.Options{}, err
	}
	return subscription.Options{
		RangeStart:       millisTime(rangeStart),
		RangeEnd:         millisTime(rangeEnd),
		UpdatedFrom:      millisTime(updatedFrom),
		NotificationOnly: q.Get("notification") == "true",
	}, nil
}

func queryMillis(q url.Values, name string) (int64, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeBadRequest, "invalid %s value %q", name, raw)
	}
	return ms, nil
}

func millisTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
