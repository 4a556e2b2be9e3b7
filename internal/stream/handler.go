package stream

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/renavest/chat-service/internal/chat"
	"github.com/renavest/chat-service/internal/domain"
	"github.com/renavest/chat-service/internal/middleware"
	"github.com/renavest/chat-service/internal/observability"
	"github.com/renavest/chat-service/internal/transport"
	"go.uber.org/zap"
)

// Handler upgrades a viewer's request into a live delivery stream:
// Authorizing, then Replaying, then Live, until the client goes away.
type Handler struct {
	auth        *chat.Authorizer
	relay       *Relay
	registry    *Registry
	serviceName string
}

func NewHandler(auth *chat.Authorizer, relay *Relay, registry *Registry, serviceName string) *Handler {
	return &Handler{auth: auth, relay: relay, registry: registry, serviceName: serviceName}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := observability.GetLogger(r.Context())
	userID := middleware.UserID(r.Context())

	channelID, err := strconv.ParseInt(chi.URLParam(r, "channelID"), 10, 64)
	if err != nil {
		transport.DomainError(w, domain.ErrInvalidChannelID)
		return
	}

	// Authorization runs before the upgrade so rejections stay ordinary
	// HTTP responses.
	grant, err := h.auth.Authorize(r.Context(), userID, channelID)
	if err != nil {
		transport.DomainError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	session := NewSession(uuid.NewString(), userID, channelID, conn)
	h.registry.Add(session)
	session.Start()

	observability.StreamConnectionsActive.WithLabelValues(h.serviceName).Inc()
	log.Info("stream opened",
		zap.String("user_id", userID),
		zap.Int64("channel_id", channelID),
		zap.String("role", string(grant.Role)),
	)

	// The request context dies with the handler's HTTP machinery once the
	// connection is hijacked; the stream gets its own lifetime, ended by the
	// read loop noticing the disconnect.
	ctx, cancel := context.WithCancel(context.Background())
	go h.readLoop(session, cancel)

	if ack, err := domain.NewConnectedEvent(channelID).Encode(); err == nil {
		session.TrySend(ack)
	}

	if err := h.relay.Run(ctx, grant.Channel, session); err != nil {
		log.Error("stream failed",
			zap.String("user_id", userID),
			zap.Int64("channel_id", channelID),
			zap.Error(err),
		)
		session.CloseWithReason(websocket.CloseInternalServerErr, "stream failed")
	}

	cancel()
	session.Close()
	h.registry.Remove(session)
	observability.StreamConnectionsActive.WithLabelValues(h.serviceName).Dec()
	log.Info("stream closed",
		zap.String("user_id", userID),
		zap.Int64("channel_id", channelID),
	)
}

// readLoop exists to notice the client going away; inbound frames carry no
// protocol (sends happen over HTTP), so everything read is discarded.
func (h *Handler) readLoop(s *Session, cancel context.CancelFunc) {
	defer func() {
		cancel()
		s.Close()
	}()

	_ = s.Conn.SetReadDeadline(time.Now().Add(pongWait))
	s.Conn.SetPongHandler(func(string) error {
		return s.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
