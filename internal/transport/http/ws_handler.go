package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"crewchat/internal/auth"
	"crewchat/internal/realtime"
)

// Application close codes. Standard statuses (1000, 1011, 1013) come from the
// websocket package.
const (
	closeInvalidWorkspace websocket.StatusCode = 4000
	closeUnauthenticated  websocket.StatusCode = 4001
)

// WSHandler upgrades HTTP connections, admits them into the registry and
// keeps the read side alive until the peer goes away. All outbound traffic
// flows through the dispatcher; inbound frames are not a mutation path.
type WSHandler struct {
	registry    *realtime.Registry
	dispatcher  *realtime.Dispatcher
	auth        *auth.Service
	devProtocol string
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. devProtocol names the
// subprotocol dev tooling uses for its reload socket; such connections are
// accepted but never admitted.
func NewWSHandler(registry *realtime.Registry, dispatcher *realtime.Dispatcher, authService *auth.Service, devProtocol string, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		registry:    registry,
		dispatcher:  dispatcher,
		auth:        authService,
		devProtocol: devProtocol,
		log:         logger,
	}
}

// Handle handles GET /ws?workspaceId=N&token=JWT.
func (h *WSHandler) Handle(c *gin.Context) {
	opts := &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	}
	if h.devProtocol != "" {
		opts.Subprotocols = []string{h.devProtocol}
	}

	conn, err := websocket.Accept(c.Writer, c.Request, opts)
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}

	if h.devProtocol != "" && conn.Subprotocol() == h.devProtocol {
		h.park(c.Request.Context(), conn)
		return
	}

	h.serve(c, conn)
}

// park keeps a dev-tooling connection open without validation or registry
// membership. Frames are drained and discarded.
func (h *WSHandler) park(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close(websocket.StatusNormalClosure, "")
	h.log.Debug().Str("subprotocol", h.devProtocol).Msg("parked dev connection")
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func (h *WSHandler) serve(c *gin.Context, wsConn *websocket.Conn) {
	ctx := c.Request.Context()
	defer wsConn.Close(websocket.StatusNormalClosure, "")

	token := c.Query("token")
	if token == "" {
		token = bearerToken(c)
	}
	if token == "" {
		wsConn.Close(closeUnauthenticated, "authentication required")
		return
	}
	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws token rejected")
		wsConn.Close(closeUnauthenticated, "authentication required")
		return
	}

	// A missing or unparsable workspaceId becomes 0, which admission
	// rejects as invalid.
	workspaceID, _ := strconv.ParseInt(c.Query("workspaceId"), 10, 64)

	rc, err := h.registry.Admit(c.ClientIP(), workspaceID, claims.UserID, &wsLink{conn: wsConn})
	if err != nil {
		switch {
		case errors.Is(err, realtime.ErrInvalidWorkspace):
			wsConn.Close(closeInvalidWorkspace, "invalid workspace")
		case errors.Is(err, realtime.ErrTooManyConnections):
			wsConn.Close(websocket.StatusTryAgainLater, "too many connections")
		default:
			h.log.Error().Err(err).Msg("ws admission failed")
			wsConn.Close(websocket.StatusInternalError, "admission failed")
		}
		return
	}
	defer h.registry.Remove(rc)

	h.registry.Subscribe(rc)

	if err := h.dispatcher.Send(ctx, rc, realtime.Connected{ConnectionID: rc.ID()}); err != nil {
		wsConn.Close(websocket.StatusInternalError, "handshake failed")
		return
	}
	if err := h.dispatcher.Send(ctx, rc, realtime.Subscribed{WorkspaceID: workspaceID}); err != nil {
		wsConn.Close(websocket.StatusInternalError, "handshake failed")
		return
	}

	h.readLoop(ctx, wsConn, rc)
}

// readLoop blocks on the connection until it dies. Inbound frames carry no
// commands; malformed ones are logged and dropped without closing.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, rc *realtime.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				h.log.Debug().Str("conn_id", rc.ID()).Msg("ws connection closed")
			case errors.Is(err, context.Canceled) || errors.Is(err, io.EOF):
				h.log.Debug().Str("conn_id", rc.ID()).Msg("ws connection dropped")
			case !rc.Live():
				// Already evicted by the registry or dispatcher; the read
				// failing is expected fallout.
				h.log.Debug().Str("conn_id", rc.ID()).Msg("ws read ended after eviction")
			default:
				h.log.Warn().Err(err).Str("conn_id", rc.ID()).Msg("ws read error")
			}
			return
		}

		if !json.Valid(data) {
			h.log.Debug().Str("conn_id", rc.ID()).Msg("ignoring malformed inbound frame")
		}
	}
}

// wsLink adapts a websocket connection to the registry's Link interface.
type wsLink struct {
	conn *websocket.Conn
}

func (l *wsLink) WriteText(ctx context.Context, payload []byte) error {
	return l.conn.Write(ctx, websocket.MessageText, payload)
}

func (l *wsLink) Ping(ctx context.Context) error {
	return l.conn.Ping(ctx)
}

func (l *wsLink) Close(code websocket.StatusCode, reason string) error {
	return l.conn.Close(code, reason)
}
