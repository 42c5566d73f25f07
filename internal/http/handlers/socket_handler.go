// WebSocket endpoint.
//
// GET /ws upgrades the request and registers the connection with the hub.
// Identity comes from the auth middleware (bearer token, ?token= or the
// trusted header); anonymous connections are accepted and may authenticate
// later with an auth frame. Outbound frames use the {"event","data"} envelope.
//
// Inbound frames:
//
//	{"type":"auth","token":"..."}
//	{"type":"qr:subscribe","session_id":"..."}
//	{"type":"ping"}
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/tbourn/go-chat-realtime/internal/http/middleware"
	"github.com/tbourn/go-chat-realtime/internal/realtime"
)

// Inbound frame types.
const (
	frameAuth        = "auth"
	frameQRSubscribe = "qr:subscribe"
	framePing        = "ping"
)

// Reply event names. Domain events use the realtime catalogue.
const (
	replyPong         = "pong"
	replyError        = "error"
	replyAuthOK       = "auth:ok"
	replyQRSubscribed = "qr:subscribed"
)

type inboundFrame struct {
	Type      string `json:"type"`
	Token     string `json:"token,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// SocketError is the data of an error reply.
type SocketError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newUpgrader(allowed []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 {
				return true
			}
			return lo.Contains(allowed, origin) || lo.Contains(allowed, "*")
		},
	}
}

// ServeWS godoc
// @ID          websocket
// @Summary     Open the realtime WebSocket
// @Description Upgrades to a WebSocket. Authenticated connections join their user channel and every conversation room they belong to.
// @Tags        Realtime
// @Param       token  query  string  false  "Bearer token (alternative to the Authorization header)"
// @Success     101  "Switching Protocols"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid token"
// @Router      /ws [get]
func (h *Handlers) ServeWS(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		middleware.LoggerFrom(c).Debug().Err(err).Msg("websocket upgrade")
		return
	}
	conn := realtime.NewConnection(ws, h.SocketOptions)
	lg := middleware.LoggerFrom(c).With().Str("conn_id", conn.ID()).Logger()
	ctx := c.Request.Context()

	conn.Start()
	if err := h.Hub.Register(ctx, conn, userID(c)); err != nil {
		lg.Error().Err(err).Msg("register connection")
		h.Hub.Unregister(conn.ID())
		conn.Close(websocket.CloseInternalServerErr, "register failed")
		return
	}
	defer func() {
		h.Hub.Unregister(conn.ID())
		conn.Close(websocket.CloseNormalClosure, "")
	}()

	lg.Debug().Str("user_id", userID(c)).Msg("websocket connected")
	err = conn.ReadLoop(func(frame []byte) { h.handleFrame(ctx, lg, conn, frame) })
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		lg.Debug().Err(err).Msg("websocket read ended")
	}
}

// handleFrame applies one inbound client frame.
func (h *Handlers) handleFrame(ctx context.Context, lg zerolog.Logger, conn realtime.Conn, raw []byte) {
	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		reply(lg, conn, replyError, SocketError{Code: ErrCodeBadRequest, Message: "invalid frame"})
		return
	}

	switch f.Type {
	case framePing:
		reply(lg, conn, replyPong, nil)

	case frameAuth:
		if h.Tokens == nil {
			reply(lg, conn, replyError, SocketError{Code: ErrCodeUnauthorized, Message: "token auth disabled"})
			return
		}
		uid, err := h.Tokens.Parse(f.Token)
		if err != nil {
			reply(lg, conn, replyError, SocketError{Code: ErrCodeUnauthorized, Message: "invalid token"})
			return
		}
		if err := h.Hub.Authenticate(ctx, conn.ID(), uid); err != nil {
			code := ErrCodeInternal
			if errors.Is(err, realtime.ErrAlreadyAuthenticated) {
				code = ErrCodeConflict
			}
			reply(lg, conn, replyError, SocketError{Code: code, Message: err.Error()})
			return
		}
		reply(lg, conn, replyAuthOK, gin.H{"user_id": uid})

	case frameQRSubscribe:
		if err := h.Sessions.RegisterInterest(f.SessionID, conn.ID()); err != nil {
			reply(lg, conn, replyError, SocketError{Code: ErrCodeSessionInvalid, Message: err.Error()})
			return
		}
		reply(lg, conn, replyQRSubscribed, gin.H{"session_id": f.SessionID})

	default:
		reply(lg, conn, replyError, SocketError{Code: ErrCodeBadRequest, Message: "unknown frame type"})
	}
}

func reply(lg zerolog.Logger, conn realtime.Conn, event string, data any) {
	b, err := json.Marshal(realtime.Envelope{Event: event, Data: data})
	if err != nil {
		lg.Error().Err(err).Str("event", event).Msg("encode reply")
		return
	}
	if err := conn.Send(b); err != nil {
		lg.Debug().Err(err).Str("event", event).Msg("send reply")
	}
}
