package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/conquest/internal/auth"
	"github.com/freeeve/conquest/internal/service"
	"github.com/freeeve/conquest/pkg/conquest"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = 54 * time.Second // Must be less than pongWait
	maxMsgSize    = 16 << 10
	sendBufSize   = 256
	actionTimeout = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS handled by middleware
	},
}

// actionResult is the reply to a client's action message. The new state
// reaches every subscriber through state_updated.
type actionResult struct {
	conquest.Result
	Version int64 `json:"version,omitempty"`
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub     *Hub
	jwtMgr  *auth.JWTManager
	gameSvc *service.GameService
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(hub *Hub, jwtMgr *auth.JWTManager, gameSvc *service.GameService) *WSHandler {
	return &WSHandler{hub: hub, jwtMgr: jwtMgr, gameSvc: gameSvc}
}

// ServeWS handles GET /api/v1/ws and upgrades to WebSocket.
// Auth via ?token= query parameter (WebSocket can't send headers).
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenStr, err := auth.TokenFromRequest(r)
	if err != nil {
		http.Error(w, `{"error":"missing token parameter"}`, http.StatusUnauthorized)
		return
	}
	claims, err := h.jwtMgr.ValidateToken(tokenStr)
	if err != nil {
		http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSConn{
		conn:   conn,
		userID: claims.UserID,
		send:   make(chan []byte, sendBufSize),
	}
	h.hub.Register(client)
	h.hub.SendTo(client, WSEvent{Type: EventConnected, Data: map[string]string{"user_id": claims.UserID}})

	go h.writePump(client)
	go h.readPump(client)

	log.Info().Str("userId", claims.UserID).Int("total", h.hub.ConnectionCount()).Msg("WebSocket client connected")
}

// readPump reads messages from the WebSocket connection.
func (h *WSHandler) readPump(c *WSConn) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
		log.Info().Str("userId", c.userID).Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("userId", c.userID).Msg("WebSocket unexpected close")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.hub.SendTo(c, WSEvent{Type: EventError, Data: map[string]string{"error": "invalid message"}})
			continue
		}
		h.handleMessage(c, msg)
	}
}

func (h *WSHandler) handleMessage(c *WSConn, msg ClientMessage) {
	if msg.GameID == "" {
		h.hub.SendTo(c, WSEvent{Type: EventError, Data: map[string]string{"error": "game_id is required"}})
		return
	}
	switch msg.Action {
	case "subscribe":
		h.hub.Subscribe(c, msg.GameID)
		h.sendSnapshot(c, msg.GameID)
	case "unsubscribe":
		h.hub.Unsubscribe(c, msg.GameID)
	case "action":
		h.hub.SendTo(c, WSEvent{Type: EventActionResult, GameID: msg.GameID, Data: h.submit(c.userID, msg)})
	default:
		h.hub.SendTo(c, WSEvent{Type: EventError, GameID: msg.GameID, Data: map[string]string{"error": "unknown action " + msg.Action}})
	}
}

// sendSnapshot sends the current state of a started game to a new subscriber.
func (h *WSHandler) sendSnapshot(c *WSConn, gameID string) {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	gs, err := h.gameSvc.State(ctx, gameID)
	if err != nil {
		log.Debug().Err(err).Str("gameId", gameID).Msg("No state to send on subscribe")
		return
	}
	h.hub.SendTo(c, WSEvent{Type: EventStateSnapshot, GameID: gameID, Data: gs})
}

func (h *WSHandler) submit(userID string, msg ClientMessage) actionResult {
	act, err := conquest.DecodeAction(msg.Payload)
	if err != nil {
		return actionResult{Result: conquest.Result{Kind: conquest.RejectStructural, Reason: err.Error()}}
	}
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	out, err := h.gameSvc.SubmitAction(ctx, msg.GameID, userID, act)
	if err != nil {
		log.Warn().Err(err).Str("gameId", msg.GameID).Str("userId", userID).Msg("WebSocket action failed")
		return actionResult{Result: conquest.Result{Kind: conquest.RejectReferential, Reason: err.Error()}}
	}
	res := actionResult{Result: out.Result}
	if out.State != nil {
		res.Version = out.State.Version
	}
	return res
}

// writePump writes messages to the WebSocket connection.
func (h *WSHandler) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One frame per event; clients parse each message as a single JSON document.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
