package realtime

import (
	"log/slog"
	"net/http"
	"time"

	"vetcare-backend/internal/middleware"
	"vetcare-backend/internal/transport"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

type WSHandler struct {
	hub      *Hub
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub, log *slog.Logger, allowedOrigin string) *WSHandler {
	return &WSHandler{
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "" || origin == allowedOrigin
			},
		},
	}
}

// Subscribe upgrades the request and streams store changes until the client
// hangs up. Closing the socket is the unsubscribe.
func (h *WSHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws subscribe: upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := h.hub.Register(ident.UserID, ident.Role == "admin")
	h.log.Info("ws subscribe: connected",
		slog.String("user_id", ident.UserID),
		slog.String("role", ident.Role),
	)

	go h.writePump(conn, client)
	go h.readPump(conn, client)
}

func (h *WSHandler) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close()
	}()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// The stream is one-way; inbound frames only keep the connection alive.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.hub.Unregister(client)
		conn.Close()
	}()
	for {
		select {
		case payload, ok := <-client.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
