package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/doublejdg/stockroom/internal/reconcile"
)

const (
	// pongWait is how long a client may stay silent before it is dropped.
	pongWait   = 30 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler streams change events to websocket clients.
type WSHandler struct {
	Engine *reconcile.Engine
}

// Serve handles GET /api/ws. The optional collections query parameter
// limits the feed to a comma-separated list of collections.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var collections []string
	if v := r.URL.Query().Get("collections"); v != "" {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				collections = append(collections, c)
			}
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "user", claims.Username, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := h.Engine.Watch(ctx, claims.Username, claims.Role, collections...)
	slog.Info("websocket client connected", "user", claims.Username)

	// Reader: the client only sends control frames, so reading just keeps
	// the deadline fresh and detects disconnects.
	go func() {
		defer cancel()
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("websocket closed unexpectedly", "user", claims.Username, "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				slog.Info("websocket client disconnected", "user", claims.Username)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				slog.Warn("websocket write failed", "user", claims.Username, "error", err)
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
