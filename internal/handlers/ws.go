package handlers

import (
	"net/http"
	"sync"
	"time"

	"cortado/internal/notifications"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// wsWriteTimeout bounds a single frame write to a client.
	wsWriteTimeout = 10 * time.Second

	// wsPongTimeout is how long a connection may stay silent before
	// the read loop gives up on it.
	wsPongTimeout = 60 * time.Second

	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browsers enforce same-origin on the containing page; the
	// deployment terminates cross-origin at the proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsHandle wraps a websocket connection as a hub delivery handle.
// Writes are serialized; gorilla connections allow one writer at a time.
type wsHandle struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Send delivers one notification as a JSON frame.
func (h *wsHandle) Send(n notifications.Notification) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return h.conn.WriteJSON(n)
}

func (h *wsHandle) ping() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

// HandleNotificationsSocket upgrades the request to a websocket,
// registers the connection with the delivery hub (flushing any queued
// notifications), and holds it open until the client goes away.
func (h *Handler) HandleNotificationsSocket(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		log.Warn().Err(err).Str("user", user).Msg("ws: upgrade failed")
		return
	}

	handle := &wsHandle{conn: conn}
	h.hub.RegisterConnection(user, handle)
	log.Debug().Str("user", user).Msg("ws: connection registered")

	defer func() {
		h.hub.DeregisterConnection(user, handle)
		conn.Close()
		log.Debug().Str("user", user).Msg("ws: connection closed")
	}()

	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	// Keepalive pings until the read loop below observes a close.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := handle.ping(); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()

	// Clients only listen; the read loop exists to notice disconnects
	// and answer pings.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
