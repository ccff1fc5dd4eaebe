package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"ambientd/internal/auth"
	"ambientd/internal/events"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamBuffer     = 64
)

// StreamHandler pushes engine events to WebSocket clients
type StreamHandler struct {
	store    *events.Store
	tickets  *auth.StreamTicketStore
	noAuth   bool
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// NewStreamHandler creates new stream handler
func NewStreamHandler(store *events.Store, tickets *auth.StreamTicketStore, noAuth bool, logger *log.Logger) *StreamHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &StreamHandler{
		store:   store,
		tickets: tickets,
		noAuth:  noAuth,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The one-time ticket is the CSWSH guard
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Connect handles GET /api/stream?ticket=...
func (h *StreamHandler) Connect(w http.ResponseWriter, r *http.Request) {
	username := "anonymous"
	if !h.noAuth {
		ticket := r.URL.Query().Get("ticket")
		if ticket == "" {
			writeError(w, http.StatusUnauthorized, "Missing stream ticket")
			return
		}
		user, ok := h.tickets.Validate(ticket)
		if !ok {
			h.logger.Printf("Stream rejected: invalid ticket from %s", auth.ClientIP(r))
			writeError(w, http.StatusUnauthorized, "Invalid stream ticket")
			return
		}
		username = user.Username
	}

	// Subscribe before the handshake completes so no event is missed
	feed, cancel := h.store.Subscribe(streamBuffer)
	defer cancel()

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("Stream upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	h.logger.Printf("Stream opened for %s", username)
	defer h.logger.Printf("Stream closed for %s", username)

	// Reader: only pongs and close frames are expected
	done := make(chan struct{})
	go func() {
		defer close(done)
		ws.SetReadLimit(512)
		ws.SetReadDeadline(time.Now().Add(streamPongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Printf("Stream read error: %v", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-feed:
			if !ok {
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(streamWriteWait))
				return
			}
			ws.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := ws.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
