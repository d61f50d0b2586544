package server

import (
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/v0xg/deskreplay/internal/playback"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // non-browser clients
			}
			return slices.Contains(h.opts.AllowedOrigins, "*") || slices.Contains(h.opts.AllowedOrigins, origin)
		},
	}
}

// Events streams every playback event to the client as a JSON envelope
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake completes so no event emitted after
	// the client sees the upgrade is missed.
	eventCh, unsubscribe := h.ctl.Subscribe(h.opts.EventBuffer)
	defer unsubscribe()

	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Read pump detects client disconnect
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Write pump
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return

		case ev, ok := <-eventCh:
			if !ok {
				return
			}
			msg, err := playback.MarshalEvent(ev)
			if err != nil {
				h.logger.Error("encode event", "kind", ev.Kind(), "error", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("websocket write failed", "error", err)
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
