package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/chatclaw/internal/bus"
)

// handleWebSocket streams bus events (triggers, dispatches, config reloads)
// to the client as JSON frames. Read side is drained only to notice close.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Local control surface; origins are not meaningful here.
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Buffered so a slow client skips events instead of blocking the bus.
	outbox := make(chan bus.Event, 64)
	s.events.Subscribe(id, func(ev bus.Event) {
		select {
		case outbox <- ev:
		default:
		}
	})
	defer s.events.Unsubscribe(id)

	slog.Info("ws client connected", "id", id)
	defer slog.Info("ws client disconnected", "id", id)

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev := <-outbox:
			writeCtx, writeCancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, map[string]any{
				"event":   ev.Name,
				"payload": ev.Payload,
			})
			writeCancel()
			if err != nil {
				conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}
