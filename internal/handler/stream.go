package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aryan0dhankhar/tasktracker/internal/events"
	"github.com/aryan0dhankhar/tasktracker/internal/service"
)

const (
	streamPingInterval = 15 * time.Second
	streamWriteWait    = 5 * time.Second
)

// StreamHandler pushes task events of the caller's tenant over a WebSocket
type StreamHandler struct {
	tasks          *service.TaskService
	hub            *events.Hub
	allowedOrigins []string
	logger         *slog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(tasks *service.TaskService, hub *events.Hub, allowedOrigins []string, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{
		tasks:          tasks,
		hub:            hub,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

func (h *StreamHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients
				return true
			}
			if originAllowed(h.allowedOrigins, origin) {
				return true
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/tasks
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := caller(r)
	visible, err := h.tasks.WatchFilter(r.Context(), p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	upgrader := h.upgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	feed, cancel := h.hub.Subscribe(p.TenantID)
	defer cancel()

	// the read side only watches for the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Debug("task stream opened", slog.String("tenant_id", p.TenantID), slog.String("user_id", p.UserID))
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			h.logger.Debug("task stream closed by client", slog.String("user_id", p.UserID))
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case ev, ok := <-feed:
			if !ok {
				return
			}
			if !visible(ev) {
				continue
			}
			_ = ws.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := ws.WriteJSON(ev); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Debug("websocket closed", slog.String("user_id", p.UserID))
				}
				return
			}
		}
	}
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
