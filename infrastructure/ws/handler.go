// Package ws exposes the real-time endpoint: one WebSocket per connection,
// scoped to a single room, exchanging JSON-framed events.
package ws

import (
	"context"
	"log/slog"
	"net/http"

	"chat-rooms/domain"
	"chat-rooms/services"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades "GET /ws/chat/{room}" requests and hands the socket to a
// Session. The room identifier rides on the path and the token on the query
// string; both are resolved during admission, not here.
type Handler struct {
	log         *slog.Logger
	auth        services.IAuthService
	chat        services.IChatService
	rootCtx     context.Context
	bufferSize  int
	recentLimit int
}

// NewHandler carries the server's root context so that shutting the process
// down tears every live session through its normal cleanup path.
func NewHandler(rootCtx context.Context, log *slog.Logger,
	auth services.IAuthService, chat services.IChatService,
	bufferSize, recentLimit int) *Handler {
	return &Handler{
		log:         log,
		auth:        auth,
		chat:        chat,
		rootCtx:     rootCtx,
		bufferSize:  bufferSize,
		recentLimit: recentLimit,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := domain.RoomID(r.PathValue("room"))
	if roomID == "" {
		http.Error(w, "room is required", http.StatusBadRequest)
		return
	}
	token := r.URL.Query().Get("token")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Upgrade failed", "error", err)
		return
	}

	session := NewSession(h.log, h.auth, h.chat, conn, roomID, h.bufferSize, h.recentLimit)
	session.Run(h.rootCtx, token)
}
