// Package httpapi is the conventional request/response surface: accounts,
// room CRUD, message history and read state. It wraps the services with
// plain handlers and stays out of the real-time path.
package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"chat-rooms/errors"
	"chat-rooms/services"

	"github.com/samber/lo"
)

type Handler struct {
	log   *slog.Logger
	auth  services.IAuthService
	rooms services.IRoomService
}

func New(log *slog.Logger, auth services.IAuthService, rooms services.IRoomService) *Handler {
	return &Handler{log: log, auth: auth, rooms: rooms}
}

// Mount registers every route on the mux.
func (h *Handler) Mount(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", h.register)
	mux.HandleFunc("POST /api/auth/login", h.login)

	mux.Handle("GET /api/rooms", h.authenticated(h.listRooms))
	mux.Handle("POST /api/rooms", h.authenticated(h.createRoom))
	mux.Handle("POST /api/rooms/{id}/participants", h.authenticated(h.addParticipant))
	mux.Handle("POST /api/rooms/{id}/leave", h.authenticated(h.leaveRoom))
	mux.Handle("POST /api/rooms/{id}/read_all", h.authenticated(h.markAllRead))

	mux.Handle("GET /api/messages", h.authenticated(h.history))
	mux.Handle("GET /api/messages/unread_count", h.authenticated(h.unreadCount))
	mux.Handle("POST /api/messages/{id}/read", h.authenticated(h.markRead))

	mux.Handle("GET /api/users/search", h.authenticated(h.searchUsers))
}

type identHandler func(w http.ResponseWriter, r *http.Request, ident domain.Identity)

// authenticated resolves the bearer token before the wrapped handler runs.
func (h *Handler) authenticated(next identHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			h.writeError(w, errors.ErrUnauthorized)
			return
		}
		ident, err := h.auth.Verify(token)
		if err != nil {
			h.writeError(w, err)
			return
		}
		next(w, r, ident)
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	token, err := h.auth.Register(req.Email, req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"token": token.String()})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"token": token.String()})
}

type roomResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	RoomType  string   `json:"room_type"`
	Members   []string `json:"members"`
	CreatedBy string   `json:"created_by"`
	CreatedAt string   `json:"created_at"`
	IsActive  bool     `json:"is_active"`
}

func toRoomResponse(room domain.Room) roomResponse {
	return roomResponse{
		ID:        string(room.ID),
		Name:      room.Name,
		RoomType:  string(room.Kind),
		Members:   room.Members,
		CreatedBy: room.CreatedBy,
		CreatedAt: room.CreatedAt.Format(time.RFC3339Nano),
		IsActive:  room.Active,
	}
}

func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	rooms, err := h.rooms.ListRooms(ident)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, lo.Map(rooms, func(room domain.Room, _ int) roomResponse {
		return toRoomResponse(room)
	}))
}

type createRoomRequest struct {
	Name           string   `json:"name"`
	RoomType       string   `json:"room_type"`
	ParticipantIDs []string `json:"participant_ids"`
}

func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	room, err := h.rooms.CreateRoom(ident, req.Name, domain.RoomKind(req.RoomType), req.ParticipantIDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toRoomResponse(room))
}

type participantRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) addParticipant(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	var req participantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	roomID := domain.RoomID(r.PathValue("id"))
	if err := h.rooms.AddParticipant(ident, roomID, req.UserID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "participant added"})
}

func (h *Handler) leaveRoom(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	roomID := domain.RoomID(r.PathValue("id"))
	if err := h.rooms.LeaveRoom(ident, roomID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "left room"})
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	roomID := domain.RoomID(r.PathValue("id"))
	marked, err := h.rooms.MarkAllRead(ident, roomID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"marked": marked})
}

type historyResponse struct {
	Messages []event.MessageInfo `json:"messages"`
	Cursor   *string             `json:"cursor"`
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	roomID := domain.RoomID(r.URL.Query().Get("room_id"))
	if roomID == "" {
		http.Error(w, "room_id required", http.StatusBadRequest)
		return
	}
	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}

	messages, next, err := h.rooms.History(ident, roomID, cursor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, historyResponse{
		Messages: event.NewRecentMessages(messages).Messages,
		Cursor:   next,
	})
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	roomID := domain.RoomID(r.URL.Query().Get("room_id"))
	if roomID == "" {
		http.Error(w, "room_id required", http.StatusBadRequest)
		return
	}
	count, err := h.rooms.UnreadCount(ident, roomID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"unread_count": count})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if err := h.rooms.MarkMessageRead(ident, r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "message marked as read"})
}

func (h *Handler) searchUsers(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	query := r.URL.Query().Get("q")
	hits, err := h.rooms.SearchUsers(r.Context(), ident, query)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, hits)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn("Failed to encode response", "error", err)
	}
}

// writeError maps domain sentinels onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case stderrors.Is(err, errors.ErrUnauthorized), stderrors.Is(err, errors.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case stderrors.Is(err, errors.ErrForbidden):
		status = http.StatusForbidden
	case stderrors.Is(err, errors.ErrRoomNotFound),
		stderrors.Is(err, errors.ErrMessageNotFound),
		stderrors.Is(err, errors.ErrUserNotFound):
		status = http.StatusNotFound
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		status = http.StatusConflict
	case stderrors.Is(err, errors.ErrInvalidPassword),
		stderrors.Is(err, errors.ErrInvalidRoom):
		status = http.StatusBadRequest
	case stderrors.Is(err, errors.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
