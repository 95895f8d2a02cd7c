package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"chat-rooms/errors"
	"chat-rooms/services"
	"chat-rooms/sink"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 * 1024
)

// State is the lifecycle of one connection. Transitions only ever move
// forward; Closed is terminal.
type State int32

const (
	StateConnecting State = iota
	StateAdmitted
	StateActive
	StateClosed
)

// inboundFrame is the superset of all client frames; Type discriminates.
type inboundFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
}

// Session drives one connection through Connecting -> Admitted -> Active ->
// Closed. It owns its connection's lifecycle and delegates every
// cross-connection effect to the chat service, never touching peers directly.
type Session struct {
	log         *slog.Logger
	auth        services.IAuthService
	chat        services.IChatService
	conn        *websocket.Conn
	sink        *sink.ConnectionSink
	roomID      domain.RoomID
	connID      string
	ident       domain.Identity
	state       atomic.Int32
	regMu       sync.Mutex
	closeOnce   sync.Once
	recentLimit int
}

func NewSession(log *slog.Logger, auth services.IAuthService, chat services.IChatService,
	conn *websocket.Conn, roomID domain.RoomID, bufferSize, recentLimit int) *Session {
	connID := uuid.NewString()
	return &Session{
		log:         log.With("conn_id", connID, "room_id", roomID),
		auth:        auth,
		chat:        chat,
		conn:        conn,
		sink:        sink.NewConnectionSink(log, bufferSize),
		roomID:      roomID,
		connID:      connID,
		recentLimit: recentLimit,
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Run blocks until the session reaches Closed. Cancelling ctx (server
// shutdown) tears the session down like any other disconnect.
func (s *Session) Run(ctx context.Context, token string) {
	// A blocked read only unblocks when the connection closes, so shutdown
	// is propagated by closing it.
	stop := context.AfterFunc(ctx, func() {
		s.teardown(context.WithoutCancel(ctx))
	})
	defer stop()

	if err := s.admit(token); err != nil {
		s.refuse(err)
		return
	}

	s.activate(ctx)

	go s.writeLoop(ctx)
	s.readLoop(ctx)

	s.teardown(context.WithoutCancel(ctx))
}

// admit resolves the token into an identity and checks room membership.
// Both must pass before anything else touches the connection; on failure the
// session goes straight from Connecting to Closed.
func (s *Session) admit(token string) error {
	ident, err := s.auth.Verify(token)
	if err != nil {
		return err
	}
	s.ident = ident

	if err := s.chat.Admit(ident, s.roomID); err != nil {
		return err
	}

	s.state.Store(int32(StateAdmitted))
	s.log.Info("Connection admitted", "user_id", ident.UserID)
	return nil
}

// activate performs the Admitted -> Active transition: presence first, then
// the private snapshot, then registration, then the join announcement.
// Presence is written before the snapshot is assembled so the new connection
// sees itself online; the snapshot is enqueued before Join so no broadcast
// can be interleaved ahead of it.
func (s *Session) activate(ctx context.Context) {
	if err := s.chat.SetPresence(s.ident.UserID, true); err != nil {
		s.log.Warn("Failed to set presence online", "error", err)
	}

	if info, err := s.chat.RoomInfo(s.roomID); err != nil {
		s.sendError(ctx, err)
	} else {
		_ = s.sink.Consume(ctx, info)
	}

	if recent, err := s.chat.RecentMessages(s.roomID, s.recentLimit); err != nil {
		s.sendError(ctx, err)
	} else {
		_ = s.sink.Consume(ctx, recent)
	}

	if !s.register() {
		// Teardown won the race mid-activation. Registration was skipped,
		// so the only trace to undo is the presence record written above.
		if err := s.chat.SetPresence(s.ident.UserID, false); err != nil {
			s.log.Warn("Failed to set presence offline", "error", err)
		}
		return
	}

	s.chat.AnnounceJoin(ctx, s.ident, s.roomID)
}

// register performs the registry join and the Active transition under the
// same lock teardown takes, so a session that already reached Closed can
// never add a registry entry that nothing will remove.
func (s *Session) register() bool {
	s.regMu.Lock()
	defer s.regMu.Unlock()

	if State(s.state.Load()) != StateAdmitted {
		return false
	}
	s.chat.Register(s.roomID, s.connID, s.sink)
	s.state.Store(int32(StateActive))
	return true
}

// readLoop consumes inbound frames in arrival order; events from one
// connection are never reordered.
func (s *Session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			// Abrupt disconnects are not errors; they trigger normal cleanup.
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("Connection read failed", "error", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			// Malformed frames are dropped, never fatal.
			s.log.Warn("Dropping malformed frame", "error", err)
			continue
		}
		s.dispatch(ctx, frame)
	}
}

// dispatch routes one inbound event by kind. Unknown kinds are ignored to
// tolerate forward-compatible clients. Operation failures are surfaced to
// this connection only; the session stays Active.
func (s *Session) dispatch(ctx context.Context, frame inboundFrame) {
	switch frame.Type {
	case "chat_message":
		if err := s.chat.PostMessage(ctx, s.ident, s.roomID, frame.Message); err != nil {
			s.sendError(ctx, err)
		}
	case "typing_start":
		s.chat.Typing(ctx, s.ident, s.roomID, true)
	case "typing_stop":
		s.chat.Typing(ctx, s.ident, s.roomID, false)
	case "read_receipt":
		if err := s.chat.MarkRead(ctx, s.ident, s.roomID, frame.MessageID); err != nil {
			s.sendError(ctx, err)
		}
	default:
		s.log.Debug("Ignoring unknown frame type", "type", frame.Type)
	}
}

// writeLoop is the single writer on the connection. It drains the sink and
// pings on a ticker; any write failure or sink closure ends the session.
func (s *Session) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e := <-s.sink.Events():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(e); err != nil {
				s.teardown(context.WithoutCancel(ctx))
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.teardown(context.WithoutCancel(ctx))
				return
			}
		case <-s.sink.Done():
			s.teardown(context.WithoutCancel(ctx))
			return
		}
	}
}

// sendError reports a failed operation to the acting connection only.
func (s *Session) sendError(ctx context.Context, err error) {
	code := "store_unavailable"
	switch {
	case stderrors.Is(err, errors.ErrRoomNotFound):
		code = "room_not_found"
	case stderrors.Is(err, errors.ErrMessageNotFound):
		code = "message_not_found"
	}
	_ = s.sink.Consume(ctx, event.NewError(code, err.Error()))
}

// refuse closes a never-admitted connection with a policy close frame.
func (s *Session) refuse(err error) {
	s.state.Store(int32(StateClosed))
	s.log.Info("Connection refused", "error", err)

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
	_ = s.conn.Close()
}

// teardown is the single Active -> Closed path. It runs exactly once no
// matter how many signals race to trigger it (read error, write error, sink
// eviction, server shutdown), so no registry entry can outlive its connection.
func (s *Session) teardown(ctx context.Context) {
	s.closeOnce.Do(func() {
		s.regMu.Lock()
		wasActive := State(s.state.Swap(int32(StateClosed))) == StateActive
		if wasActive {
			s.chat.Unregister(s.roomID, s.connID)
		}
		s.regMu.Unlock()

		if wasActive {
			if err := s.chat.SetPresence(s.ident.UserID, false); err != nil {
				s.log.Warn("Failed to set presence offline", "error", err)
			}
			s.chat.AnnounceLeave(ctx, s.ident, s.roomID)
		}

		s.sink.Close()
		_ = s.conn.Close()
		s.log.Info("Connection closed")
	})
}
