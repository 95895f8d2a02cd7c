package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"chat-rooms/infrastructure/httpapi"
	"chat-rooms/infrastructure/ws"
	"chat-rooms/moderation"
	"chat-rooms/repositories"
	"chat-rooms/runtime"
	"chat-rooms/search"
	"chat-rooms/services"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

const strongPassword = "Sup3r$ecretPass"

// BaseServerSuite boots the whole service in-process: badger, bluge,
// moderation, services, the REST surface and the WebSocket endpoint, all
// behind one httptest server. Scenarios drive it like a real client would.
type BaseServerSuite struct {
	suite.Suite
	Config Config
	Server *httptest.Server
	conns  []*websocket.Conn
}

func (s *BaseServerSuite) SetupSuite() {
	cfg, err := LoadConfig()
	s.Require().NoError(err)
	s.Config = cfg
}

func (s *BaseServerSuite) SetupTest() {
	req := s.Require()

	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).
		WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	req.NoError(err)
	s.T().Cleanup(func() { _ = writer.Close() })

	words, err := moderation.DefaultWords()
	req.NoError(err)
	moderator, err := moderation.NewModerator(words, '*')
	req.NoError(err)

	log := slog.Default()
	rooms := repositories.NewRoomRepository(db)
	messages := repositories.NewMessageRepository(db, log, nil)
	users := repositories.NewUserRepository(db)
	presence := repositories.NewPresenceRepository(db)
	index := search.NewUserIndex(writer, log)
	registry := runtime.NewRegistry(log)

	authService := services.NewAuthService(users, index, time.Hour, log)
	chatService := services.NewChatService(log, registry, rooms, messages, users, presence, moderator)
	roomService := services.NewRoomService(log, rooms, messages, users, index)

	mux := http.NewServeMux()
	httpapi.New(log, authService, roomService).Mount(mux)
	mux.Handle("GET /ws/chat/{room}",
		ws.NewHandler(context.Background(), log, authService, chatService,
			s.Config.BufferSize, s.Config.RecentLimit))

	s.Server = httptest.NewServer(mux)
	s.T().Cleanup(s.Server.Close)
	// Registered here, on the test-level T: inside s.Run the suite's T is the
	// subtest's, so a Cleanup added by Dial would close the connection as soon
	// as that subtest ends instead of at the end of the whole test.
	s.conns = nil
	s.T().Cleanup(func() {
		for _, conn := range s.conns {
			_ = conn.Close()
		}
		s.conns = nil
	})
}

// Call performs one JSON request against the REST surface.
func (s *BaseServerSuite) Call(method, path, token string, body, out any) int {
	encoded := []byte(nil)
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		s.Require().NoError(err)
	}

	request, err := http.NewRequest(method, s.Server.URL+path, bytes.NewReader(encoded))
	s.Require().NoError(err)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := s.Server.Client().Do(request)
	s.Require().NoError(err)
	defer response.Body.Close()

	if out != nil {
		s.Require().NoError(json.NewDecoder(response.Body).Decode(out))
	}
	return response.StatusCode
}

// RegisterUser creates an account over HTTP and returns its token.
func (s *BaseServerSuite) RegisterUser(email, username string) string {
	var body map[string]string
	status := s.Call(http.MethodPost, "/api/auth/register", "",
		map[string]string{"email": email, "username": username, "password": strongPassword},
		&body)
	s.Require().Equal(http.StatusCreated, status)
	s.Require().NotEmpty(body["token"])
	return body["token"]
}

// Dial opens a room connection through the real upgrade path.
func (s *BaseServerSuite) Dial(roomID, token string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.Server.URL, "http") +
		"/ws/chat/" + roomID + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.conns = append(s.conns, conn)
	return conn
}

// ReadUntil skips frames until one of the wanted type arrives.
func (s *BaseServerSuite) ReadUntil(conn *websocket.Conn, frameType string) map[string]any {
	for {
		s.Require().NoError(conn.SetReadDeadline(time.Now().Add(s.Config.ReadTimeout)))
		_, data, err := conn.ReadMessage()
		s.Require().NoError(err)

		var frame map[string]any
		s.Require().NoError(json.Unmarshal(data, &frame))
		if frame["type"] == frameType {
			return frame
		}
	}
}

func (s *BaseServerSuite) Send(conn *websocket.Conn, frame map[string]any) {
	s.Require().NoError(conn.WriteJSON(frame))
}
