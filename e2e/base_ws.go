package e2e

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"chatter/auth"
	"chatter/infrastructure/ws"
	"chatter/observability"
	"chatter/repositories"
	"chatter/runtime"
	"chatter/runtime/workers"
	"chatter/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

const testSecret = "e2e-secret"

// BaseWsSuite boots the whole engine in-process behind a real HTTP server,
// so scenarios exercise the actual WebSocket wire protocol.
type BaseWsSuite struct {
	suite.Suite
	db            *badger.DB
	server        *httptest.Server
	authenticator auth.Authenticator
	groups        repositories.GroupRepository
	cancelWorkers context.CancelFunc
}

func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.db, err = badger.Open(badger.DefaultOptions(s.T().TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	s.Require().NoError(err)

	log := slog.Default()
	registry := runtime.NewRegistry()
	messages := repositories.NewMessageRepository(s.db, log, lo.ToPtr(100))
	s.groups = repositories.NewGroupRepository(s.db)
	users := repositories.NewUserRepository(s.db)
	policy := services.NewBlockPolicy(users)
	router := runtime.NewRouter(log, registry, messages, s.groups, policy)
	receipts := runtime.NewReceipts(log, registry, messages, s.groups)
	service := services.NewChatService(router, receipts, registry, messages, s.groups, users, policy)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelWorkers = cancel
	sup := workers.NewSupervisor(log)
	go sup.Add(workers.NewPresenceWorker(log, registry, registry.Changes())).Run(ctx)

	s.authenticator = auth.NewAuthenticator(testSecret)
	metrics := observability.NewMonitoringManager(log)
	wsServer := ws.NewServer(log, service, s.authenticator, metrics, ws.Options{
		ConnectionBufferSize: 64,
		MaxMessageSize:       1 << 16,
		HandshakeTimeout:     2 * time.Second,
		FrameRate:            100,
		FrameBurst:           200,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", wsServer)
	s.server = httptest.NewServer(mux)
}

func (s *BaseWsSuite) TearDownSuite() {
	s.server.Close()
	s.cancelWorkers()
	_ = s.db.Close()
}

// Dial opens an authenticated connection for the given user.
func (s *BaseWsSuite) Dial(userID string) *websocket.Conn {
	token, err := s.authenticator.GenerateToken(userID, userID, time.Hour)
	s.Require().NoError(err)

	url := strings.Replace(s.server.URL, "http://", "ws://", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)

	s.Require().NoError(conn.WriteJSON(map[string]string{"type": "auth", "token": token}))
	return conn
}

// dialRaw opens a connection without authenticating.
func (s *BaseWsSuite) dialRaw(serverURL string) *websocket.Conn {
	url := strings.Replace(serverURL, "http://", "ws://", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	return conn
}

// expectClosed asserts the server hangs up instead of serving frames.
func (s *BaseWsSuite) expectClosed(conn *websocket.Conn) {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
	_, _, err := conn.ReadMessage()
	s.Require().Error(err)
}

// WaitForFrame reads frames until one of the wanted type arrives, skipping
// interleaved traffic such as presence updates.
func (s *BaseWsSuite) WaitForFrame(conn *websocket.Conn, frameType string) map[string]any {
	deadline := time.Now().Add(3 * time.Second)
	for {
		s.Require().NoError(conn.SetReadDeadline(deadline))
		_, raw, err := conn.ReadMessage()
		s.Require().NoError(err, "waiting for %q frame", frameType)

		var frame map[string]any
		s.Require().NoError(json.Unmarshal(raw, &frame))
		if frame["type"] == frameType {
			return frame
		}
	}
}
