package ws

import (
	"chatter/auth"
	"chatter/errors"
	"chatter/observability"
	"chatter/services"
	"chatter/sink"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Options bound the per-connection resources of the server.
type Options struct {
	ConnectionBufferSize int
	MaxMessageSize       int64
	HandshakeTimeout     time.Duration
	FrameRate            float64 // inbound frames per second per connection
	FrameBurst           int
}

// Server upgrades HTTP requests to WebSocket connections and runs the
// per-connection read loop. One goroutine reads frames and dispatches
// commands; a second one drains the connection's sink.
type Server struct {
	log           *slog.Logger
	service       services.IChatService
	authenticator auth.Authenticator
	metrics       *observability.MonitoringManager
	opts          Options
	upgrader      websocket.Upgrader
}

func NewServer(log *slog.Logger, service services.IChatService,
	authenticator auth.Authenticator, metrics *observability.MonitoringManager,
	opts Options) *Server {
	return &Server{
		log:           log,
		service:       service,
		authenticator: authenticator,
		metrics:       metrics,
		opts:          opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	userID, err := s.handshake(wsConn)
	if err != nil {
		s.log.Debug("Handshake rejected", "remote", r.RemoteAddr, "error", err)
		_ = wsConn.Close()
		return
	}

	conn := &connection{
		ws:     wsConn,
		userID: userID,
		sink:   sink.NewConnectionSink(s.log, s.opts.ConnectionBufferSize),
		log:    s.log,
	}
	conn.setupRead(s.opts.MaxMessageSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s.service.Attach(userID, conn.sink)
	s.metrics.ConnectionOpened()
	s.log.Info("Connection authenticated", "user_id", userID, "remote", r.RemoteAddr)
	go conn.writePump(ctx)

	// Unregistering happens in the same step that ends the read loop, so
	// presence rebroadcast follows transport close synchronously.
	defer func() {
		s.service.Detach(userID, conn.sink)
		s.metrics.ConnectionClosed()
	}()

	s.readLoop(ctx, conn)
}

// handshake requires a valid auth frame before anything else. No other
// command is processed on an unauthenticated connection.
func (s *Server) handshake(wsConn *websocket.Conn) (string, error) {
	_ = wsConn.SetReadDeadline(time.Now().Add(s.opts.HandshakeTimeout))
	_, raw, err := wsConn.ReadMessage()
	if err != nil {
		return "", err
	}

	frame, err := DecodeFrame(raw)
	if err != nil {
		return "", err
	}
	if frame.Type != "auth" {
		return "", errors.ErrAuthRequired
	}

	claims, err := s.authenticator.ValidateToken(frame.Token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *Server) readLoop(ctx context.Context, conn *connection) {
	limiter := rate.NewLimiter(rate.Limit(s.opts.FrameRate), s.opts.FrameBurst)

	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("Unexpected close", "user_id", conn.userID, "error", err)
			}
			return
		}

		s.metrics.FrameRead()
		if !limiter.Allow() {
			s.metrics.FrameDropped()
			s.log.Debug("Frame rate exceeded, dropping frame", "user_id", conn.userID)
			continue
		}

		s.dispatch(ctx, conn, raw)
	}
}

// dispatch handles one authenticated frame. Malformed frames are logged and
// the connection continues; command failures have no response channel and
// are logged and dropped.
func (s *Server) dispatch(ctx context.Context, conn *connection, raw []byte) {
	frame, err := DecodeFrame(raw)
	if err != nil {
		s.log.Debug("Malformed frame", "user_id", conn.userID, "error", err)
		return
	}

	switch frame.Type {
	case "auth":
		// Re-authentication on a live connection: same identity is an
		// idempotent no-op, a different identity is a protocol violation.
		claims, err := s.authenticator.ValidateToken(frame.Token)
		if err != nil || claims.UserID != conn.userID {
			s.log.Warn("Re-auth with different identity, closing", "user_id", conn.userID)
			_ = conn.ws.Close()
		}

	case "read":
		conversation, err := frame.Conversation(conn.userID)
		if err != nil {
			s.log.Debug("Malformed read frame", "user_id", conn.userID, "error", err)
			return
		}
		if _, err := s.service.MarkRead(ctx, conn.userID, frame.MessageIDs, conversation); err != nil {
			s.log.Debug("Read receipt failed", "user_id", conn.userID, "error", err)
		}

	default:
		cmd, err := frame.Command(conn.userID)
		if err != nil {
			s.log.Debug("Malformed frame", "user_id", conn.userID, "error", err)
			return
		}
		if err := s.service.Submit(ctx, cmd); err != nil {
			s.log.Debug("Command failed", "user_id", conn.userID, "type", frame.Type, "error", err)
		}
	}
}
