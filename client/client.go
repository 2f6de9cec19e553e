package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatter/domain"
	"chatter/internal"
	"chatter/projection"

	"github.com/Netflix/go-env"
	"github.com/gorilla/websocket"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `env:"CHAT_SERVER_URL,default=ws://localhost:8080/ws"`
	Token     string `env:"CHAT_TOKEN,required=true"`
	LogLevel  string `env:"LOG_LEVEL,required=true"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the connection lifecycle: dial, authenticate, then fold every
// received frame into a local timeline until interrupted.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := internal.LoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Dial and authenticate. The first frame must be auth.
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerURL, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	auth, _ := json.Marshal(map[string]string{"type": "auth", "token": config.Token})
	if err := conn.WriteMessage(websocket.TextMessage, auth); err != nil {
		return exitRuntime, fmt.Errorf("auth frame failed: %w", err)
	}

	log.Info("Connected, listening", "url", config.ServerURL)

	// 4. Local client state: the merged timeline and live typing indicators.
	var timeline []domain.Message
	typing := projection.NewTypingState()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	// 5. Frame reception loop.
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("read failed: %w", err)
		}

		var frame serverFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Warn("Unreadable frame", "error", err)
			continue
		}

		switch frame.Type {
		case "message":
			timeline = projection.Merge(timeline, []domain.Message{frame.Message.toDomain()})
			log.Info("Timeline updated", "messages", len(timeline))

		case "onlineUsers":
			log.Info("Presence", "users", frame.Users)

		case "typing":
			typing.Observe(frame.From, frame.GroupID, time.Now())
			log.Info("Typing", "active", typing.Active(frame.GroupID, time.Now()))

		case "read", "reactionUpdate", "deleteMessage":
			log.Info("State update", "type", frame.Type, "message_id", frame.MessageID)

		default:
			log.Debug("Unhandled frame", "type", frame.Type)
		}
	}
}

// serverFrame is the union of server-to-client frames the client cares about.
type serverFrame struct {
	Type      string       `json:"type"`
	Message   messageFrame `json:"message"`
	Users     []string     `json:"users"`
	From      string       `json:"from"`
	GroupID   string       `json:"groupId"`
	MessageID string       `json:"messageId"`
}

type messageFrame struct {
	ID           string    `json:"_id"`
	Sender       string    `json:"sender"`
	Receiver     string    `json:"receiver"`
	GroupID      string    `json:"groupId"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	ClientTempID string    `json:"clientTempId"`
	ReadBy       []string  `json:"readBy"`
}

func (m messageFrame) toDomain() domain.Message {
	return domain.Message{
		ID:            m.ID,
		SenderID:      m.Sender,
		ReceiverID:    m.Receiver,
		GroupID:       m.GroupID,
		Content:       m.Content,
		CreatedAt:     m.Timestamp,
		CorrelationID: m.ClientTempID,
		ReadBy:        m.ReadBy,
	}
}
