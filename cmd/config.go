package main

import "time"

type Config struct {
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	MaxMessageSize       int64         `env:"MAX_MESSAGE_SIZE,default=65536"`
	HandshakeTimeout     time.Duration `env:"HANDSHAKE_TIMEOUT,default=10s"`
	FrameRate            float64       `env:"FRAME_RATE,default=25"`
	FrameBurst           int           `env:"FRAME_BURST,default=50"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	DebugPort            int           `env:"DEBUG_PORT,default=6060"`
}
