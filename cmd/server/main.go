package main

import (
	"flag"
	"log"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gopad/pkg/server"
)

func main() {
	config := server.DefaultConfig()

	port := flag.Int("port", config.Port, "TCP port for the line protocol")
	wsPort := flag.Int("ws-port", 0, "HTTP port for the WebSocket bridge (0 disables it)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	config.Port = *port
	config.WSPort = *wsPort

	// The positional form `server [port]` wins over flags.
	if args := flag.Args(); len(args) == 1 {
		p, err := strconv.Atoi(args[0])
		if err != nil {
			log.Fatalf("invalid port argument %q", args[0])
		}
		config.Port = p
	}

	logger := createLogger(*debug)
	defer logger.Sync()

	srv := server.NewServer(config, logger)
	if err := srv.Serve(); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

// createLogger creates a zap logger with the appropriate configuration.
func createLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := config.Build()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	return logger
}
