// Command confserver runs the text-conferencing server: it accepts TCP
// connections, authenticates clients against a static user table, and
// relays MESSAGE frames between members of shared sessions.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/haldane-labs/confrelay/internal/chatserver"
	"github.com/haldane-labs/confrelay/internal/config"
	"github.com/haldane-labs/confrelay/internal/logging"
)

func main() {
	configPath := flag.String("config", "confserver.yaml", "path to the server YAML config")
	flag.Parse()

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "confserver: %v\n", err)
		os.Exit(1)
	}

	logger, closer := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer closer.Close()

	table, err := config.LoadUserTable(cfg.Users.File)
	if err != nil {
		logger.Error("loading user table", "error", err)
		os.Exit(1)
	}

	srv, err := chatserver.NewServer(cfg, table, logger)
	if err != nil {
		logger.Error("building server", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
