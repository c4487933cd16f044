// Command ftsend sends a single file to a waiting ftrecv over UDP using
// the fragmented stop-and-wait transfer protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/haldane-labs/confrelay/internal/config"
	"github.com/haldane-labs/confrelay/internal/fthub"
	"github.com/haldane-labs/confrelay/internal/logging"
)

func main() {
	addr := flag.String("addr", "", "receiver address, host:port")
	path := flag.String("file", "", "path to the file to send")
	configPath := flag.String("config", "", "optional YAML config overriding the default retry policy")
	flag.Parse()

	if *addr == "" || *path == "" {
		fmt.Fprintln(os.Stderr, "ftsend: -addr and -file are required")
		os.Exit(1)
	}

	cfg := config.DefaultSenderConfig()
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ftsend: reading config: %v\n", err)
			os.Exit(1)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "ftsend: parsing config: %v\n", err)
			os.Exit(1)
		}
	}

	logger, closer := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, "")
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		cancel()
	}()

	sender := fthub.NewSender(cfg, logger)
	if err := sender.SendFile(ctx, *addr, *path); err != nil {
		logger.Error("transfer failed", "error", err)
		os.Exit(1)
	}
}
