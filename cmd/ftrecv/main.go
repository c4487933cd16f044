// Command ftrecv listens for incoming fragmented file transfers over UDP
// and reassembles them into an output directory.
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
	listen := flag.String("listen", "0.0.0.0:9000", "UDP address to listen on")
	outDir := flag.String("out", "./saved", "directory to write received files to")
	dropRate := flag.Float64("drop-rate", -1, "override the simulated loss probability (0..1)")
	configPath := flag.String("config", "", "optional YAML config overriding the default receiver policy")
	flag.Parse()

	cfg := config.DefaultReceiverConfig()
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ftrecv: reading config: %v\n", err)
			os.Exit(1)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "ftrecv: parsing config: %v\n", err)
			os.Exit(1)
		}
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}
	if *dropRate >= 0 {
		cfg.DropRate = *dropRate
	}

	logger, closer := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, "")
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	receiver := fthub.NewReceiver(cfg, logger)
	if err := receiver.Serve(ctx, *listen); err != nil {
		logger.Error("receiver exited with error", "error", err)
		os.Exit(1)
	}
}
