package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"video-catalog/cmd"
	"video-catalog/pkg/logging"
)

func main() {
	log := logging.New("server")

	// Load configuration
	cfg, err := cmd.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Serve(ctx, cfg, log); err != nil {
		log.WithError(err).Error("server error")
		stop()
		os.Exit(1)
	}
}
