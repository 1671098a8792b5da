package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"roost/internal/config"
	"roost/internal/daemon"
	"roost/internal/logging"
	"roost/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	var backend store.Store
	if sqlite, err := store.Open(cfg); err != nil {
		logger.Warn("coordination database unavailable, running on in-memory store",
			logging.Error(err))
		backend = store.NewFallback()
	} else {
		backend = sqlite
	}

	d, err := daemon.New(cfg, backend, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		os.Exit(1)
	}

	apiServer := daemon.NewAPIServer(cfg, d, logger)
	if apiServer != nil {
		if err := apiServer.Start(ctx); err != nil {
			logger.Error("start api server", logging.Error(err))
			os.Exit(1)
		}
		defer apiServer.Stop()
	}

	<-ctx.Done()
	logger.Info("roostd shutting down")
}
