package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	httpapi "lsmbatch/internal/http"
	"lsmbatch/pkg/config"
	"lsmbatch/pkg/store"

	"github.com/boreq/errors"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "lsmdb: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return errors.Wrap(err, "error loading the config")
	}
	initLogger(&cfg)

	db, err := store.New(&cfg, nil)
	if err != nil {
		return errors.Wrap(err, "error opening the store")
	}
	defer db.Close()

	server := httpapi.NewServer(db, cfg.Server)
	if err := server.Start(); err != nil {
		return errors.Wrap(err, "error starting the server")
	}

	<-ctx.Done()

	if err := server.Stop(); err != nil {
		slog.Error("error stopping server", "error", err)
	}

	slog.Info("LSMDB stopped", "last_seq", db.LastSequence())
	return nil
}
