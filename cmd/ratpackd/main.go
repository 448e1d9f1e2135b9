package main

import (
	"log"
	"os"

	"github.com/dsyer/ratpack/exec"
	"github.com/dsyer/ratpack/internal/api"
	"github.com/dsyer/ratpack/internal/config"
	"github.com/dsyer/ratpack/internal/engine"
	"github.com/dsyer/ratpack/internal/processor"
	"github.com/dsyer/ratpack/internal/store"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("ratpackd: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	opts := []exec.Option{exec.WithLogger(logger)}
	if cfg.ComputeWorkers > 0 {
		opts = append(opts, exec.WithComputeWorkers(cfg.ComputeWorkers))
	}
	ctrl := exec.NewController(opts...)
	defer ctrl.Close()

	registry := processor.DefaultRegistry()
	eng := engine.NewEngine(db, registry, ctrl.Control(), logger)

	srv := api.NewServer(cfg.ListenAddr, db, registry, eng, ctrl.Control(), logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
