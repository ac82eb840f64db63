package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"pricewise/internal/adapters/config"
	pgclient "pricewise/internal/adapters/postgres"
	"pricewise/pkg/logger"
	"pricewise/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|redo|version")
	flag.Parse()

	cfg, err := config.Load()
	requireResource("config", err)

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		requireResource("logger", err)
	}
	log := logger.Get().With("component", "migrate", "cmd", *cmd)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pg, err := pgclient.NewClient(ctx, cfg.Postgres)
	requireResource("database", err)
	defer pg.Close()

	if err := migrate.Run(ctx, pg.DB().DB, *cmd, flag.Args()...); err != nil {
		log.Errorw("Migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("Migration finished")
}

func requireResource(resource string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "resource not working: %s: %v\n", resource, err)
	os.Exit(1)
}
