// Command msgmigrate copies every message from one store backend to another.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	env "github.com/Netflix/go-env"

	"github.com/celerix-dev/celerix-messages/internal/config"
	"github.com/celerix-dev/celerix-messages/internal/platform/logger"
	"github.com/celerix-dev/celerix-messages/internal/storage"
)

type migrateEnv struct {
	From string `env:"MIGRATE_FROM,required=true"`
	To   string `env:"MIGRATE_TO,required=true"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	var m migrateEnv
	if _, err := env.UnmarshalFromEnviron(&m); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if m.From == m.To {
		fmt.Fprintf(os.Stderr, "MIGRATE_FROM and MIGRATE_TO are both %q\n", m.From)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, m, log); err != nil {
		log.Error("migration failed", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, m migrateEnv, log *logger.Logger) error {
	srcCfg, dstCfg := cfg.Store, cfg.Store
	srcCfg.Backend, dstCfg.Backend = m.From, m.To
	for _, c := range []config.Store{srcCfg, dstCfg} {
		if err := c.Validate(); err != nil {
			return err
		}
	}

	src, err := storage.Open(ctx, srcCfg, log)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close(context.Background())

	dst, err := storage.Open(ctx, dstCfg, log)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	defer dst.Close(context.Background())

	n, err := storage.Migrate(ctx, src, dst, int64(cfg.RepairBatchSize), log)
	if err != nil {
		return fmt.Errorf("after %d messages: %w", n, err)
	}
	fmt.Printf("Migrated %d messages from %s to %s.\n", n, m.From, m.To)
	return nil
}
