package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AntonStoeckl/library-lending-go/library"
	"github.com/AntonStoeckl/library-lending-go/library/notification"
	"github.com/AntonStoeckl/library-lending-go/library/shared/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}

		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	logger := config.NewLogger(cfg.Log, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := setupObservability(ctx, cfg.Observability, logger)
	if err != nil {
		return fmt.Errorf("setting up observability: %w", err)
	}

	defer func() {
		if shutdownErr := obs.shutdown(); shutdownErr != nil {
			logger.Error("observability shutdown failed", "error", shutdownErr.Error())
		}
	}()

	store, closeStore, err := openStore(ctx, cfg, logger, obs)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Engine, err)
	}
	defer closeStore()

	registry := notification.NewConnectionRegistry(
		notification.WithBufferSize(cfg.Service.ConnectionBufferSize),
		notification.WithRegistryLogger(logger),
	)
	defer registry.Close()

	serviceOptions := append(obs.serviceOptions(logger), library.WithServiceConfig(cfg.Service))

	service, err := library.NewService(store, registry, serviceOptions...)
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}

	simulation := NewSimulation(cfg, logger, service, registry)
	if err := simulation.Seed(ctx); err != nil {
		return fmt.Errorf("seeding inventory: %w", err)
	}

	logger.Info("simulation started",
		"engine", cfg.Engine,
		"readers", cfg.Readers,
		"duration", cfg.Duration.String(),
		"observability", obs.enabled(),
	)

	simulation.Run(ctx)
	simulation.LogSummary()

	calls, err := obs.commandCalls(context.Background())
	if err != nil {
		logger.Error("collecting metrics failed", "error", err.Error())
	}

	for key, count := range calls {
		logger.Info("command calls", "command", key, "count", count)
	}

	violations, err := simulation.CheckInvariants(context.Background(), store)
	if err != nil {
		return fmt.Errorf("checking invariants: %w", err)
	}

	for _, v := range violations {
		logger.Error("invariant violated", "item_id", v.ItemID.String(), "reason", v.Reason)
	}

	if len(violations) > 0 {
		return fmt.Errorf("%d invariant violations", len(violations))
	}

	logger.Info("all invariants hold", "items", cfg.Items)

	return nil
}
