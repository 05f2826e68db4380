// Package main is the entry point for the background job worker. It runs
// the publish sweep, the daily rollup and counter reconciliation, either on
// their configured intervals or once by name.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/reelcast/internal/app"
	"github.com/onnwee/reelcast/internal/config"
	"github.com/onnwee/reelcast/internal/middleware"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "optional YAML config file")
	once := flag.String("run", "", "run the named job once and exit (e.g. daily_rollup)")
	flag.Parse()

	if *help {
		fmt.Println("Reelcast Job Worker")
		fmt.Println()
		fmt.Println("Usage: jobs [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if err := config.LoadDotEnv(".env.local", ".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, errs := config.Load(*configPath)
	if cfg == nil {
		fmt.Fprintln(os.Stderr, errors.Join(errs...))
		os.Exit(1)
	}
	logger := middleware.NewLogger(cfg.Env).With("component", "jobs")
	slog.SetDefault(logger)
	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *once); err != nil {
		logger.Error("job worker failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, once string) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Error("failed to release resources", "error", err)
		}
	}()

	if once != "" {
		name := strings.ReplaceAll(once, "-", "_")
		return a.Jobs.RunNow(ctx, name)
	}

	logger.Info("starting job worker", "jobs", a.Jobs.Names())
	g, gctx := errgroup.WithContext(ctx)
	for _, job := range a.Jobs.Jobs() {
		g.Go(func() error { return job.Run(gctx) })
	}
	return g.Wait()
}
