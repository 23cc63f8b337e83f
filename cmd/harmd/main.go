// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// harmd is the HARM daemon. It owns the AppConfig record and the
// dedicated server registry, answers the console on a Unix control
// socket, and serves the /servers HTTP API once the console asks for
// it.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/harm-foundation/harm/lib/appconfig"
	"github.com/harm-foundation/harm/lib/cli"
	"github.com/harm-foundation/harm/lib/config"
	"github.com/harm-foundation/harm/lib/daemon"
	"github.com/harm-foundation/harm/lib/serverstore"
	"github.com/harm-foundation/harm/lib/version"
)

func main() {
	os.Exit(cli.ExitStatus(os.Stderr, run(os.Args[1:])))
}

func run(args []string) error {
	var (
		configPath  string
		socketPath  string
		logOutput   string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("harmd", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to harm.yaml (default: $HARM_CONFIG, then built-in defaults)")
	flagSet.StringVar(&socketPath, "socket", "", "control socket path (overrides paths.socket)")
	flagSet.StringVar(&logOutput, "log-output", "", "also write JSON log records to this file")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return cli.Validation("%w", err)
	}
	if showVersion {
		version.Print("harmd")
		return nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return cli.Validation("unexpected argument: %s", rest[0])
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		return cli.Validation("loading config: %w", err)
	}
	if socketPath != "" {
		cfg.Paths.Socket = socketPath
	}
	if err := cfg.Validate(); err != nil {
		return cli.Validation("invalid config: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return cli.Internal("%w", err)
	}

	level, _ := config.ParseLevel(cfg.Daemon.LogLevel)
	logger := cli.NewCommandLogger(level)
	if logOutput != "" {
		fileHandler, closeFile, err := cli.OpenFileLogHandler(logOutput)
		if err != nil {
			return cli.Validation("cannot open log file %s: %w", logOutput, err)
		}
		defer closeFile()
		logger = slog.New(cli.FanoutHandler{logger.Handler(), fileHandler})
	}
	slog.SetDefault(logger)

	lock, err := daemon.AcquireLock(cfg.Paths.LockFile)
	if errors.Is(err, daemon.ErrLocked) {
		return cli.Conflict("%w", err).
			WithHint(fmt.Sprintf("Stop the running daemon, or point --config at another root than %s.", cfg.Paths.Root))
	}
	if err != nil {
		return cli.Internal("%w", err)
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := serverstore.Open(ctx, cfg.Paths.Database, logger.With("component", "serverstore"))
	if err != nil {
		return cli.Internal("opening server registry: %w", err)
	}
	defer registry.Close()

	d, err := daemon.New(daemon.Config{
		SocketPath:      cfg.Paths.Socket,
		AppConfig:       appconfig.New(cfg.Paths.AppConfig, cfg.Daemon.DefaultAPIPort, logger.With("component", "appconfig")),
		Registry:        registry,
		APIHost:         cfg.Daemon.APIHost,
		ShutdownTimeout: cfg.Daemon.ShutdownTimeoutDuration(),
		Logger:          logger,
	})
	if err != nil {
		return cli.Internal("%w", err)
	}

	logger.Info("harmd starting",
		"version", version.Info(),
		"root", cfg.Paths.Root,
		"socket", cfg.Paths.Socket,
	)
	if err := d.Serve(ctx); err != nil {
		return cli.Internal("serving: %w", err)
	}
	logger.Info("harmd stopped")
	return nil
}
