// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// harm-console is the terminal console for HARM. It connects to harmd
// over the control socket, walks the operator through setting the
// Arma Reforger server path on first run, starts the daemon's HTTP API
// once configured, and shows the registered dedicated servers.
//
// Log records at or above console.log_level appear in the status bar.
// --log-output captures every record to a JSON file, since stderr is
// taken by the alt screen.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/harm-foundation/harm/lib/backend"
	"github.com/harm-foundation/harm/lib/cli"
	"github.com/harm-foundation/harm/lib/config"
	"github.com/harm-foundation/harm/lib/console"
	"github.com/harm-foundation/harm/lib/consoleui"
	"github.com/harm-foundation/harm/lib/servercache"
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

	flagSet := pflag.NewFlagSet("harm-console", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to harm.yaml (default: $HARM_CONFIG, then built-in defaults)")
	flagSet.StringVar(&socketPath, "socket", "", "harmd control socket (overrides paths.socket)")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return cli.Validation("%w", err)
	}
	if showVersion {
		version.Print("harm-console")
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

	level, _ := config.ParseLevel(cfg.Console.LogLevel)
	var fileHandler slog.Handler
	if logOutput != "" {
		handler, closeFile, err := cli.OpenFileLogHandler(logOutput)
		if err != nil {
			return cli.Validation("cannot open log file %s: %w", logOutput, err)
		}
		defer closeFile()
		fileHandler = handler
	}
	tuiHandler := consoleui.NewTUILogHandler(level, fileHandler)
	logger := slog.New(tuiHandler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := console.New(backend.NewSocketBackend(cfg.Paths.Socket), console.Options{
		Cache: servercache.Options{
			Client:   &http.Client{Timeout: cfg.Console.RequestTimeoutDuration()},
			Host:     cfg.Daemon.APIHost,
			PageSize: cfg.Console.PageSize,
			Retry: servercache.RetryPolicy{
				Attempts: cfg.Console.RetryAttempts,
				Backoff:  cfg.Console.RetryBackoffDuration(),
			},
		},
		Logger: logger,
	})
	defer session.Close()

	model := consoleui.NewModel(ctx, session, consoleui.Options{})
	program := tea.NewProgram(model, tea.WithAltScreen())
	tuiHandler.SetProgram(program)

	session.Start(ctx)
	logger.Debug("console started", "version", version.Info(), "socket", cfg.Paths.Socket)

	if _, err := program.Run(); err != nil {
		return cli.Internal("running console: %w", err)
	}
	return nil
}
