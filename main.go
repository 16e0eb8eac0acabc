// doclens TUI - a terminal front end for the doclens document
// intelligence backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/jeranaias/doclens-tui/internal/api"
	"github.com/jeranaias/doclens-tui/internal/config"
	"github.com/jeranaias/doclens-tui/internal/history"
	"github.com/jeranaias/doclens-tui/internal/logging"
	"github.com/jeranaias/doclens-tui/internal/session"
	"github.com/jeranaias/doclens-tui/internal/stream"
	"github.com/jeranaias/doclens-tui/internal/tasks"
	"github.com/jeranaias/doclens-tui/internal/turn"
	"github.com/jeranaias/doclens-tui/internal/ui/chat"
	"github.com/jeranaias/doclens-tui/internal/ui/styles"
	"github.com/jeranaias/doclens-tui/internal/watch"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// Program reference for goroutines that send messages into the UI.
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

func sendToProgram(msg any) {
	programMu.Lock()
	p := programRef
	programMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func main() {
	var (
		configPath = flag.String("config", "", "path to config.toml")
		backendURL = flag.String("backend", "", "backend base URL (overrides config)")
		debug      = flag.Bool("debug", false, "enable debug logging")
		version    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("doclens %s (%s)\n", Version, GitCommit)
		return
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "doclens: standard output is not a terminal")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "doclens: %v\n", err)
		os.Exit(1)
	}
	if *backendURL != "" {
		cfg.Backend.URL = *backendURL
	}
	if *debug {
		cfg.Debug = true
	}

	logger, err := logging.New(cfg.Debug, config.LogPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "doclens: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("starting doclens",
		zap.String("version", Version),
		zap.String("backend", cfg.Backend.URL))

	if err := run(cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "doclens: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Clients.
	restClient := api.NewClient(cfg.Backend.URL, logger)
	streamClient := stream.NewClient(cfg.Backend.URL, logger).WithTopK(cfg.Backend.TopK)

	// Services.
	sessions := session.NewManager(restClient, logger)
	tracker := tasks.NewTracker(streamClient, logger)
	defer tracker.Close()

	controller := turn.NewController(streamClient, sessions, restClient, sendToProgram, logger).
		WithDocTypes(cfg.Filter.DocTypes)

	var hist *history.Store
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path, logger)
		if err != nil {
			// Persistence is a convenience; run without it.
			logger.Warn("history disabled", zap.Error(err))
		} else {
			hist = store
			defer store.Close()
		}
	}

	// UI.
	view := chat.New(ctx, chat.Options{
		Theme:      styles.NewTheme(),
		Controller: controller,
		Tracker:    tracker,
		Sessions:   sessions,
		History:    hist,
		DocTypes:   cfg.Filter.DocTypes,
		Logger:     logger,
	})
	p := tea.NewProgram(view, tea.WithAltScreen())

	programMu.Lock()
	programRef = p
	programMu.Unlock()

	// Tracker snapshots flow into the UI as messages.
	unsubscribe := tracker.Subscribe(func(snapshot []tasks.Task) {
		go sendToProgram(chat.TasksUpdatedMsg{Snapshot: snapshot})
	})
	defer unsubscribe()

	// Optional drop-folder uploader.
	if cfg.Watch.Enabled {
		watcher, err := watch.New(cfg.Watch.Dir, restClient, tracker, logger)
		if err != nil {
			logger.Warn("drop folder watch disabled", zap.Error(err))
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("drop folder watch disabled", zap.Error(err))
			watcher.Stop()
		} else {
			defer watcher.Stop()
		}
	}

	_, err := p.Run()
	return err
}
