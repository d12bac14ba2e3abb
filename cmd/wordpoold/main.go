// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// wordpoold is the word-association game daemon: it assembles the game
// engine over a persistent store and serves the JSON-RPC surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/sheegaon/wordpool/internal/engine"
	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/phrase"
	"github.com/sheegaon/wordpool/internal/rpcserver"
)

const (
	appName = "wordpoold"
	version = "0.1.0"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, _, err := loadConfig(appName, version)
	if err != nil {
		return err
	}

	if !cfg.NoFileLogging {
		initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
		defer logRotator.Close()
	}
	wpldLog.Infof("Version %s (Go %s)", version, runtime.Version())

	// Shut down cleanly on interrupt signals.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer func() {
		wpldLog.Infof("Gracefully shutting down the database...")
		if err := db.Close(); err != nil {
			wpldLog.Errorf("Failed to close database: %v", err)
		}
	}()

	dict, err := phrase.LoadDictionary(cfg.Wordlist)
	if err != nil {
		return fmt.Errorf("load dictionary: %w", err)
	}

	var embedder phrase.Embedder
	if cfg.EmbedURL != "" {
		embedder = phrase.NewHTTPEmbedder(phrase.HTTPEmbedderConfig{
			URL:       cfg.EmbedURL,
			Proxy:     cfg.Proxy,
			ProxyUser: cfg.ProxyUser,
			ProxyPass: cfg.ProxyPass,
			Timeout:   cfg.EmbedTimeout,
		})
	} else {
		wpldLog.Warnf("No embedding service configured; all copy phrases " +
			"will be rejected")
	}
	validator := phrase.NewValidator(cfg.phraseConfig(), dict, embedder)

	e := engine.New(&engine.Config{
		DB:            db,
		Params:        cfg.gameParams(),
		Validator:     validator,
		SweepInterval: cfg.SweepInterval,
	})
	e.Start()
	defer e.Stop()

	server, err := rpcserver.New(&rpcserver.Config{
		Listeners:  cfg.Listeners,
		Engine:     e,
		MaxClients: cfg.MaxClients,
	})
	if err != nil {
		return err
	}
	server.Run(ctx)

	wpldLog.Infof("Shutdown complete")
	return nil
}

// openDB opens the configured game database backend.
func openDB(cfg *config) (gamedb.DB, error) {
	switch cfg.DBType {
	case "memdb":
		wpldLog.Warnf("Using ephemeral in-memory database; state is lost " +
			"on shutdown")
		return gamedb.NewMemDB(), nil
	default:
		dbPath := filepath.Join(cfg.DataDir, "gamedb")
		wpldLog.Infof("Opening leveldb database %s", dbPath)
		return gamedb.OpenLevelDB(dbPath)
	}
}
