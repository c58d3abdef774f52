// Package main is the entry point for the Palisade database migration tool.
// It applies the embedded SQLite schema and, when a PostgreSQL SIEM archive
// is configured, its events table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/palisade-forum/palisade/internal/config"
	"github.com/palisade-forum/palisade/internal/repository/postgres"
	"github.com/palisade-forum/palisade/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("Palisade Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "up":
		if err := runUp(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runUp(args []string) error {
	fs := flag.NewFlagSet("up", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx := context.Background()

	dbCfg := sqlite.DefaultConfig(cfg.Database.Path)
	dbCfg.JournalMode = cfg.Database.JournalMode
	dbCfg.BusyTimeout = cfg.Database.BusyTimeout
	dbCfg.CacheSize = cfg.Database.CacheSize
	dbCfg.SynchronousMode = cfg.Database.SynchronousMode

	db, err := sqlite.NewDB(ctx, dbCfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	fmt.Println("forum database schema is up to date")

	if !cfg.Database.IsEmbedded() {
		archive, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer archive.Close()

		if err := archive.Migrate(ctx); err != nil {
			return err
		}
		fmt.Println("event archive schema is up to date")
	}

	return nil
}

func printUsage() {
	fmt.Println(`Palisade Migration Tool

Usage:
  palisade-migrate <command> [arguments]

Commands:
  up          Apply pending schema migrations
  version     Print version information
  help        Show this help message

Examples:
  palisade-migrate up
  palisade-migrate up --config /etc/palisade/config.yaml`)
}
