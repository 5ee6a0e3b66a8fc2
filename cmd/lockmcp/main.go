package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/doorlock/pkg/config"
	"github.com/urmzd/doorlock/pkg/db"
	lockmcp "github.com/urmzd/doorlock/pkg/mcp"
)

func main() {
	// Logging must go to stderr: stdout is the MCP transport
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	dbPath := flag.String("db", "", "Path to database file (overrides db.path)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *dbPath != "" {
		cfg.DB.Path = *dbPath
	}

	// Read-only: lockd owns the store and its migrations
	database, err := db.OpenReadOnly(cfg.DB.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database (has lockd run yet?)")
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	log.Info().Str("path", database.Path()).Msg("Database opened")

	mcpServer := lockmcp.NewServer(database.Identity(), database.Settings())

	log.Info().Msg("Starting MCP server on stdio")

	if err := mcpServer.ServeStdio(); err != nil {
		log.Fatal().Err(err).Msg("MCP server failed")
	}
}
