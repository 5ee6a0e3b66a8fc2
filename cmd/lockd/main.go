package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/doorlock/pkg/agent"
	"github.com/urmzd/doorlock/pkg/api"
	"github.com/urmzd/doorlock/pkg/config"
	"github.com/urmzd/doorlock/pkg/db"
	"github.com/urmzd/doorlock/pkg/device"
	"github.com/urmzd/doorlock/pkg/keys"
	"github.com/urmzd/doorlock/pkg/network"
	"github.com/urmzd/doorlock/pkg/relay"
	"github.com/urmzd/doorlock/pkg/transport"

	_ "github.com/urmzd/doorlock/docs"
)

// @title           Doorlock API
// @version         1.0
// @description     Read-only status API for a network door lock

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http

func main() {
	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Parse flags
	configPath := flag.String("config", "", "Path to config file (default: ./doorlock.yaml, $XDG_CONFIG_HOME/doorlock, /etc/doorlock)")
	dbPath := flag.String("db", "", "Path to database file (overrides db.path)")
	serialPort := flag.String("port", "", "Path to relay serial port (overrides serial.port)")
	listPorts := flag.Bool("list-ports", false, "List serial ports and exit")
	flag.Parse()

	if *listPorts {
		ports, err := relay.Ports()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list serial ports")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *dbPath != "" {
		cfg.DB.Path = *dbPath
	}
	if *serialPort != "" {
		cfg.Serial.Port = *serialPort
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg)
	switch {
	case errors.Is(err, agent.ErrRestartRequested):
		log.Info().Msg("Restarting...")
		if err := agent.Exec(); err != nil {
			// Let the service manager bring the process back
			log.Fatal().Err(err).Msg("Failed to restart in place")
		}
	case errors.Is(err, context.Canceled):
		log.Info().Msg("Shutting down...")
	case err != nil:
		log.Fatal().Err(err).Msg("Lock daemon failed")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Engage the lock before anything touches the network
	actuator, err := openActuator(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := actuator.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to release actuator")
		}
	}()

	// Open database
	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	log.Info().Str("path", database.Path()).Msg("Database opened")

	// Run migrations
	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Bootstrap if needed (first run)
	needsBootstrap, err := database.NeedsBootstrap(ctx)
	if err != nil {
		return fmt.Errorf("failed to check bootstrap status: %w", err)
	}
	if needsBootstrap {
		log.Info().Msg("First run detected, bootstrapping database...")
		if err := database.Bootstrap(ctx, cfg.Device.DoorID, cfg.DeviceDefaults()); err != nil {
			return fmt.Errorf("failed to bootstrap database: %w", err)
		}
		log.Info().Msg("Database bootstrapped successfully")
	}

	identity, err := database.Identity().Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load identity: %w", err)
	}

	settings, err := db.LoadDeviceSettings(ctx, database.Settings(), cfg.DeviceDefaults())
	if err != nil {
		return fmt.Errorf("failed to load device settings: %w", err)
	}
	current := settings.Current()

	log.Info().
		Str("door_id", identity.DoorID).
		Str("ssid", current.WiFiSSID).
		Str("server", current.ServerAddress).
		Str("network_mode", cfg.Network.Mode).
		Msg("Configuration loaded")

	keyManager := keys.NewManager(database.Settings(), keys.WithPadding(cfg.Padding()))

	var net network.Network = network.Static{}
	if cfg.Network.Mode == "nmcli" {
		net = network.NewNMCLI(cfg.Network.Interface)
	}
	link := network.NewLink(net, network.Credentials{SSID: current.WiFiSSID, Password: current.WiFiPassword})

	client, err := transport.NewClient(current.ServerAddress, cfg.Transport()...)
	if err != nil {
		log.Error().Err(err).Str("server", current.ServerAddress).Msg("Stored server address is unusable, falling back to configured default")
		client, err = transport.NewClient(cfg.Device.ServerAddress, cfg.Transport()...)
		if err != nil {
			return fmt.Errorf("failed to create channel client: %w", err)
		}
	}
	defer func() { _ = client.Close() }()
	log.Info().Str("coordinator", client.Address()).Msg("Channel client ready")

	a := agent.New(agent.DeviceContext{
		Identity:  *identity,
		Settings:  settings,
		Keys:      keyManager,
		Actuator:  actuator,
		Indicator: device.NewLogIndicator(),
	}, link, client, cfg.Agent())

	if cfg.API.Address != "" {
		srv := &http.Server{
			Addr:              cfg.API.Address,
			Handler:           api.NewRouter(a, keyManager).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("address", cfg.API.Address).Msg("Starting API server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("API server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return a.Run(ctx)
}

func openActuator(cfg *config.Config) (device.Actuator, error) {
	if cfg.Serial.Port == "" {
		log.Warn().Msg("No relay serial port configured, using in-memory actuator")
		return device.NewMemoryActuator(), nil
	}

	act, err := relay.Open(cfg.Serial.Port, cfg.Serial.Baud, cfg.Relay.Channel)
	if err != nil {
		return nil, fmt.Errorf("failed to open relay on %s: %w", cfg.Serial.Port, err)
	}
	log.Info().Str("port", cfg.Serial.Port).Uint8("channel", cfg.Relay.Channel).Msg("Relay actuator ready")
	return act, nil
}
