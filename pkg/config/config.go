// Package config loads process-level settings for the lock daemon from
// defaults, an optional YAML file and DOORLOCK_* environment variables.
// Device settings changed over the control channel live in the database,
// not here.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/urmzd/doorlock/pkg/agent"
	"github.com/urmzd/doorlock/pkg/db"
	"github.com/urmzd/doorlock/pkg/keys"
	"github.com/urmzd/doorlock/pkg/supervisor"
	"github.com/urmzd/doorlock/pkg/transport"
)

const EnvPrefix = "DOORLOCK"

// Config is the daemon configuration.
type Config struct {
	DB struct {
		Path string `mapstructure:"path"` // empty: platform default
	} `mapstructure:"db"`

	Serial struct {
		Port string `mapstructure:"port"` // empty: in-memory actuator
		Baud int    `mapstructure:"baud"`
	} `mapstructure:"serial"`

	Relay struct {
		Channel     byte          `mapstructure:"channel"`
		RelockAfter time.Duration `mapstructure:"relock_after"`
	} `mapstructure:"relay"`

	Network struct {
		Mode      string `mapstructure:"mode"` // nmcli | static
		Interface string `mapstructure:"interface"`
	} `mapstructure:"network"`

	Channel struct {
		QueueSize    int           `mapstructure:"queue_size"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"channel"`

	Security struct {
		ReplayWindow time.Duration `mapstructure:"replay_window"`
		Padding      string        `mapstructure:"padding"` // oaep | pkcs1v15
	} `mapstructure:"security"`

	Supervisor struct {
		NetworkRetryBudget int           `mapstructure:"network_retry_budget"`
		ChannelRetryBudget int           `mapstructure:"channel_retry_budget"`
		NetworkRetryDelay  time.Duration `mapstructure:"network_retry_delay"`
		ChannelRetryDelay  time.Duration `mapstructure:"channel_retry_delay"`
		HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval"`
		ReconcileInterval  time.Duration `mapstructure:"reconcile_interval"`
	} `mapstructure:"supervisor"`

	API struct {
		Address string `mapstructure:"address"` // empty disables the status API
	} `mapstructure:"api"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Device struct {
		DoorID         string `mapstructure:"door_id"`
		WiFiSSID       string `mapstructure:"wifi_ssid"`
		WiFiPassword   string `mapstructure:"wifi_password"`
		ServerAddress  string `mapstructure:"server_address"`
		PresetPassword string `mapstructure:"preset_password"`
	} `mapstructure:"device"`
}

// Load reads the configuration. file may be empty, in which case
// doorlock.yaml is looked up in the usual places and is optional.
func Load(file string) (*Config, error) {
	return load(viper.New(), file)
}

func load(v *viper.Viper, file string) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("doorlock")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "doorlock"))
		}
		v.AddConfigPath("/etc/doorlock")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	sup := supervisor.DefaultConfig()
	loop := agent.DefaultConfig()
	dev := db.DefaultDeviceConfig()

	v.SetDefault("db.path", "")
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 9600)
	v.SetDefault("relay.channel", 1)
	v.SetDefault("relay.relock_after", 0)
	v.SetDefault("network.mode", "static")
	v.SetDefault("network.interface", "")
	v.SetDefault("channel.queue_size", transport.DefaultQueueSize)
	v.SetDefault("channel.write_timeout", transport.DefaultWriteTimeout)
	v.SetDefault("security.replay_window", loop.ReplayWindow)
	v.SetDefault("security.padding", keys.PaddingOAEP.String())
	v.SetDefault("supervisor.network_retry_budget", sup.NetworkRetryBudget)
	v.SetDefault("supervisor.channel_retry_budget", sup.ChannelRetryBudget)
	v.SetDefault("supervisor.network_retry_delay", sup.NetworkRetryDelay)
	v.SetDefault("supervisor.channel_retry_delay", sup.ChannelRetryDelay)
	v.SetDefault("supervisor.heartbeat_interval", loop.HeartbeatInterval)
	v.SetDefault("supervisor.reconcile_interval", loop.ReconcileInterval)
	v.SetDefault("api.address", "127.0.0.1:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("device.door_id", "")
	v.SetDefault("device.wifi_ssid", dev.WiFiSSID)
	v.SetDefault("device.wifi_password", dev.WiFiPassword)
	v.SetDefault("device.server_address", dev.ServerAddress)
	v.SetDefault("device.preset_password", dev.PresetPassword)
}

// Validate checks option ranges.
func (c *Config) Validate() error {
	switch c.Network.Mode {
	case "nmcli", "static":
	default:
		return fmt.Errorf("network.mode must be nmcli or static, got %q", c.Network.Mode)
	}
	if _, err := keys.ParsePadding(c.Security.Padding); err != nil {
		return fmt.Errorf("security.padding: %w", err)
	}
	if c.Security.ReplayWindow <= 0 {
		return errors.New("security.replay_window must be positive")
	}
	if c.Supervisor.NetworkRetryBudget <= 0 || c.Supervisor.ChannelRetryBudget <= 0 {
		return errors.New("supervisor retry budgets must be positive")
	}
	if c.Supervisor.HeartbeatInterval <= 0 || c.Supervisor.ReconcileInterval <= 0 {
		return errors.New("supervisor intervals must be positive")
	}
	if c.Channel.QueueSize <= 0 || c.Channel.WriteTimeout <= 0 {
		return errors.New("channel.queue_size and channel.write_timeout must be positive")
	}
	if c.Relay.Channel == 0 {
		return errors.New("relay.channel must be at least 1")
	}
	if c.Serial.Baud <= 0 {
		return errors.New("serial.baud must be positive")
	}
	if strings.TrimSpace(c.Device.PresetPassword) == "" {
		return errors.New("device.preset_password must not be empty")
	}
	return nil
}

// Padding returns the configured RSA padding.
func (c *Config) Padding() keys.Padding {
	p, _ := keys.ParsePadding(c.Security.Padding)
	return p
}

// DeviceDefaults returns the compiled-in device settings, overridden by
// configuration, used for keys never written to the database.
func (c *Config) DeviceDefaults() db.DeviceConfig {
	return db.DeviceConfig{
		WiFiSSID:       c.Device.WiFiSSID,
		WiFiPassword:   c.Device.WiFiPassword,
		ServerAddress:  c.Device.ServerAddress,
		PresetPassword: c.Device.PresetPassword,
	}
}

// Agent returns the control loop configuration.
func (c *Config) Agent() agent.Config {
	return agent.Config{
		Supervisor: supervisor.Config{
			NetworkRetryBudget: c.Supervisor.NetworkRetryBudget,
			ChannelRetryBudget: c.Supervisor.ChannelRetryBudget,
			NetworkRetryDelay:  c.Supervisor.NetworkRetryDelay,
			ChannelRetryDelay:  c.Supervisor.ChannelRetryDelay,
		},
		HeartbeatInterval: c.Supervisor.HeartbeatInterval,
		ReconcileInterval: c.Supervisor.ReconcileInterval,
		ReplayWindow:      c.Security.ReplayWindow,
		RelockAfter:       c.Relay.RelockAfter,
	}
}

// Transport returns the control channel client options.
func (c *Config) Transport() []transport.Option {
	return []transport.Option{
		transport.WithQueueSize(c.Channel.QueueSize),
		transport.WithWriteTimeout(c.Channel.WriteTimeout),
	}
}
