package db

import (
	"context"
	"errors"
	"fmt"
)

// Compiled-in defaults for the mutable device settings.
const (
	DefaultWiFiSSID       = "doorlock-setup"
	DefaultWiFiPassword   = ""
	DefaultServerAddress  = "ws://coordinator.local:8080/"
	DefaultPresetPassword = "changeme"
)

// DeviceConfig holds the mutable, persisted device settings.
type DeviceConfig struct {
	WiFiSSID       string
	WiFiPassword   string
	ServerAddress  string
	PresetPassword string
}

// DefaultDeviceConfig returns the compiled-in settings.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		WiFiSSID:       DefaultWiFiSSID,
		WiFiPassword:   DefaultWiFiPassword,
		ServerAddress:  DefaultServerAddress,
		PresetPassword: DefaultPresetPassword,
	}
}

func (c DeviceConfig) values() map[string]string {
	return map[string]string{
		KeyWiFiSSID:       c.WiFiSSID,
		KeyWiFiPassword:   c.WiFiPassword,
		KeyServerAddress:  c.ServerAddress,
		KeyPresetPassword: c.PresetPassword,
	}
}

// DeviceSettings keeps the in-memory DeviceConfig in step with the store.
// Updates are persisted before the in-memory copy changes, so a failed
// write leaves both untouched.
type DeviceSettings struct {
	store   SettingsStore
	current DeviceConfig
}

// LoadDeviceSettings reads every setting from the store, falling back per
// field to defaults when a key has never been written.
func LoadDeviceSettings(ctx context.Context, store SettingsStore, defaults DeviceConfig) (*DeviceSettings, error) {
	s := &DeviceSettings{store: store}

	cfg := defaults
	fields := []struct {
		key string
		dst *string
	}{
		{KeyWiFiSSID, &cfg.WiFiSSID},
		{KeyWiFiPassword, &cfg.WiFiPassword},
		{KeyServerAddress, &cfg.ServerAddress},
		{KeyPresetPassword, &cfg.PresetPassword},
	}
	for _, f := range fields {
		v, err := store.Get(ctx, f.key)
		if errors.Is(err, ErrSettingNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f.key, err)
		}
		*f.dst = v
	}

	s.current = cfg
	return s, nil
}

// Current returns a copy of the active settings.
func (s *DeviceSettings) Current() DeviceConfig {
	return s.current
}

// PresetPassword returns the shared command password.
func (s *DeviceSettings) PresetPassword() string {
	return s.current.PresetPassword
}

// UpdateWiFi persists new network credentials.
func (s *DeviceSettings) UpdateWiFi(ctx context.Context, ssid, password string) error {
	next := s.current
	next.WiFiSSID = ssid
	next.WiFiPassword = password
	return s.apply(ctx, next, map[string]string{
		KeyWiFiSSID:     ssid,
		KeyWiFiPassword: password,
	})
}

// UpdateServer persists a new coordinator address.
func (s *DeviceSettings) UpdateServer(ctx context.Context, address string) error {
	next := s.current
	next.ServerAddress = address
	return s.apply(ctx, next, map[string]string{KeyServerAddress: address})
}

// UpdatePresetPassword persists a new shared command password.
func (s *DeviceSettings) UpdatePresetPassword(ctx context.Context, password string) error {
	next := s.current
	next.PresetPassword = password
	return s.apply(ctx, next, map[string]string{KeyPresetPassword: password})
}

func (s *DeviceSettings) apply(ctx context.Context, next DeviceConfig, changed map[string]string) error {
	if err := s.store.SetMany(ctx, changed); err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	s.current = next
	return nil
}
