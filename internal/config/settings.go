package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds tunable daemon behaviour loaded from settings.yaml.
// All fields are optional; zero values fall back to defaults.
type Settings struct {
	// SettleDelay is the quiescence window applied to hotplug bursts.
	SettleDelay time.Duration `yaml:"settle_delay"`
	// ApplyTimeout bounds a single compositor reconfiguration call.
	ApplyTimeout time.Duration `yaml:"apply_timeout"`
	// RescanInterval enables a periodic safety-net re-evaluation when > 0.
	RescanInterval time.Duration `yaml:"rescan_interval"`
	// Notifications toggles desktop notifications on profile switches.
	Notifications *bool `yaml:"notifications"`
}

// Default settings values.
const (
	DefaultSettleDelay  = 3 * time.Second
	DefaultApplyTimeout = 10 * time.Second
)

// LoadSettings reads the settings file, returning defaults when it is absent.
// A malformed file is an error so that typos do not silently disable tuning.
func LoadSettings(path string) (Settings, error) {
	settings := Settings{
		SettleDelay:  DefaultSettleDelay,
		ApplyTimeout: DefaultApplyTimeout,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("config: read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("config: parse settings: %w", err)
	}

	if settings.SettleDelay <= 0 {
		settings.SettleDelay = DefaultSettleDelay
	}
	if settings.ApplyTimeout <= 0 {
		settings.ApplyTimeout = DefaultApplyTimeout
	}
	if settings.RescanInterval < 0 {
		settings.RescanInterval = 0
	}

	return settings, nil
}

// NotificationsEnabled reports whether desktop notifications should be sent.
// Enabled unless explicitly turned off.
func (s Settings) NotificationsEnabled() bool {
	return s.Notifications == nil || *s.Notifications
}
