package db

import (
	"context"
	"errors"
	"fmt"
)

var ErrNoActiveProfile = errors.New("no active profile found")

// Config represents the complete runtime configuration loaded from the database.
type Config struct {
	Profile *Profile
	Link    *LinkConfig
}

// APIAddress returns the API server listen address.
func (c *Config) APIAddress() string {
	if c.Link == nil || c.Link.Listen == "" {
		return "0.0.0.0:8080"
	}
	return c.Link.Listen
}

// Device returns the configured serial device path.
func (c *Config) Device() string {
	if c.Link == nil {
		return ""
	}
	return c.Link.Device
}

// Baud returns the configured serial baud rate.
func (c *Config) Baud() int {
	if c.Link == nil || c.Link.Baud == 0 {
		return 9600
	}
	return c.Link.Baud
}

// ActiveConfig loads the complete configuration for the active profile.
func (db *DB) ActiveConfig(ctx context.Context) (*Config, error) {
	profile, err := db.Profiles().GetActive(ctx)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil, ErrNoActiveProfile
		}
		return nil, fmt.Errorf("failed to get active profile: %w", err)
	}

	config := &Config{Profile: profile}

	linkCfg, err := db.LinkConfigs().Get(ctx, profile.ID)
	if err != nil && !errors.Is(err, ErrLinkConfigNotFound) {
		return nil, fmt.Errorf("failed to get link config: %w", err)
	}
	config.Link = linkCfg

	return config, nil
}
