package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrLinkConfigNotFound = errors.New("link config not found")

// LinkConfig is the serial link configuration document for a profile.
// It is persisted as JSON and validated against LinkConfigSchema before
// every update.
type LinkConfig struct {
	Device string `json:"device"`
	Baud   int    `json:"baud"`
	Listen string `json:"listen"`
}

// DefaultLinkConfig returns the first-run configuration.
func DefaultLinkConfig() *LinkConfig {
	return &LinkConfig{
		Device: "/dev/ttyUSB0",
		Baud:   9600,
		Listen: "0.0.0.0:8080",
	}
}

// LinkConfigSchema is the JSON Schema every stored link config document
// must satisfy.
const LinkConfigSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"device": {"type": "string", "minLength": 1},
		"baud": {"type": "integer", "enum": [1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200]},
		"listen": {"type": "string", "pattern": "^[^:]*:[0-9]+$"}
	},
	"required": ["device", "baud"],
	"additionalProperties": false
}`

// LinkConfigStore provides link config operations.
type LinkConfigStore interface {
	Get(ctx context.Context, profileID int64) (*LinkConfig, error)
	Set(ctx context.Context, profileID int64, cfg *LinkConfig) error
}

// LinkConfigs returns a LinkConfigStore for this database.
func (db *DB) LinkConfigs() LinkConfigStore {
	return &linkConfigStore{db: db}
}

type linkConfigStore struct {
	db *DB
}

func (s *linkConfigStore) Get(ctx context.Context, profileID int64) (*LinkConfig, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `
		SELECT document FROM link_configs WHERE profile_id = ?
	`, profileID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrLinkConfigNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg := &LinkConfig{}
	if err := json.Unmarshal([]byte(doc), cfg); err != nil {
		return nil, fmt.Errorf("failed to decode link config: %w", err)
	}
	return cfg, nil
}

func (s *linkConfigStore) Set(ctx context.Context, profileID int64, cfg *LinkConfig) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode link config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO link_configs (profile_id, document, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (profile_id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at
	`, profileID, string(doc), time.Now().UTC().Format(time.DateTime))
	if err != nil {
		return fmt.Errorf("failed to store link config: %w", err)
	}
	return nil
}
