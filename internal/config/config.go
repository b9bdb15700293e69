// Package config loads and atomically persists netwatch's JSON configuration
// document, per SPEC_FULL.md §4.8/§6: file → environment layering, legacy
// single-webhook-shape conversion, and uuid backfill for omitted ids.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ifpj/netwatch/internal/types"
)

const (
	DefaultConfigPath = "config.json"
	DefaultCachePath  = "cache.json"
)

// legacyDocument mirrors the pre-plural-webhooks config shape: a single
// "webhook" object instead of "alert.webhooks". Accepted on load, never
// written back out, per §10's "legacy config shape" design note.
type legacyDocument struct {
	Targets           []types.Target `json:"targets"`
	Webhook           *types.Webhook `json:"webhook"`
	DataRetentionDays int            `json:"data_retention_days"`
	HTTP              types.HTTPConfig `json:"http"`
}

// Default returns the zero-configuration starting point used by --init.
func Default() types.Config {
	return types.Config{
		Targets:           nil,
		Alert:             types.AlertConfig{Enabled: true},
		DataRetentionDays: 3,
		HTTP:              types.HTTPConfig{ListenAddr: ":8080"},
	}
}

// Load reads, normalizes, and validates the config document at path. A
// legacy single-webhook document is converted to the plural shape in
// memory; the file on disk is left untouched until the next Save.
func Load(path string) (types.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := decode(raw)
	if err != nil {
		return types.Config{}, fmt.Errorf("parse config: %w", err)
	}

	assignMissingIDs(&cfg)

	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// decode tries the canonical plural-webhooks shape first, falling back to
// the legacy single-webhook shape so both are accepted transparently.
func decode(raw []byte) (types.Config, error) {
	var cfg types.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return types.Config{}, err
	}
	if len(cfg.Alert.Webhooks) > 0 {
		return cfg, nil
	}

	var legacy legacyDocument
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return cfg, nil
	}
	if legacy.Webhook != nil {
		cfg.Alert.Webhooks = []types.Webhook{*legacy.Webhook}
		cfg.Alert.Enabled = true
	}
	return cfg, nil
}

// assignMissingIDs backfills target and webhook ids with generated uuids
// when the loaded document omits them.
func assignMissingIDs(cfg *types.Config) {
	for i := range cfg.Targets {
		if cfg.Targets[i].ID == "" {
			cfg.Targets[i].ID = uuid.NewString()
		}
	}
	for i := range cfg.Alert.Webhooks {
		if cfg.Alert.Webhooks[i].ID == "" {
			cfg.Alert.Webhooks[i].ID = uuid.NewString()
		}
	}
}

// Save writes cfg to path atomically: serialize to a temp file in the same
// directory, then rename over the destination, so a concurrent reader never
// observes a partial write (property 6 in SPEC_FULL.md §9).
func Save(path string, cfg types.Config) error {
	body, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".netwatch-config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename config into place: %w", err)
	}
	return nil
}

// PathFromEnv resolves the config path from NETWATCH_CONFIG_PATH, falling
// back to def when unset.
func PathFromEnv(def string) string {
	if v := os.Getenv("NETWATCH_CONFIG_PATH"); v != "" {
		return v
	}
	return def
}
