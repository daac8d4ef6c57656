// Package config loads a Configuration from JSON or YAML (§6.2) and applies
// AUTOMATON_* environment variable overrides, grounded on the teacher's
// internal/config/config.go.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/olereon/automaton/internal/models"
)

// RUNTIMEOPTIONS ARE PROCESS-LEVEL SETTINGS NOT PART OF THE PROGRAM ITSELF:
// WHERE TO WRITE LOGS, WHETHER TO STORE ERROR DETAILS, AND THE MINIMUM LOG
// LEVEL. SOURCED FROM AUTOMATON_* ENVIRONMENT VARIABLES; NO CLI FLAG SETS THEM.
type RuntimeOptions struct {
	LogDir            string
	LogLevel          string
	StoreErrorDetails bool
	HistoryDBPath     string
	DownloadDir       string
}

// DEFAULTRUNTIMEOPTIONS RETURNS SENSIBLE DEFAULTS BEFORE ENV/FLAG OVERRIDES.
func DefaultRuntimeOptions() RuntimeOptions {
	return RuntimeOptions{
		LogDir:            "./logs",
		LogLevel:          "INFO",
		StoreErrorDetails: false,
		HistoryDBPath:     "./automaton_history.db",
		DownloadDir:       "./downloads",
	}
}

// LOADRUNTIMEOPTIONSFROMENV APPLIES AUTOMATON_* ENVIRONMENT VARIABLES OVER
// THE DEFAULTS. cmd/automaton USES THE RESULT AS IS: NONE OF ITS FLAGS
// OVERRIDE THESE FIELDS.
func LoadRuntimeOptionsFromEnv() RuntimeOptions {
	opts := DefaultRuntimeOptions()
	if v := os.Getenv("AUTOMATON_LOG_DIR"); v != "" {
		opts.LogDir = v
	}
	if v := os.Getenv("AUTOMATON_LOG_LEVEL"); v != "" {
		opts.LogLevel = strings.ToUpper(v)
	}
	if v := os.Getenv("AUTOMATON_STORE_ERROR_DETAILS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.StoreErrorDetails = b
		}
	}
	if v := os.Getenv("AUTOMATON_HISTORY_DB"); v != "" {
		opts.HistoryDBPath = v
	}
	if v := os.Getenv("AUTOMATON_DOWNLOAD_DIR"); v != "" {
		opts.DownloadDir = v
	}
	return opts
}

// LOAD READS A CONFIGURATION FROM PATH, DETECTING JSON VS YAML BY
// EXTENSION AND DECODING BOTH THROUGH THE SAME INTERMEDIATE SHAPE SO THE
// TWO FORMATS REMAIN INTERCHANGEABLE (§6.2).
func Load(path string) (*models.Configuration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg models.Configuration
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var intermediate map[string]any
		if err := yaml.Unmarshal(raw, &intermediate); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		reencoded, err := json.Marshal(intermediate)
		if err != nil {
			return nil, fmt.Errorf("reencode yaml as json: %w", err)
		}
		if err := json.Unmarshal(reencoded, &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	}

	if cfg.Viewport.Width == 0 {
		cfg.Viewport.Width = 1280
	}
	if cfg.Viewport.Height == 0 {
		cfg.Viewport.Height = 800
	}

	return &cfg, nil
}

// SAVE WRITES A CONFIGURATION BACK TO PATH IN THE FORMAT IMPLIED BY ITS
// EXTENSION, USED BY THE `convert` CLI SUBCOMMAND.
func Save(cfg *models.Configuration, path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
