// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads engine configuration from an embedded default, an
// optional external YAML file, and environment variable overrides, in that
// precedence order (lowest to highest).
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// MaxConfigFileSize bounds external config reads.
const MaxConfigFileSize = 256 * 1024

// EnvConfigPath names the environment variable pointing at an external
// config file.
const EnvConfigPath = "KELP_CONFIG_PATH"

//go:embed kelp.yaml
var defaultConfigYAML []byte

// Config is the root configuration for a kelp deployment.
type Config struct {
	Engine   EngineConfig   `yaml:"engine" validate:"required"`
	Oracle   OracleConfig   `yaml:"oracle" validate:"required"`
	Compiler CompilerConfig `yaml:"compiler" validate:"required"`
	Store    StoreConfig    `yaml:"store"`
	Training TrainingConfig `yaml:"training"`
}

// EngineConfig tunes the tree engine loop.
type EngineConfig struct {
	MaxIterations  int    `yaml:"max_iterations" validate:"min=1,max=100"`
	MaxRetries     int    `yaml:"max_retries" validate:"min=0,max=10"`
	LookaheadDepth int    `yaml:"lookahead_depth" validate:"min=1,max=10"`
	RootNode       string `yaml:"root_node" validate:"required"`
}

// OracleConfig tunes the oracle adapter.
type OracleConfig struct {
	BaseModel      string  `yaml:"base_model" validate:"required"`
	ComplexModel   string  `yaml:"complex_model" validate:"required"`
	TimeoutSeconds int     `yaml:"timeout_seconds" validate:"min=1,max=600"`
	Temperature    float32 `yaml:"temperature" validate:"min=0,max=2"`
	MaxTokens      int     `yaml:"max_tokens" validate:"min=1"`
}

// CompilerConfig tunes example retrieval and tier selection.
type CompilerConfig struct {
	ExampleCount    int     `yaml:"example_count" validate:"min=1,max=100"`
	TierThreshold   int     `yaml:"tier_threshold" validate:"min=1"`
	SimilarityFloor float64 `yaml:"similarity_floor" validate:"min=0,max=1"`
}

// StoreConfig locates the example store.
type StoreConfig struct {
	Scheme    string `yaml:"scheme" validate:"omitempty,oneof=http https"`
	Host      string `yaml:"host"`
	ClassName string `yaml:"class_name"`
}

// TrainingConfig locates the training sink.
type TrainingConfig struct {
	Path       string `yaml:"path"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// Load builds the effective configuration.
//
// Description:
//
//	Starts from the embedded default, overlays an external file when
//	KELP_CONFIG_PATH is set, then applies environment overrides. The result
//	is validated before being returned; an invalid configuration fails the
//	load rather than surfacing mid-run.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Non-nil when the external file is unreadable, the YAML is
//	  malformed, or validation fails.
func Load() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling embedded config: %w", err)
	}

	if path := os.Getenv(EnvConfigPath); path != "" {
		data, err := readExternal(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// readExternal reads an external config file with path and size checks.
func readExternal(path string) ([]byte, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	if strings.Contains(absPath, "..") {
		return nil, fmt.Errorf("path traversal not allowed: %s", absPath)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileSize)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return data, nil
}

// applyEnvOverrides applies per-field environment overrides. Only string
// fields are overridable this way; numeric tuning goes through the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KELP_ORACLE_BASE_MODEL"); v != "" {
		cfg.Oracle.BaseModel = v
	}
	if v := os.Getenv("KELP_ORACLE_COMPLEX_MODEL"); v != "" {
		cfg.Oracle.ComplexModel = v
	}
	if v := os.Getenv("KELP_STORE_HOST"); v != "" {
		cfg.Store.Host = v
	}
	if v := os.Getenv("KELP_STORE_SCHEME"); v != "" {
		cfg.Store.Scheme = v
	}
	if v := os.Getenv("KELP_TRAINING_PATH"); v != "" {
		cfg.Training.Path = v
	}
}
