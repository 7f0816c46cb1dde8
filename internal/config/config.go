// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the optional per-project javagraph configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up at the project root.
const FileName = "javagraph.config.yaml"

// Config controls analysis behavior for one project.
//
// Description:
//
//	All fields are optional: a missing config file or missing field falls
//	back to defaults, so zero configuration always works.
type Config struct {
	// ExcludePrefixes lists root-relative path prefixes to skip entirely.
	ExcludePrefixes []string `yaml:"exclude_prefixes"`

	// Workers is the pipeline parallelism. 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`

	// MaxFileSizeBytes caps the size of a single parsed source file.
	// 0 means the parser default.
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes"`

	// Gitignore toggles honoring the root .gitignore. Defaults to true.
	Gitignore *bool `yaml:"gitignore"`
}

// Default returns the zero-configuration Config.
func Default() *Config {
	return &Config{}
}

// UseGitignore resolves the Gitignore tri-state to its effective value.
func (c *Config) UseGitignore() bool {
	return c.Gitignore == nil || *c.Gitignore
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.MaxFileSizeBytes < 0 {
		return fmt.Errorf("max_file_size_bytes must not be negative, got %d", c.MaxFileSizeBytes)
	}
	return nil
}

// Load reads the config file at the project root.
//
// Description:
//
//	A missing file is not an error: the defaults come back. A present but
//	malformed or invalid file is an error, since silently ignoring a
//	half-written config hides mistakes.
//
// Outputs:
//   - *Config: Never nil on success.
//   - error: Non-nil for unreadable, malformed, or invalid content.
func Load(root string) (*Config, error) {
	p := filepath.Join(root, FileName)
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", p, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", p, err)
	}

	slog.Debug("loaded project config",
		slog.String("path", p),
		slog.Int("workers", cfg.Workers),
		slog.Int("excludes", len(cfg.ExcludePrefixes)))
	return cfg, nil
}
