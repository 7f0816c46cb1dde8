// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers != 0 || len(cfg.ExcludePrefixes) != 0 || cfg.MaxFileSizeBytes != 0 {
		t.Errorf("defaults = %+v, want zero values", cfg)
	}
	if !cfg.UseGitignore() {
		t.Error("gitignore should default to enabled")
	}
}

func TestLoadParsesFields(t *testing.T) {
	root := t.TempDir()
	content := `
exclude_prefixes:
  - generated/
  - vendor/
workers: 4
max_file_size_bytes: 1048576
gitignore: false
`
	if err := os.WriteFile(filepath.Join(root, FileName), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers != 4 {
		t.Errorf("workers = %d, want 4", cfg.Workers)
	}
	if len(cfg.ExcludePrefixes) != 2 || cfg.ExcludePrefixes[0] != "generated/" {
		t.Errorf("excludes = %v", cfg.ExcludePrefixes)
	}
	if cfg.MaxFileSizeBytes != 1048576 {
		t.Errorf("max file size = %d", cfg.MaxFileSizeBytes)
	}
	if cfg.UseGitignore() {
		t.Error("gitignore should be disabled")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("workers: [broken"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(root); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("workers: -2"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(root); err == nil {
		t.Error("expected error for negative workers")
	}
}
