// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package loader collects Java source files under a project root.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("javagraph/loader")

// ErrRootNotFound indicates the project root does not exist or is not a
// directory. This is the one fatal loader condition: no graph is built.
var ErrRootNotFound = errors.New("project root not found")

// File is one source file found under the root, path relative to the
// root with forward slashes.
type File struct {
	Path    string
	Content []byte
}

// Option configures a Loader.
type Option func(*Loader)

// WithExcludePrefixes skips files whose root-relative path starts with any
// of the given prefixes.
func WithExcludePrefixes(prefixes []string) Option {
	return func(l *Loader) {
		l.excludes = prefixes
	}
}

// WithGitignore toggles honoring a .gitignore file at the root. On by
// default.
func WithGitignore(enabled bool) Option {
	return func(l *Loader) {
		l.useGitignore = enabled
	}
}

// Loader walks a root directory for .java files.
//
// Description:
//
//	The walk skips VCS metadata directories, hidden directories, and
//	symlinks, and honors a .gitignore file at the root when present.
//	Content is read eagerly; oversized files are the parser's concern,
//	not the loader's.
//
// Thread Safety: Load may be called concurrently on one Loader.
type Loader struct {
	excludes     []string
	useGitignore bool
}

// New creates a Loader with the given options.
func New(opts ...Option) *Loader {
	l := &Loader{useGitignore: true}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// skipDirs are directory names never descended into.
var skipDirs = map[string]struct{}{
	".git": {}, ".svn": {}, ".hg": {},
	"node_modules": {}, "target": {}, "build": {}, "out": {},
}

// Load walks root and returns all matching files sorted by path.
//
// Inputs:
//   - ctx: Context for cancellation between directory entries.
//   - root: The project root directory.
//
// Outputs:
//   - []File: Sorted by relative path. Empty when no sources exist.
//   - error: ErrRootNotFound when root is missing or not a directory;
//     otherwise walk or read failures.
func (l *Loader) Load(ctx context.Context, root string) ([]File, error) {
	ctx, span := tracer.Start(ctx, "loader.Load")
	defer span.End()
	span.SetAttributes(attribute.String("loader.root", root))

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}

	ignore := l.loadGitignore(root)

	var files []File
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			name := d.Name()
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if l.excluded(rel+"/") || (ignore != nil && ignore.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !strings.HasSuffix(rel, ".java") {
			return nil
		}
		if l.excluded(rel) || (ignore != nil && ignore.MatchesPath(rel)) {
			return nil
		}

		content, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", rel, err)
		}
		files = append(files, File{Path: rel, Content: content})
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("loader.files", len(files)))
	slog.Debug("source walk complete",
		slog.String("root", root),
		slog.Int("files", len(files)))
	return files, nil
}

func (l *Loader) excluded(rel string) bool {
	for _, p := range l.excludes {
		if p != "" && strings.HasPrefix(rel, p) {
			return true
		}
	}
	return false
}

// loadGitignore compiles the root .gitignore when enabled and present.
func (l *Loader) loadGitignore(root string) *gitignore.GitIgnore {
	if !l.useGitignore {
		return nil
	}
	ign, err := gitignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		// Missing or unreadable .gitignore just means nothing is ignored.
		return nil
	}
	return ign
}
