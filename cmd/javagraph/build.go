// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/javagraph/internal/ast"
	"github.com/AleutianAI/javagraph/internal/config"
	"github.com/AleutianAI/javagraph/internal/graph"
	"github.com/AleutianAI/javagraph/internal/loader"
)

func newBuildCmd() *cobra.Command {
	var (
		root     string
		jsonPath string
		dotPath  string
		tree     bool
		workers  int
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a dependency graph and print per-kind counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := buildGraph(cmd.Context(), root, workers)
			if err != nil {
				return err
			}
			return reportBuild(cmd, result, root, jsonPath, dotPath, tree)
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "project root directory")
	cmd.Flags().StringVar(&jsonPath, "json", "", "write the graph as JSON to this path")
	cmd.Flags().StringVar(&dotPath, "dot", "", "write the graph in Graphviz DOT format to this path")
	cmd.Flags().BoolVar(&tree, "tree", false, "print the containment tree")
	cmd.Flags().IntVar(&workers, "workers", 0, "pipeline parallelism (0 = config or GOMAXPROCS)")
	return cmd
}

// buildGraph runs config loading, file discovery, and the two-phase build.
func buildGraph(ctx context.Context, root string, workers int) (*graph.BuildResult, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if workers == 0 {
		workers = cfg.Workers
	}

	files, err := loader.New(
		loader.WithExcludePrefixes(cfg.ExcludePrefixes),
		loader.WithGitignore(cfg.UseGitignore()),
	).Load(ctx, root)
	if err != nil {
		return nil, err
	}

	sources := make([]graph.SourceFile, len(files))
	for i, f := range files {
		sources[i] = graph.SourceFile{Path: f.Path, Content: f.Content}
	}

	var parserOpts []ast.JavaParserOption
	if cfg.MaxFileSizeBytes > 0 {
		parserOpts = append(parserOpts, ast.WithMaxFileSize(cfg.MaxFileSizeBytes))
	}

	opts := []graph.BuilderOption{graph.WithParser(ast.NewJavaParser(parserOpts...))}
	if workers > 0 {
		opts = append(opts, graph.WithWorkerCount(workers))
	}
	return graph.NewBuilder(opts...).Build(ctx, sources)
}

// reportBuild prints counts and writes the requested export files.
func reportBuild(cmd *cobra.Command, result *graph.BuildResult, root, jsonPath, dotPath string, tree bool) error {
	out := cmd.OutOrStdout()

	printCounts(out, "entities", result.Store.EntityCounts())
	printCounts(out, "relations", result.Store.RelationCounts())
	fmt.Fprintf(out, "files: %d processed, %d failed\n", result.Stats.FilesProcessed, result.Stats.FilesFailed)
	fmt.Fprintf(out, "calls: %d resolved, %d dropped, %d fan-out\n",
		result.Stats.CallsResolved, result.Stats.CallsDropped, result.Stats.FanOutCalls)
	fmt.Fprintf(out, "duration: %s\n", result.Stats.Duration.Round(1000000))

	for _, fe := range result.FileErrors {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %s\n", fe.Path, fe.Err)
	}

	if tree {
		fmt.Fprintln(out)
		if err := result.Store.RenderTree(out); err != nil {
			return err
		}
	}

	if jsonPath != "" {
		data, err := json.MarshalIndent(result.Store.ToSerializable(root), "", "  ")
		if err != nil {
			return fmt.Errorf("encoding graph: %w", err)
		}
		if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", jsonPath, err)
		}
	}

	if dotPath != "" {
		f, err := os.Create(dotPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", dotPath, err)
		}
		defer f.Close()
		if err := result.Store.ExportDOT(f); err != nil {
			return fmt.Errorf("writing %s: %w", dotPath, err)
		}
	}

	return nil
}

// printCounts writes one "kind: n" line per kind, sorted for stable output.
func printCounts(out io.Writer, header string, counts map[string]int) {
	kinds := make([]string, 0, len(counts))
	total := 0
	for k, n := range counts {
		kinds = append(kinds, k)
		total += n
	}
	sort.Strings(kinds)

	fmt.Fprintf(out, "%s (%d):\n", header, total)
	for _, k := range kinds {
		fmt.Fprintf(out, "  %-12s %d\n", k, counts[k])
	}
}
