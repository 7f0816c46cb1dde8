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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/javagraph/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		root    string
		port    int
		workers int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build a dependency graph and serve read queries over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), root, port, workers)
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "project root directory")
	cmd.Flags().IntVar(&port, "port", 8080, "listen port")
	cmd.Flags().IntVar(&workers, "workers", 0, "pipeline parallelism (0 = config or GOMAXPROCS)")
	return cmd
}

func runServe(ctx context.Context, root string, port, workers int) error {
	result, err := buildGraph(ctx, root, workers)
	if err != nil {
		return err
	}
	slog.Info("graph ready",
		slog.String("root", root),
		slog.Int("entities", result.Stats.Entities),
		slog.Int("edges", result.Stats.Edges))

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("javagraph"))

	server.RegisterRoutes(router.Group("/api/v1"), server.NewHandlers(result, root))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		slog.Info("shutting down", slog.String("signal", sig.String()))
	case <-ctx.Done():
		slog.Info("shutting down", slog.String("reason", "context canceled"))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
