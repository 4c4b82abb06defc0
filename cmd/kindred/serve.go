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

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kindredwell/kindred/internal/api"
	"github.com/kindredwell/kindred/internal/challenge"
	"github.com/kindredwell/kindred/internal/checkin"
	"github.com/kindredwell/kindred/internal/clinician"
	"github.com/kindredwell/kindred/internal/coach"
	"github.com/kindredwell/kindred/internal/config"
	"github.com/kindredwell/kindred/internal/oracle"
	"github.com/kindredwell/kindred/internal/profile"
	"github.com/kindredwell/kindred/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kindred server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "kindred version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.Level})))

	if cfg.Oracle.APIKey == "" {
		slog.Warn("no oracle API key configured; generated content will use fallbacks")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Seed before serving so first requests never race the catalog check.
	if err := store.SeedQuestionBank(); err != nil {
		return fmt.Errorf("seeding question bank: %w", err)
	}

	oracleClient := oracle.NewClient(cfg.Oracle.APIKey, cfg.Oracle.Model)
	deps := api.Deps{
		Store:     store,
		Selector:  checkin.NewSelector(store, time.Now().UnixNano()),
		Generator: challenge.NewGenerator(store, oracleClient),
		Profile:   profile.NewSummarizer(store, oracleClient),
		Clinician: clinician.NewService(store),
		Coach:     coach.NewCoach(oracleClient),
		Token:     cfg.Server.APIToken,
		Build:     version,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps),
	}

	// MCP server for coach assistants, stdio transport.
	stdioSrv := server.NewStdioServer(api.NewMCPServer(deps))
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "kindred listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
