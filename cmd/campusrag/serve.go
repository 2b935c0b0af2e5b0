package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallnest/campusrag/intent"
	"github.com/smallnest/campusrag/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides server.addr")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	comps, err := newComponents(cfg, logger)
	if err != nil {
		return err
	}
	messages, err := openStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	defer messages.Close()

	published, stop, err := conversations(ctx, messages, comps.summaryBuilder(cfg, logger), cfg, comps.metrics, logger)
	if err != nil {
		return err
	}
	defer stop()

	srv := server.New(comps.engine,
		server.WithIntentRouter(intent.NewRouter()),
		server.WithMessages(published),
		server.WithIndexer(comps.indexer),
		server.WithTitler(comps.titles),
		server.WithGatherer(comps.registry),
		server.WithAPIKey(cfg.Server.IndexAPIKey),
		server.WithHistory(cfg.Memory.MaxTurns),
		server.WithDefaultTopK(cfg.LLM.TopK),
		server.WithLogger(logger),
	)

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server.listening addr=%s store=%s", addr, cfg.Store.Backend)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server.shutting_down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return httpServer.Shutdown(shutdownCtx)
}
