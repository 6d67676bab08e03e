package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/notewell/notewell/internal/answer"
	"github.com/notewell/notewell/internal/api"
	"github.com/notewell/notewell/internal/classify"
	"github.com/notewell/notewell/internal/config"
	"github.com/notewell/notewell/internal/index"
	"github.com/notewell/notewell/internal/ollama"
	"github.com/notewell/notewell/internal/retrieval"
	"github.com/notewell/notewell/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the notewell server (HTTP API + MCP)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "notewell version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Check Ollama readiness, pulling missing models.
	ollamaClient := ollama.New(cfg.Ollama.BaseURL)
	if err := ollama.EnsureReady(ctx, ollamaClient, cfg.Ollama.ChatModel, cfg.Ollama.EmbedModel, os.Stderr); err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Wire the core: one instance of each component, injected by reference.
	embedder := retrieval.NewEmbedder(ollamaClient, cfg.Ollama.EmbedModel)
	idx := index.New(store.DB(), embedder, cfg.Chunking.MaxChars, cfg.Chunking.OverlapChars)
	retriever := retrieval.NewRetriever(embedder, idx)
	classifier := classify.New(ollamaClient, cfg.Ollama.ChatModel)
	composer := answer.New(ollamaClient, cfg.Ollama.ChatModel, retriever)

	deps := api.Deps{
		Index:      idx,
		Retriever:  retriever,
		Composer:   composer,
		Classifier: classifier,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps),
	}

	// MCP server on its own port (streamable HTTP transport).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Index:      idx,
		Retriever:  retriever,
		Composer:   composer,
		Classifier: classifier,
	})
	mcpHTTP := server.NewStreamableHTTPServer(mcpSrv)
	mcpAddr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.MCPPort)
	go func() {
		slog.Info("MCP server listening", "addr", mcpAddr)
		if err := mcpHTTP.Start(mcpAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("MCP server error", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "notewell listening on %s\n", addr)
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
	if err := mcpHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Warn("MCP shutdown", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
}
