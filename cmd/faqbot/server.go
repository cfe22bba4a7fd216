package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/faqbot/internal/api"
	"github.com/kalambet/faqbot/internal/backfill"
	"github.com/kalambet/faqbot/internal/chat"
	"github.com/kalambet/faqbot/internal/config"
	"github.com/kalambet/faqbot/internal/huggingface"
	"github.com/kalambet/faqbot/internal/intent"
	"github.com/kalambet/faqbot/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the faqbot server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running faqbot server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show faqbot system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "faqbot.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "faqbot version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireAPIToken(); err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("faqbot is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("faqbot is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Wire the embedding provider. Without a token the bot runs in
	// lexical-only mode: pattern matching still works, just without
	// semantic similarity.
	var embedder intent.Embedder
	var worker *backfill.Worker
	if cfg.HuggingFace.APIToken != "" {
		hf := huggingface.New(cfg.HuggingFace.BaseURL, cfg.HuggingFace.Model, cfg.HuggingFace.APIToken, cfg.HuggingFace.Timeout)
		embedder = hf
		worker = backfill.NewWorker(store, hf, 500*time.Millisecond)
		go worker.Run(ctx)
		slog.Info("embedding provider configured", "model", cfg.HuggingFace.Model)
	} else {
		slog.Warn("no HuggingFace token configured, semantic matching disabled")
	}

	resolver := intent.NewResolver(embedder)
	chatSvc := chat.NewService(store, resolver, cfg.Matching.SemanticThreshold, cfg.Matching.LexicalThreshold)

	// Build HTTP handler and server.
	var syncer api.Syncer
	if worker != nil {
		syncer = worker
	}
	handler := api.NewHandler(api.Deps{
		Store:    store,
		Chat:     chatSvc,
		Token:    cfg.API.Token,
		Backfill: syncer,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:            store,
		Chat:             chatSvc,
		EmbeddingEnabled: embedder != nil,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "faqbot listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("faqbot is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop faqbot (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to faqbot (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if cfg.HuggingFace.APIToken != "" {
		printStatus("Embeddings", "%s via %s", cfg.HuggingFace.Model, cfg.HuggingFace.BaseURL)
	} else {
		printStatus("Embeddings", "disabled (lexical-only mode)")
	}
	printStatus("Semantic threshold", "%.2f", cfg.Matching.SemanticThreshold)
	printStatus("Lexical threshold", "%.2f", cfg.Matching.LexicalThreshold)

	// Show corpus counts if server is running and a token is available.
	if running && cfg.API.Token != "" {
		ac := &apiClient{
			baseURL:    serverURL,
			token:      cfg.API.Token,
			httpClient: client,
		}
		statsResp, err := ac.get(context.Background(), "/admin/stats")
		if err == nil {
			var stats struct {
				Intents    int `json:"intents"`
				Patterns   int `json:"patterns"`
				Embeddings int `json:"embeddings"`
			}
			if decodeJSON(statsResp, &stats) == nil {
				printStatus("Intents", "%d", stats.Intents)
				printStatus("Patterns", "%d (%d embedded)", stats.Patterns, stats.Embeddings)
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
