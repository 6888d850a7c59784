package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kyofin/kessan/internal/app"
	"github.com/kyofin/kessan/internal/common"
)

func main() {
	// Resolve config path: explicit env var first, then local defaults.
	paths := []string{"kessan.toml", "config/kessan.toml"}
	if p := os.Getenv("KESSAN_CONFIG"); p != "" {
		paths = []string{p}
	}

	cfg, err := common.LoadConfig(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	a, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	// MCP over Streamable HTTP, sharing the REST listener.
	httpMCP := server.NewStreamableHTTPServer(a.MCPServer,
		server.WithStateLess(true),
	)
	a.Server.Mount("/mcp", httpMCP)

	common.PrintBanner(cfg, a.Logger)

	go func() {
		if err := a.Server.Start(); err != nil {
			a.Logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	a.Logger.Info().
		Str("url", fmt.Sprintf("http://%s", cfg.Server.Address())).
		Str("mcp", fmt.Sprintf("http://%s/mcp", cfg.Server.Address())).
		Msg("Server ready")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	common.PrintShutdownBanner(a.Logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.Server.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	if err := a.Close(); err != nil {
		os.Exit(1)
	}
	a.Logger.Info().Msg("Server stopped")
}
