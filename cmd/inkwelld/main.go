package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inkwell-ai/inkwell/internal/build"
	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/core"
	"github.com/inkwell-ai/inkwell/internal/docstore"
	"github.com/inkwell-ai/inkwell/internal/mcp"
	"github.com/inkwell-ai/inkwell/internal/provider"
	"github.com/inkwell-ai/inkwell/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		dbPath     = flag.String("db", "", "Path to SQLite database (default: ~/.inkwell/inkwell.db)")
		listenAddr = flag.String("listen", "", "HTTP listen address (overrides config)")
		logDir     = flag.String("logdir", "", "Directory for rotating log files (empty for console only)")
		debug      = flag.Bool("debug", false, "Enable debug logging")
		mcpStdio   = flag.Bool("mcp", false, "Serve MCP tools on stdio alongside the HTTP API")
		noStore    = flag.Bool("no-store", false, "Run without the durable document store")
	)
	flag.Parse()

	logger, closeLogs, err := build.SetupLogging(*logDir, *debug)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closeLogs()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	logger.Info("Starting inkwelld", "version", build.Version)

	// Open the document store unless disabled.
	var store *docstore.Store
	if !*noStore {
		path := cfg.DBPath
		if path == "" {
			path, err = docstore.DefaultDBPath()
			if err != nil {
				return err
			}
		}

		store, err = docstore.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open document store: %w",
				err)
		}
		defer store.Close()

		logger.Info("Document store open", "path", path)
	}

	// Assemble and start the runtime.
	rt, err := core.Init(cfg, logger)
	if err != nil {
		return err
	}
	defer core.Deinit()

	gen := provider.NewStatic("")

	// Set up signal handling for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("Shutting down")
		cancel()
	}()

	// Start the HTTP server.
	webCfg := web.DefaultConfig()
	webCfg.Addr = cfg.ListenAddr
	webServer := web.NewServer(webCfg, rt, store, gen, logger)

	webErr := make(chan error, 1)
	go func() {
		webErr <- webServer.Start()
	}()
	go func() {
		<-ctx.Done()
		webServer.Shutdown(context.Background())
	}()

	// Serve MCP tools on stdio when requested.
	if *mcpStdio {
		mcpServer := mcp.NewServer(mcp.Config{
			Runtime:   rt,
			Store:     store,
			Generator: gen,
		})

		logger.Info("Serving MCP tools on stdio")
		if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil {
			return fmt.Errorf("mcp server failed: %w", err)
		}

		return nil
	}

	select {
	case err := <-webErr:
		return err
	case <-ctx.Done():
		return <-webErr
	}
}
