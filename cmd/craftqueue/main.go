// Craft queue simulator with an MCP inspection server
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rsned/craftqueue/internal/config"
	"github.com/rsned/craftqueue/internal/crafting/db"
	"github.com/rsned/craftqueue/internal/crafting/engine"
	"github.com/rsned/craftqueue/internal/crafting/eventlog"
	"github.com/rsned/craftqueue/internal/crafting/mcp"
	"github.com/rsned/craftqueue/internal/crafting/observe"
	"github.com/rsned/craftqueue/internal/crafting/registry"
	"github.com/rsned/craftqueue/internal/crafting/sync"
	"github.com/rsned/craftqueue/internal/crafting/ticker"
	"github.com/rsned/craftqueue/pkg/crafting"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	dbPath := flag.String("db", "", "Path to SQLite database (overrides config)")
	importRecipes := flag.String("import-recipes", "", "Import recipes from JSON file and exit")
	serveMCP := flag.Bool("mcp", true, "Serve MCP tools on stdin/stdout; closing stdin leaves the simulation running until SIGINT/SIGTERM, use -mcp=false for headless runs")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	flag.Parse()

	// Setup logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Database = *dbPath
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down...")
		cancel()
	}()

	// Open database
	database, err := db.OpenAndInit(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = database.Close() }()

	syncer, err := sync.NewSyncer(database)
	if err != nil {
		logger.Error("failed to create syncer", "error", err)
		os.Exit(1)
	}

	// Handle import command
	if *importRecipes != "" {
		logger.Info("importing recipes", "file", *importRecipes)
		n, err := syncer.ImportRecipesFromFile(ctx, *importRecipes)
		if err != nil {
			logger.Error("failed to import recipes", "error", err)
			os.Exit(1)
		}
		logger.Info("recipes imported successfully", "count", n)

		// If only doing imports, exit
		if flag.NArg() == 0 {
			return
		}
	}

	if cfg.RecipesFile != "" {
		imported, pruned, err := syncer.SyncRecipesFromFile(ctx, cfg.RecipesFile)
		if err != nil {
			logger.Error("failed to sync recipes", "file", cfg.RecipesFile, "error", err)
			os.Exit(1)
		}
		logger.Info("recipes synced", "file", cfg.RecipesFile, "imported", imported, "pruned", pruned)
	}

	// Event sinks
	hub := observe.NewHub(logger)
	sinks := eventlog.Multi{hub}
	if cfg.Sinks.Log {
		sinks = append(sinks, eventlog.NewLogSink(logger))
	}
	var eventStore *db.EventStore
	if cfg.Sinks.Database {
		eventStore = db.NewEventStore(database)
		sinks = append(sinks, eventlog.NewStoreSink(eventStore))
	}
	if cfg.Sinks.EventDir != "" {
		archive := eventlog.NewJSONLZstdWriter(cfg.Sinks.EventDir, "events")
		defer func() {
			if err := archive.Close(); err != nil {
				logger.Warn("closing event archive", "error", err)
			}
		}()
		sinks = append(sinks, archive)
	}

	// Create engine
	eng := engine.New(registry.New(), engine.Options{
		Policy:   cfg.Policy(),
		Interval: cfg.TickInterval,
		Store:    db.NewRecipeStore(database),
		Events:   eventStore,
		Sink:     sinks,
		Logger:   logger,
	})
	if _, err := eng.ReloadRecipes(ctx); err != nil {
		logger.Error("failed to load recipes", "error", err)
		os.Exit(1)
	}
	if err := seedActors(eng, cfg.Actors); err != nil {
		logger.Error("failed to seed actors", "error", err)
		os.Exit(1)
	}

	// Reload recipes on SIGHUP
	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hupCh:
				reload(ctx, logger, syncer, eng, cfg.RecipesFile)
			}
		}
	}()

	// Websocket event stream
	if cfg.Listen != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/events", hub.Handler())
		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("event stream listening", "addr", cfg.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("event stream server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Tick driver
	driver := ticker.NewDriver(eng, ticker.Options{
		Interval:      cfg.TickInterval,
		FrameInterval: cfg.FrameInterval,
		Logger:        logger,
	})
	driverDone := make(chan struct{})
	go func() {
		defer close(driverDone)
		_ = driver.Run(ctx)
	}()

	lastSync, err := database.GetSyncMetadata(ctx, "recipes_last_sync")
	if err != nil {
		logger.Warn("reading sync metadata", "error", err)
	}

	logger.Info("simulation running",
		"db", cfg.Database,
		"recipes_last_sync", lastSync,
		"run_id", eng.RunID(),
		"recipes", eng.Registry().Len(),
		"actors", len(eng.Actors()),
		"policy", cfg.Policy().String(),
	)

	exitCode := 0
	if *serveMCP {
		// Stdin may never close, so the server is abandoned on shutdown.
		server := mcp.NewServer(eng, logger)
		mcpDone := make(chan error, 1)
		go func() { mcpDone <- server.Run(ctx) }()
		exitCode = waitForMCP(ctx, cancel, mcpDone, logger)
	}

	<-driverDone
	logger.Info("event stream stats", "clients", hub.Clients(), "dropped", hub.Dropped())
	fmt.Fprintln(os.Stderr, "simulation stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// waitForMCP blocks until the MCP server stops or ctx is cancelled and returns
// the process exit code. Only a server error stops the simulation; end of
// input leaves it running until a signal arrives.
func waitForMCP(ctx context.Context, cancel context.CancelFunc, done <-chan error, logger *slog.Logger) int {
	select {
	case err := <-done:
		if ctx.Err() != nil {
			return 0
		}
		if err != nil {
			logger.Error("server error", "error", err)
			cancel()
			return 1
		}
		logger.Info("MCP input closed; simulation continues until signalled")
		return 0
	case <-ctx.Done():
		return 0
	}
}

// seedActors creates the configured actors with their starting balances and queues.
func seedActors(eng *engine.Engine, actors []config.ActorConfig) error {
	for _, a := range actors {
		if err := eng.AddActor(a.ID); err != nil {
			return err
		}
		for kind, amount := range a.Starting {
			k, err := crafting.ParseResourceKind(kind)
			if err != nil {
				return fmt.Errorf("actor %s: %w", a.ID, err)
			}
			if err := eng.Credit(a.ID, k, amount); err != nil {
				return fmt.Errorf("actor %s: %w", a.ID, err)
			}
		}
		for _, name := range a.Queue {
			if _, err := eng.Enqueue(a.ID, name); err != nil {
				return fmt.Errorf("actor %s: %w", a.ID, err)
			}
		}
	}
	return nil
}

func reload(ctx context.Context, logger *slog.Logger, syncer *sync.Syncer, eng *engine.Engine, recipesFile string) {
	if recipesFile != "" {
		if _, _, err := syncer.SyncRecipesFromFile(ctx, recipesFile); err != nil {
			logger.Error("recipe reload sync failed", "file", recipesFile, "error", err)
			return
		}
	}
	if _, err := eng.ReloadRecipes(ctx); err != nil {
		logger.Error("recipe reload failed", "error", err)
	}
}
