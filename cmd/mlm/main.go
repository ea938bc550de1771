// mlm runs the Model Lifecycle Manager: it owns a declarative catalog of
// LLM model deployments, starts/stops them via their configured container
// commands, probes liveness, and exposes lifecycle control plus a bounded
// tool-calling chat endpoint over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tarsy-labs/mlm/pkg/api"
	"github.com/tarsy-labs/mlm/pkg/config"
	"github.com/tarsy-labs/mlm/pkg/container"
	"github.com/tarsy-labs/mlm/pkg/events"
	"github.com/tarsy-labs/mlm/pkg/health"
	"github.com/tarsy-labs/mlm/pkg/lifecycle"
	"github.com/tarsy-labs/mlm/pkg/memhost"
	"github.com/tarsy-labs/mlm/pkg/tool"
	"github.com/tarsy-labs/mlm/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory containing models.yaml")
	flag.Parse()

	setupLogging()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	slog.Info("starting mlm", "version", version.Full(), "config_dir", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize catalog: %v", err)
	}

	driver := container.NewExecDriver(getEnv("CONTAINER_RUNTIME", "docker"), catalog.Defaults.ContainerDriverTimeout)
	guard := memhost.New(memhost.GopsutilReader{}, catalog.Defaults.DefaultMinFreeGB, catalog.Defaults.SafetyMarginGB)
	prober := health.NewHTTPProber()
	history := health.NewHistory()

	eventsManager := events.NewManager(5 * time.Second)

	engine := lifecycle.New(catalog, driver, guard, prober, catalog.Server.ModelEndpointHost, eventsManager, history)

	resolver := api.NewModelResolver(engine, catalog.Server.ModelEndpointHost)
	var search *tool.SearchClient
	if catalog.Server.SearchServiceURL != "" {
		search = tool.NewSearchClient(catalog.Server.SearchServiceURL, catalog.Defaults.SearchCallTimeout)
	}
	var sandbox *tool.SandboxClient
	if catalog.Server.SandboxServiceURL != "" {
		sandbox = tool.NewSandboxClient(catalog.Server.SandboxServiceURL, catalog.Defaults.SandboxCallTimeout)
	}
	orchestrator := tool.New(resolver, search, sandbox, tool.Config{
		MaxIterations:           catalog.Defaults.MaxToolIterations,
		ResultTruncateChars:     catalog.Defaults.ToolResultTruncateChars,
		CompactionRatio:         catalog.Defaults.ContextCompactionRatio,
		SummaryKeepLastMessages: catalog.Defaults.SummaryKeepLastMessages,
		SearchTimeout:           catalog.Defaults.SearchCallTimeout,
		SandboxTimeout:          catalog.Defaults.SandboxCallTimeout,
		MaxOutputTokens:         catalog.Defaults.MaxOutputTokens,
	})

	server := api.NewServer(engine, eventsManager, orchestrator, catalog.Server.AllowedOrigins)

	addr := ":" + catalog.Server.HTTPPort
	if err := server.Start(ctx, addr, 10*time.Second); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("api server exited with error: %v", err)
	}

	slog.Info("mlm shut down cleanly")
}

func setupLogging() {
	level := slog.LevelInfo
	if getEnv("LOG_LEVEL", "") == "debug" {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if getEnv("LOG_FORMAT", "text") == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}
