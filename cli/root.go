// Package cli provides the command-line entrypoint for the workspace graph
// mediator: configuration loading, service wiring, HTTP server startup and
// graceful shutdown.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kestrel-labs/workspacegraph/internal/cache"
	"github.com/kestrel-labs/workspacegraph/internal/config"
	"github.com/kestrel-labs/workspacegraph/internal/csrftoken"
	"github.com/kestrel-labs/workspacegraph/internal/decode"
	"github.com/kestrel-labs/workspacegraph/internal/entity"
	"github.com/kestrel-labs/workspacegraph/internal/gateway"
	"github.com/kestrel-labs/workspacegraph/internal/httptransport"
	"github.com/kestrel-labs/workspacegraph/internal/logging"
	"github.com/kestrel-labs/workspacegraph/internal/maintainer"
	"github.com/kestrel-labs/workspacegraph/internal/router"
	"github.com/kestrel-labs/workspacegraph/internal/statecapture"
	"github.com/kestrel-labs/workspacegraph/internal/tracing"
	"github.com/kestrel-labs/workspacegraph/internal/transportecho"
	"github.com/kestrel-labs/workspacegraph/version"
)

// cfgFile holds the path to an optional YAML config file overlaid on top
// of the WGM_-prefixed environment variables.
var cfgFile string

// RootCmd is the mediator's single command: there is no subcommand tree,
// only flags controlling where configuration comes from.
var RootCmd = &cobra.Command{
	Use:   "workspacegraph-mediator",
	Short: "serves the workspace graph mediation API",
	Long: `workspacegraph-mediator synthesizes bidirectional relationships and a
deduplicated graph view from a paginated upstream workspace API, caching and
serving it through a versioned REST API with delta-aware updates.`,
	Run: runServer,
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "optional YAML config file overlaid on environment configuration")
}

func initConfig() {
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("using config file:", viper.ConfigFileUsed())
	}
}

// runServer wires every component together and blocks until a termination
// signal triggers graceful shutdown.
func runServer(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	baseLogger := logging.New(logging.Config{
		Level:      logging.LogLevel(cfg.LogLevel),
		JSONFormat: true,
	})
	logger := logging.ServiceLogger(baseLogger, cfg.Tracing.ServiceName, version.GetServiceVersion())

	ctx := context.Background()
	tracerProvider, err := tracing.Init(ctx, tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version.GetServiceVersion(),
		SamplingRatio:  cfg.Tracing.SamplingRatio,
		Environment:    cfg.Tracing.Environment,
	})
	if err != nil {
		log.Fatalf("initializing tracing: %v", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("tracer provider shutdown failed")
		}
	}()

	transport := httptransport.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, cfg.Upstream.RequestTimeout)
	gw := gateway.New(transport, gateway.Config{
		RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
		BurstSize:         cfg.Upstream.BurstSize,
		MaxRetries:        cfg.Upstream.MaxRetries,
		InitialBackoff:    cfg.Upstream.InitialBackoff,
		Strategy:          gateway.BackoffStrategy(cfg.Upstream.BackoffStrategy),
	}, logger)
	dec := decode.New(gw)

	var backend cache.Backend
	if cfg.Cache.RedisURL != "" {
		redisBackend, err := cache.NewRedisBackend(cfg.Cache.RedisURL)
		if err != nil {
			log.Fatalf("connecting to cache redis tier: %v", err)
		}
		defer redisBackend.Close()
		backend = redisBackend
	}
	coordinator := cache.New(cache.Config{
		MaxEntries: cfg.Cache.MaxEntries,
		DefaultTTL: cfg.Cache.TTL,
		HistorySize: 200,
	}, backend)

	maint := maintainer.New(gw, dec, logger)
	capture := statecapture.New(gw, dec, cfg.Database, logger)

	characterRouter := router.New(gw, dec, coordinator, maint, capture, logger, router.KindSpec[entity.Character]{
		Kind:       entity.KindCharacter,
		DatabaseID: cfg.Database.CharacterDBID,
		Transform:  entity.TransformCharacter,
		Encode:     entity.EncodeCharacter,
	})
	elementRouter := router.New(gw, dec, coordinator, maint, capture, logger, router.KindSpec[entity.Element]{
		Kind:       entity.KindElement,
		DatabaseID: cfg.Database.ElementDBID,
		Transform:  entity.TransformElement,
		Encode:     entity.EncodeElement,
	})
	puzzleRouter := router.New(gw, dec, coordinator, maint, capture, logger, router.KindSpec[entity.Puzzle]{
		Kind:       entity.KindPuzzle,
		DatabaseID: cfg.Database.PuzzleDBID,
		Transform:  entity.TransformPuzzle,
		Encode:     entity.EncodePuzzle,
	})
	timelineRouter := router.New(gw, dec, coordinator, maint, capture, logger, router.KindSpec[entity.TimelineEvent]{
		Kind:       entity.KindTimelineEvent,
		DatabaseID: cfg.Database.TimelineEventDBID,
		Transform:  entity.TransformTimelineEvent,
		Encode:     entity.EncodeTimelineEvent,
	})
	graphService := router.NewGraphService(gw, dec, coordinator, logger,
		cfg.Database.CharacterDBID, cfg.Database.ElementDBID, cfg.Database.PuzzleDBID, cfg.Database.TimelineEventDBID)

	var csrfStore *csrftoken.Store
	if cfg.Server.APIKey != "" {
		csrfStore = csrftoken.New(30*time.Minute, 5*time.Minute)
		csrfStore.Start()
		defer csrfStore.Stop()
	}

	e := transportecho.NewEchoServer(transportecho.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		APIKey:          cfg.Server.APIKey,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RateLimit:       20,
	}, logger, csrfStore)

	transportecho.RegisterEntityRoutes(e, "/characters", entity.KindCharacter, characterRouter)
	transportecho.RegisterEntityRoutes(e, "/elements", entity.KindElement, elementRouter)
	transportecho.RegisterEntityRoutes(e, "/puzzles", entity.KindPuzzle, puzzleRouter)
	transportecho.RegisterEntityRoutes(e, "/timeline-events", entity.KindTimelineEvent, timelineRouter)
	transportecho.RegisterGraphRoute(e, graphService)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		logger.WithField("addr", addr).Info("workspace graph mediator starting")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := transportecho.GracefulShutdown(context.Background(), e, cfg.Server.ShutdownTimeout); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	logger.Info("shutdown complete")
}
