package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aevon-lab/aevon-analytics/internal/aggregation"
	"github.com/aevon-lab/aevon-analytics/internal/analytics"
	corecfg "github.com/aevon-lab/aevon-analytics/internal/core/config"
	"github.com/aevon-lab/aevon-analytics/internal/join"
	"github.com/aevon-lab/aevon-analytics/internal/remote"
	"github.com/aevon-lab/aevon-analytics/internal/schema"
	schemaapi "github.com/aevon-lab/aevon-analytics/internal/schema/api"
	"github.com/aevon-lab/aevon-analytics/internal/schema/formats/protobuf"
	"github.com/aevon-lab/aevon-analytics/internal/schema/formats/yaml"
	schemaStorage "github.com/aevon-lab/aevon-analytics/internal/schema/storage"
	"github.com/aevon-lab/aevon-analytics/internal/server"
)

func main() {
	configPath := flag.String("config", "aevon.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"remote", cfg.Remote.BaseURL,
		"schema_source", cfg.Schema.SourceType,
		"workers", cfg.Workers.Concurrency,
	)

	// 2. Initialize Remote Source (HTTP + retry + pagination)
	var tokens remote.TokenProvider
	if cfg.Remote.AuthToken != "" {
		tokens = remote.StaticToken(cfg.Remote.AuthToken)
	}
	source, err := remote.NewHTTPSource(remote.HTTPOptions{
		BaseURL:     cfg.Remote.BaseURL,
		Tokens:      tokens,
		MaxPageSize: cfg.Remote.MaxPageSize,
	})
	if err != nil {
		slog.Error("Failed to initialize remote source", "error", err)
		os.Exit(1)
	}
	retrier := remote.NewRetrier(source, remote.RetryPolicy{
		MaxRetries:     cfg.Remote.MaxRetries,
		BaseBackoff:    cfg.Remote.BaseBackoff,
		MaxBackoff:     cfg.Remote.MaxBackoff,
		AttemptTimeout: cfg.Remote.RequestTimeout,
	})
	pager := remote.NewPager(retrier)

	// 3. Initialize Schema Registry (optional)
	var registry *schema.Registry
	if cfg.Schema.SchemaEnabled() {
		formatRegistry := schema.NewFormatRegistry()
		formatRegistry.RegisterFormat(schema.FormatProtobuf, protobuf.NewCompiler())
		formatRegistry.RegisterFormat(schema.FormatYaml, yaml.NewCompiler())

		repo := schemaStorage.NewFileSystemRepository(cfg.Schema.Path)
		registry = schema.NewRegistryWithCache(repo, formatRegistry, cfg.Schema.CacheCapacity)
		slog.Info("Schema registry initialized", "path", cfg.Schema.Path, "formats", formatRegistry.SupportedFormats())
	} else {
		slog.Info("Schema registry disabled by config; joins plan without metadata")
	}

	// 4. Initialize Aggregator and Joiner. A disabled registry must reach them
	// as an untyped nil interface.
	var (
		resolver aggregation.EntityResolver
		provider join.SchemaProvider
	)
	if registry != nil {
		resolver = registry
		provider = registry
	}

	aggregator := aggregation.New(pager, resolver, aggregation.Options{
		DefaultRecordCap:  cfg.Aggregation.DefaultRecordCap,
		SamplingThreshold: cfg.Aggregation.SamplingThreshold,
		SampleSize:        cfg.Aggregation.SampleSize,
		SampleChunks:      cfg.Aggregation.SampleChunks,
	})
	joiner := join.New(pager, provider, join.Options{
		DefaultMaxRecords:   cfg.Join.DefaultMaxRecords,
		InFilterThreshold:   cfg.Join.InFilterThreshold,
		SecondaryMultiplier: cfg.Join.SecondaryMultiplier,
		PrefixSeparator:     cfg.Join.FieldPrefixSeparator,
	})

	// 5. Initialize Analytics API
	analyticsSvc := analytics.NewService(aggregator, joiner, cfg.Workers.Concurrency)

	// 6. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), source, cfg.Server.Mode)
	analyticsSvc.RegisterRoutes(srv.Engine)
	schemaapi.NewService(registry).RegisterRoutes(srv.Engine)

	// 7. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
