package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/aribaflow/pkg/config"
	"github.com/ajitpratap0/aribaflow/pkg/connector/registry"
	"github.com/ajitpratap0/aribaflow/pkg/json"
	"github.com/ajitpratap0/aribaflow/pkg/logger"

	// Import all available sources to register them
	_ "github.com/ajitpratap0/aribaflow/pkg/connector/sources"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "aribaflow",
		Short: "AribaFlow - SAP Ariba analytics extraction connector",
		Long: `AribaFlow extracts analytical reporting data from SAP Ariba.
It discovers the schema of a reporting view template, runs the asynchronous
extraction job protocol, and streams typed records as newline-delimited JSON.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("AribaFlow v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "connectors",
		Short: "List available source connectors",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available Source Connectors:")
			for _, source := range registry.ListSources() {
				fmt.Printf("  - %s\n", source)
			}
		},
	})

	var discoverConfigFile, discoverLogLevel string
	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Discover the schema of the configured view template",
		Long: `Discover reads field metadata for the configured view template and
prints the resulting schema as JSON.

Example:
  aribaflow discover --config config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(discoverConfigFile, discoverLogLevel)
		},
	}
	discoverCmd.Flags().StringVarP(&discoverConfigFile, "config", "c", "", "Path to configuration YAML file (required)")
	discoverCmd.Flags().StringVar(&discoverLogLevel, "log-level", "error", "Log level (debug, info, warn, error)")
	_ = discoverCmd.MarkFlagRequired("config")
	root.AddCommand(discoverCmd)

	var extractConfigFile, extractOutputFile, extractLogLevel string
	var extractTimeout time.Duration
	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Run an extraction and stream records as NDJSON",
		Long: `Extract runs the asynchronous job protocol against the configured view
template and writes one JSON record per line.

Example:
  aribaflow extract --config config.yaml --output records.ndjson`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(extractConfigFile, extractOutputFile, extractLogLevel, extractTimeout)
		},
	}
	extractCmd.Flags().StringVarP(&extractConfigFile, "config", "c", "", "Path to configuration YAML file (required)")
	extractCmd.Flags().StringVarP(&extractOutputFile, "output", "o", "", "Output file path (default: stdout)")
	extractCmd.Flags().StringVar(&extractLogLevel, "log-level", "error", "Log level (debug, info, warn, error)")
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", 6*time.Hour, "Extraction timeout")
	_ = extractCmd.MarkFlagRequired("config")
	root.AddCommand(extractCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads and validates a connector config from a YAML file.
func loadConfig(filename, logLevel string) (*config.Config, error) {
	cfg := config.NewConfig("ariba")
	if err := config.Load(filename, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", filename, err)
	}
	if logLevel != "" {
		cfg.Observability.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: "console",
	})
}

func runDiscover(configFile, logLevel string) error {
	cfg, err := loadConfig(configFile, logLevel)
	if err != nil {
		return err
	}
	if err := initLogger(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	source, err := registry.CreateSource("ariba", cfg)
	if err != nil {
		return fmt.Errorf("failed to create source connector: %w", err)
	}

	ctx := context.Background()
	if err := source.Initialize(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize source: %w", err)
	}
	defer func() { _ = source.Close(ctx) }()

	schema, err := source.Discover(ctx)
	if err != nil {
		return fmt.Errorf("schema discovery failed: %w", err)
	}

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render schema: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runExtract(configFile, outputFile, logLevel string, timeout time.Duration) error {
	cfg, err := loadConfig(configFile, logLevel)
	if err != nil {
		return err
	}
	if err := initLogger(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	log := logger.Get().With(
		zap.String("component", "aribaflow-cli"),
		zap.String("view_template", cfg.Extraction.ViewTemplateName),
	)

	source, err := registry.CreateSource("ariba", cfg)
	if err != nil {
		return fmt.Errorf("failed to create source connector: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := source.Initialize(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize source: %w", err)
	}
	defer func() {
		if err := source.Close(context.Background()); err != nil {
			log.Warn("failed to close source", zap.Error(err))
		}
	}()

	out := os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file %s: %w", outputFile, err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	log.Info("starting extraction",
		zap.String("config", configFile),
		zap.Int("workers", cfg.Performance.GetWorkers()))

	stream, err := source.Read(ctx)
	if err != nil {
		return fmt.Errorf("extraction failed to start: %w", err)
	}

	startTime := time.Now()
	var written int64
	for record := range stream.Records {
		line, err := json.Marshal(record.Data)
		record.Release()
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		if _, err := fmt.Fprintf(out, "%s\n", line); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
		written++
	}

	for err := range stream.Errors {
		if err != nil {
			return fmt.Errorf("extraction failed: %w", err)
		}
	}

	duration := time.Since(startTime)
	log.Info("extraction completed",
		zap.Int64("records_written", written),
		zap.Duration("duration", duration),
		zap.Float64("records_per_second", float64(written)/duration.Seconds()))

	return nil
}
