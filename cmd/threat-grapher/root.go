package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/ShehabAgain/threat-grapher/cmd/threat-grapher/internal"
	"github.com/ShehabAgain/threat-grapher/internal/config"
	"github.com/ShehabAgain/threat-grapher/internal/observability"
)

// appConfig, appLogger, and tracerProvider are populated by loadConfig
// before any command runs.
var (
	appConfig      *config.Config
	appLogger      *slog.Logger
	tracerProvider *sdktrace.TracerProvider
)

var rootCmd = &cobra.Command{
	Use:   "threat-grapher",
	Short: "threat-grapher - security log graphing and detection coverage analysis",
	Long: `threat-grapher ingests heterogeneous security-event logs from a corpus
of labeled attack-technique exercises, reconstructs entity-relationship
graphs per log, and cross-references the corpus against the ATT&CK
catalog to report detection coverage and 0-5 visibility scores.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Flush pending spans even when the run context was cancelled.
	defer func() {
		if err := observability.ShutdownTracing(context.Background(), tracerProvider); err != nil {
			slog.Warn("trace shutdown failed", "error", err)
		}
	}()

	return rootCmd.ExecuteContext(ctx)
}

// loadConfig is called before any command runs to load configuration
func loadConfig(cmd *cobra.Command, args []string) error {
	flags, err := ParseGlobalFlags(cmd)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "invalid flags", err)
	}

	configFile := flags.ConfigFile
	if configFile == "" {
		configFile = os.Getenv("THREAT_GRAPHER_CONFIG")
	}
	if configFile == "" {
		configFile = defaultConfigPath()
	}

	cfg, err := config.NewLoader(config.NewValidator()).LoadWithDefaults(configFile)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to load configuration", err)
	}

	// Flag overrides win over file and defaults.
	if flags.DataDir != "" {
		cfg.Core.DataDir = flags.DataDir
	}
	if flags.IsVerbose() {
		cfg.Logging.Level = "debug"
	}
	if flags.Quiet {
		cfg.Logging.Level = "error"
	}

	appConfig = cfg
	appLogger = observability.NewLogger(cfg.Logging)
	slog.SetDefault(appLogger)

	tp, err := observability.InitTracing(cmd.Context(), cfg.Tracing)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to initialize tracing", err)
	}
	tracerProvider = tp
	return nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".threat-grapher", "config.yaml")
}

func init() {
	RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(coverageCmd)
	rootCmd.AddCommand(visibilityCmd)
	rootCmd.AddCommand(layerCmd)
	rootCmd.AddCommand(versionCmd)
}
