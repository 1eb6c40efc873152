package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ringdb/ringdb/pkg/codec"
	"github.com/ringdb/ringdb/pkg/config"
	"github.com/ringdb/ringdb/pkg/storage"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ringdb",
	Short: "RingDB - embedded time-series storage engine",
	Long: `RingDB is an embedded, append-only time-series storage engine.
Samples tagged by parameter id and timestamp are persisted into a ring of
fixed-size memory-mapped volumes and served through range queries.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("data-dir", "d", "./data", "Data directory for the storage instance")
	rootCmd.PersistentFlags().StringP("name", "n", "ringdb", "Storage instance base name")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (overrides flags)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
}

// loadConfig resolves the effective configuration from the config file or
// the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.LoadConfig(path)
	}
	cfg := config.DefaultConfig()
	cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
	cfg.BaseName, _ = cmd.Flags().GetString("name")
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
}

// openStorage opens the configured storage instance.
func openStorage(cfg *config.Config) (*storage.Storage, error) {
	return storage.Open(storage.Config{
		MetadataPath: cfg.MetadataPath(),
		TTL:          codec.Duration(cfg.MaxLateWrite.Nanoseconds()),
		MaxCacheSize: cfg.MaxCacheSize,
		Logger:       newLogger(cfg),
	})
}
