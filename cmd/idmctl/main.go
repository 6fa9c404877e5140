package main

import (
    "fmt"
    "os"

    "github.com/spf13/cobra"

    "github.com/mst-edu/idm-infra/internal/config"
    "github.com/mst-edu/idm-infra/internal/metrics"
    "github.com/mst-edu/idm-infra/pkg/logger"
)

var (
    configFile string
    verbose    bool

    cfg        *config.Config
    appMetrics *metrics.PrometheusMetrics
)

func main() {
    rootCmd := &cobra.Command{
        Use:   "idmctl",
        Short: "Directory administration and table-sync control",
        Long:  "Administers a Microsoft Active Directory domain and drives SQL table-sync reconciliation jobs",
        PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
            return loadConfig()
        },
    }

    rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path")
    rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

    rootCmd.AddCommand(
        createDirectoryCommand(),
        createTableSyncCommand(),
        createServeCommand(),
    )

    if err := rootCmd.Execute(); err != nil {
        fmt.Fprintf(os.Stderr, "Error: %v\n", err)
        os.Exit(1)
    }
}

func loadConfig() error {
    var err error
    cfg, err = config.Load(configFile)
    if err != nil {
        return fmt.Errorf("failed to load config: %w", err)
    }

    logConfig := logger.Config{
        Level:  cfg.Monitoring.Logging.Level,
        Format: cfg.Monitoring.Logging.Format,
        Output: cfg.Monitoring.Logging.Output,
        File: logger.FileConfig{
            Enabled:    cfg.Monitoring.Logging.File.Enabled,
            Path:       cfg.Monitoring.Logging.File.Path,
            MaxSize:    cfg.Monitoring.Logging.File.MaxSize,
            MaxBackups: cfg.Monitoring.Logging.File.MaxBackups,
            MaxAge:     cfg.Monitoring.Logging.File.MaxAge,
            Compress:   cfg.Monitoring.Logging.File.Compress,
        },
    }
    if verbose {
        logConfig.Level = "debug"
    }
    if err := logger.Init(logConfig); err != nil {
        return fmt.Errorf("failed to initialize logger: %w", err)
    }

    if cfg.Monitoring.Metrics.Enabled {
        appMetrics = metrics.NewPrometheusMetrics()
    }
    return nil
}
