package main

import (
    "context"
    "fmt"
    "os"
    "os/signal"
    "syscall"

    "github.com/spf13/cobra"

    "github.com/mst-edu/idm-infra/internal/health"
    "github.com/mst-edu/idm-infra/pkg/logger"
)

// createServeCommand starts the liveness/readiness server and the
// Prometheus exporter so operators can watch bind health and job
// readiness between runs.
func createServeCommand() *cobra.Command {
    return &cobra.Command{
        Use:   "serve",
        Short: "Run health and metrics endpoints for operational monitoring",
        RunE: func(cmd *cobra.Command, args []string) error {
            // appMetrics is already constructed by loadConfig's
            // PersistentPreRunE when metrics are enabled; reuse it rather
            // than registering the same collectors twice.
            if appMetrics != nil {
                go func() {
                    if err := appMetrics.ServeHTTP(cfg.Monitoring.Metrics.Port); err != nil {
                        logger.WithError(err).Error("metrics server exited")
                    }
                }()
            }

            var healthSrv *health.HealthService
            if cfg.Monitoring.Health.Enabled {
                healthSrv = health.NewHealthService(cfg.Monitoring.Health.Port)
                healthSrv.RegisterLivenessCheck("process", health.CheckFunc(func(ctx context.Context) error {
                    return nil
                }))
                healthSrv.RegisterReadinessCheck("config", health.CheckFunc(func(ctx context.Context) error {
                    return cfg.Validate()
                }))
                // Readiness means the backends answer, not just that the
                // config parses: the default pool's background ping loop
                // for the database, a short-lived bind for the directory.
                if cfg.Database.Database != "" {
                    pool, err := defaultPool()
                    if err != nil {
                        logger.WithError(err).Warn("default database unavailable, readiness will report it")
                    }
                    healthSrv.RegisterReadinessCheck("database", health.CheckFunc(func(ctx context.Context) error {
                        if pool == nil {
                            return fmt.Errorf("default database pool never opened")
                        }
                        if !pool.IsHealthy() {
                            return fmt.Errorf("database ping failing")
                        }
                        return nil
                    }))
                }
                healthSrv.RegisterReadinessCheck("directory", health.CheckFunc(func(ctx context.Context) error {
                    c, err := directoryClient(ctx)
                    if err != nil {
                        return err
                    }
                    return c.Close()
                }))
                go func() {
                    if err := healthSrv.Start(); err != nil {
                        logger.WithError(err).Error("health server exited")
                    }
                }()
            }

            logger.Info("idmctl serve: health and metrics endpoints running")

            sigCh := make(chan os.Signal, 1)
            signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
            <-sigCh

            logger.Info("idmctl serve: shutting down")
            if healthSrv != nil {
                healthSrv.Stop()
            }
            return nil
        },
    }
}
