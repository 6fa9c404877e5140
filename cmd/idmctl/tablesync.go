package main

import (
    "context"
    "database/sql"
    "fmt"
    "time"

    "github.com/spf13/cobra"

    "github.com/mst-edu/idm-infra/internal/config"
    "github.com/mst-edu/idm-infra/internal/db"
    "github.com/mst-edu/idm-infra/internal/metrics"
    "github.com/mst-edu/idm-infra/internal/sqladapter"
    "github.com/mst-edu/idm-infra/internal/tablesync"
    "github.com/mst-edu/idm-infra/pkg/auditsink"
    "github.com/mst-edu/idm-infra/pkg/logger"
)

// dialectFor maps a configured driver name to its tablesync.Dialect.
func dialectFor(driver string) (tablesync.Dialect, bool) {
    switch driver {
    case sqladapter.DriverMySQL:
        return tablesync.MySQLDialect{}, true
    case sqladapter.DriverOracle:
        return tablesync.OracleDialect{}, true
    default:
        return nil, false
    }
}

func findJob(name string) (config.TableSyncJobConfig, error) {
    for _, j := range cfg.TableSync.Jobs {
        if j.Name == name {
            return j, nil
        }
    }
    return config.TableSyncJobConfig{}, fmt.Errorf("no tablesync job named %q in configuration", name)
}

func buildReconciler(ctx context.Context, job config.TableSyncJobConfig) (*tablesync.Reconciler, func(), error) {
    sourceDialect, ok := dialectFor(job.SourceDriver)
    if !ok {
        return nil, nil, fmt.Errorf("unsupported source driver %q", job.SourceDriver)
    }
    destDialect, ok := dialectFor(job.DestDriver)
    if !ok {
        return nil, nil, fmt.Errorf("unsupported dest driver %q", job.DestDriver)
    }

    sourceSession, err := sqladapter.Open(ctx, job.SourceDriver, job.SourceDSN)
    if err != nil {
        return nil, nil, err
    }
    destSession, err := sqladapter.Open(ctx, job.DestDriver, job.DestDSN)
    if err != nil {
        sourceSession.Close()
        return nil, nil, err
    }

    exclCols := make(map[string]bool, len(job.ExclCols))
    for _, c := range job.ExclCols {
        exclCols[c] = true
    }

    closeAll := func() {
        sourceSession.Close()
        destSession.Close()
    }

    var m metrics.MetricsInterface
    if appMetrics != nil {
        m = appMetrics
    }

    source, err := tablesync.Init(ctx, tablesync.Config{
        Role:       tablesync.RoleSource,
        Read:       sourceSession,
        Table:      job.Table,
        Alias:      job.Alias,
        Where:      job.Where,
        UniqueKeys: job.UniqueKeys,
        ExclCols:   exclCols,
        MaskCols:   job.MaskCols,
        NoDups:     job.NoDups,
        Debug:      job.Debug,
        Dialect:    sourceDialect,
        MySQLBlob:  job.SourceDriver == sqladapter.DriverMySQL,
        JobName:    job.Name,
        Metrics:    m,
    })
    if err != nil {
        closeAll()
        return nil, nil, err
    }

    dest, err := tablesync.Init(ctx, tablesync.Config{
        Role:       tablesync.RoleDest,
        Read:       destSession,
        Table:      job.Table,
        Alias:      job.Alias,
        Where:      job.Where,
        UniqueKeys: job.UniqueKeys,
        ExclCols:   exclCols,
        MaskCols:   job.MaskCols,
        MaxInserts: job.MaxInserts,
        MaxDeletes: job.MaxDeletes,
        Force:      job.Force,
        DryRun:     job.DryRun,
        NoDups:     job.NoDups,
        Debug:      job.Debug,
        Dialect:    destDialect,
        MySQLBlob:  job.DestDriver == sqladapter.DriverMySQL,
        JobName:    job.Name,
        Metrics:    m,
        Audit:      auditsink.NewLoggerSink(),
    })
    if err != nil {
        closeAll()
        return nil, nil, err
    }

    return &tablesync.Reconciler{Source: source, Dest: dest}, closeAll, nil
}

func createTableSyncCommand() *cobra.Command {
    tsCmd := &cobra.Command{
        Use:   "tablesync",
        Short: "Run and inspect table-reconciliation jobs",
    }

    tsCmd.AddCommand(
        createTableSyncListCommand(),
        createTableSyncRunCommand(),
        createTableSyncMigrateCommand(),
    )
    return tsCmd
}

// defaultPool opens the default database pool from configuration; it
// backs the run-history table and the embedded schema migrations, not
// the reconciliation jobs themselves (those dial their own DSNs).
func defaultPool() (*db.DB, error) {
    dcfg := cfg.Database
    if dcfg.Database == "" {
        return nil, fmt.Errorf("no default database configured")
    }
    if err := db.Initialize(db.Config{
        Driver:          dcfg.Driver,
        Host:            dcfg.Host,
        Port:            dcfg.Port,
        Username:        dcfg.Username,
        Password:        dcfg.Password,
        Database:        dcfg.Database,
        MaxOpenConns:    dcfg.MaxOpenConns,
        MaxIdleConns:    dcfg.MaxIdleConns,
        ConnMaxLifetime: dcfg.ConnMaxLifetime,
        RetryAttempts:   dcfg.RetryAttempts,
        RetryDelay:      dcfg.RetryDelay,
    }); err != nil {
        return nil, err
    }
    return db.GetDB(), nil
}

func createTableSyncMigrateCommand() *cobra.Command {
    return &cobra.Command{
        Use:   "migrate",
        Short: "Apply the mirror-schema and run-history migrations to the default database",
        RunE: func(cmd *cobra.Command, args []string) error {
            pool, err := defaultPool()
            if err != nil {
                return err
            }
            if err := db.RunDatabaseMigrations(pool.DB); err != nil {
                return err
            }
            fmt.Printf("%s migrations applied\n", green("✓"))
            return nil
        },
    }
}

// recordRunHistory appends one row to tablesync_runs in the default
// database. History is best-effort: failures are logged, never
// propagated into the job result.
func recordRunHistory(ctx context.Context, job config.TableSyncJobConfig, started time.Time, summary tablesync.Summary, runErr error) {
    pool, err := defaultPool()
    if err != nil {
        logger.WithError(err).Debug("tablesync: run history not recorded")
        return
    }

    errText := sql.NullString{}
    if runErr != nil {
        errText = sql.NullString{String: runErr.Error(), Valid: true}
    }

    err = pool.Transaction(ctx, func(tx *sql.Tx) error {
        _, err := tx.ExecContext(ctx,
            `INSERT INTO tablesync_runs
             (job_name, started_at, finished_at, inserts, deletes, commits, hit_max_inserts, hit_max_deletes, error)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
            job.Name, started, started.Add(summary.Duration),
            summary.Dest.Inserts, summary.Dest.Deletes, summary.Dest.Commits,
            summary.Dest.HitMaxInserts, summary.Dest.HitMaxDeletes, errText,
        )
        return err
    })
    if err != nil {
        logger.WithError(err).Warn("tablesync: failed to record run history")
    }
}

func createTableSyncListCommand() *cobra.Command {
    return &cobra.Command{
        Use:   "list",
        Short: "List configured tablesync jobs",
        RunE: func(cmd *cobra.Command, args []string) error {
            if len(cfg.TableSync.Jobs) == 0 {
                fmt.Println("No tablesync jobs configured")
                return nil
            }
            for _, j := range cfg.TableSync.Jobs {
                fmt.Printf("%s\t%s -> %s\ttable=%s\n", j.Name, j.SourceDriver, j.DestDriver, j.Table)
            }
            return nil
        },
    }
}

func createTableSyncRunCommand() *cobra.Command {
    var (
        dryRun bool
        force  bool
    )

    cmd := &cobra.Command{
        Use:   "run <job-name>",
        Short: "Reconcile a destination table against its source",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            job, err := findJob(args[0])
            if err != nil {
                return err
            }
            if dryRun {
                job.DryRun = true
            }
            if force {
                job.Force = true
            }

            ctx := context.Background()
            reconciler, closeAll, err := buildReconciler(ctx, job)
            if err != nil {
                return err
            }
            defer closeAll()

            started := time.Now()
            summary, err := reconciler.Run(ctx)
            recordRunHistory(ctx, job, started, summary, err)
            if err != nil {
                fmt.Printf("%s job %q aborted: %v\n", red("✗"), job.Name, err)
                fmt.Printf("  inserts=%d deletes=%d (dest)\n", summary.Dest.Inserts, summary.Dest.Deletes)
                return err
            }

            fmt.Printf("%s job %q: inserts=%d deletes=%d commits=%d in %s\n",
                green("✓"), job.Name, summary.Dest.Inserts, summary.Dest.Deletes, summary.Dest.Commits,
                summary.Duration.Round(time.Millisecond))
            return nil
        },
    }

    cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute but do not execute mutations")
    cmd.Flags().BoolVar(&force, "force", false, "Override configured max_inserts/max_deletes caps")
    return cmd
}
