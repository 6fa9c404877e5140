package config

import (
    "fmt"
    "strings"
    "time"

    "github.com/spf13/viper"
)

// Config is the complete application configuration: an explicit,
// strictly-unmarshaled record in place of the source's free-form
// option bags.
type Config struct {
    App         AppConfig         `mapstructure:"app"`
    Database    DatabaseConfig    `mapstructure:"database"`
    Redis       RedisConfig       `mapstructure:"redis"`
    Directory   DirectoryConfig   `mapstructure:"directory"`
    TableSync   TableSyncConfig   `mapstructure:"tablesync"`
    Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
    Security    SecurityConfig    `mapstructure:"security"`
    Performance PerformanceConfig `mapstructure:"performance"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
    Name        string `mapstructure:"name"`
    Version     string `mapstructure:"version"`
    Environment string `mapstructure:"environment"`
    Debug       bool   `mapstructure:"debug"`
}

// DatabaseConfig holds the default database pool (internal/db) that
// backs the run-history table and the embedded migrations. Table-sync
// jobs never use it: each job dials its own source_dsn and dest_dsn.
type DatabaseConfig struct {
    Driver          string        `mapstructure:"driver"`
    Host            string        `mapstructure:"host"`
    Port            int           `mapstructure:"port"`
    Username        string        `mapstructure:"username"`
    Password        string        `mapstructure:"password"`
    Database        string        `mapstructure:"database"`
    MaxOpenConns    int           `mapstructure:"max_open_conns"`
    MaxIdleConns    int           `mapstructure:"max_idle_conns"`
    ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
    RetryAttempts   int           `mapstructure:"retry_attempts"`
    RetryDelay      time.Duration `mapstructure:"retry_delay"`
    Charset         string        `mapstructure:"charset"`
}

// RedisConfig backs the optional directory search-result cache
// (internal/db/cache.go).
type RedisConfig struct {
    Host         string        `mapstructure:"host"`
    Port         int           `mapstructure:"port"`
    Password     string        `mapstructure:"password"`
    DB           int           `mapstructure:"db"`
    PoolSize     int           `mapstructure:"pool_size"`
    MinIdleConns int           `mapstructure:"min_idle_conns"`
    MaxRetries   int           `mapstructure:"max_retries"`
    DialTimeout  time.Duration `mapstructure:"dial_timeout"`
    ReadTimeout  time.Duration `mapstructure:"read_timeout"`
    WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DirectoryConfig holds the construction-time options for the
// directory client.
type DirectoryConfig struct {
    User     string        `mapstructure:"user"`
    Password string        `mapstructure:"password"`
    Domain   string        `mapstructure:"domain"`
    Server   string        `mapstructure:"server"`
    Port     int           `mapstructure:"port"`
    SSL      bool          `mapstructure:"ssl"`
    Timeout  time.Duration `mapstructure:"timeout"`
    PageSize int           `mapstructure:"pagesize"`
    Debug    bool          `mapstructure:"debug"`
    BaseDN   string        `mapstructure:"basedn"`
    UseGC    bool          `mapstructure:"use_gc"`
}

// TableSyncConfig holds every configured reconciliation job.
type TableSyncConfig struct {
    Jobs []TableSyncJobConfig `mapstructure:"jobs"`
}

// TableSyncJobConfig describes one reconciliation job: where each side
// lives and the knobs applied to the destination.
type TableSyncJobConfig struct {
    Name string `mapstructure:"name"`

    SourceDriver string `mapstructure:"source_driver"`
    SourceDSN    string `mapstructure:"source_dsn"`
    DestDriver   string `mapstructure:"dest_driver"`
    DestDSN      string `mapstructure:"dest_dsn"`

    Table string `mapstructure:"table"`
    Alias string `mapstructure:"alias"`
    Where string `mapstructure:"where"`

    UniqueKeys [][]string        `mapstructure:"unique_keys"`
    ExclCols   []string          `mapstructure:"excl_cols"`
    MaskCols   map[string]string `mapstructure:"mask_cols"`

    MaxInserts int  `mapstructure:"max_inserts"`
    MaxDeletes int  `mapstructure:"max_deletes"`
    Force      bool `mapstructure:"force"`
    DryRun     bool `mapstructure:"dry_run"`
    NoDups     bool `mapstructure:"no_dups"`
    Debug      bool `mapstructure:"debug"`
}

// MonitoringConfig holds monitoring and observability configuration.
type MonitoringConfig struct {
    Metrics MetricsConfig `mapstructure:"metrics"`
    Health  HealthConfig  `mapstructure:"health"`
    Logging LoggingConfig `mapstructure:"logging"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
    Enabled   bool   `mapstructure:"enabled"`
    Port      int    `mapstructure:"port"`
    Path      string `mapstructure:"path"`
    Namespace string `mapstructure:"namespace"`
    Subsystem string `mapstructure:"subsystem"`
}

// HealthConfig holds health check configuration.
type HealthConfig struct {
    Enabled       bool          `mapstructure:"enabled"`
    Port          int           `mapstructure:"port"`
    LivenessPath  string        `mapstructure:"liveness_path"`
    ReadinessPath string        `mapstructure:"readiness_path"`
    CheckInterval time.Duration `mapstructure:"check_interval"`
    CheckTimeout  time.Duration `mapstructure:"check_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
    Level  string        `mapstructure:"level"`
    Format string        `mapstructure:"format"`
    Output string        `mapstructure:"output"`
    File   FileLogConfig `mapstructure:"file"`
}

// FileLogConfig holds file-based logging configuration.
type FileLogConfig struct {
    Enabled    bool   `mapstructure:"enabled"`
    Path       string `mapstructure:"path"`
    MaxSize    int    `mapstructure:"max_size"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAge     int    `mapstructure:"max_age"`
    Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
    TLS TLSConfig `mapstructure:"tls"`
    API APIConfig `mapstructure:"api"`
}

// TLSConfig holds TLS configuration for the health/metrics endpoints.
type TLSConfig struct {
    Enabled            bool   `mapstructure:"enabled"`
    CertFile           string `mapstructure:"cert_file"`
    KeyFile            string `mapstructure:"key_file"`
    InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// APIConfig holds health/metrics API configuration.
type APIConfig struct {
    Enabled bool `mapstructure:"enabled"`
    Port    int  `mapstructure:"port"`
}

// PerformanceConfig holds performance tuning configuration.
type PerformanceConfig struct {
    WorkerPoolSize int `mapstructure:"worker_pool_size"`
    QueueSize      int `mapstructure:"queue_size"`
    BatchSize      int `mapstructure:"batch_size"`
}

// Load loads configuration from file and environment, rejecting
// unrecognized keys via viper's strict unmarshal.
func Load(configFile string) (*Config, error) {
    if configFile != "" {
        viper.SetConfigFile(configFile)
    } else {
        viper.SetConfigName("config")
        viper.SetConfigType("yaml")
        viper.AddConfigPath("./configs")
        viper.AddConfigPath("/etc/idm-infra")
        viper.AddConfigPath(".")
    }

    viper.SetEnvPrefix("IDM_INFRA")
    viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
    viper.AutomaticEnv()

    setDefaults()

    if err := viper.ReadInConfig(); err != nil {
        if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
            return nil, fmt.Errorf("failed to read config file: %w", err)
        }
    }

    var cfg Config
    if err := viper.UnmarshalExact(&cfg); err != nil {
        return nil, fmt.Errorf("failed to unmarshal config: %w", err)
    }

    if err := cfg.Validate(); err != nil {
        return nil, fmt.Errorf("invalid configuration: %w", err)
    }

    return &cfg, nil
}

func setDefaults() {
    viper.SetDefault("app.name", "idm-infra")
    viper.SetDefault("app.version", "1.0.0")
    viper.SetDefault("app.environment", "development")
    viper.SetDefault("app.debug", false)

    viper.SetDefault("database.driver", "mysql")
    viper.SetDefault("database.host", "localhost")
    viper.SetDefault("database.port", 3306)
    viper.SetDefault("database.max_open_conns", 25)
    viper.SetDefault("database.max_idle_conns", 5)
    viper.SetDefault("database.conn_max_lifetime", "5m")
    viper.SetDefault("database.retry_attempts", 3)
    viper.SetDefault("database.retry_delay", "1s")
    viper.SetDefault("database.charset", "utf8mb4")

    viper.SetDefault("redis.host", "localhost")
    viper.SetDefault("redis.port", 6379)
    viper.SetDefault("redis.pool_size", 10)
    viper.SetDefault("redis.min_idle_conns", 5)
    viper.SetDefault("redis.max_retries", 3)
    viper.SetDefault("redis.dial_timeout", "5s")
    viper.SetDefault("redis.read_timeout", "3s")
    viper.SetDefault("redis.write_timeout", "3s")

    viper.SetDefault("directory.ssl", true)
    viper.SetDefault("directory.port", 0)
    viper.SetDefault("directory.timeout", "60s")
    viper.SetDefault("directory.pagesize", 25)
    viper.SetDefault("directory.use_gc", false)

    viper.SetDefault("monitoring.metrics.enabled", true)
    viper.SetDefault("monitoring.metrics.port", 9090)
    viper.SetDefault("monitoring.metrics.path", "/metrics")
    viper.SetDefault("monitoring.health.enabled", true)
    viper.SetDefault("monitoring.health.port", 8080)
    viper.SetDefault("monitoring.health.liveness_path", "/healthz")
    viper.SetDefault("monitoring.health.readiness_path", "/ready")
    viper.SetDefault("monitoring.logging.level", "info")
    viper.SetDefault("monitoring.logging.format", "json")
    viper.SetDefault("monitoring.logging.output", "stdout")

    viper.SetDefault("security.api.enabled", true)
    viper.SetDefault("security.api.port", 8081)

    viper.SetDefault("performance.worker_pool_size", 20)
    viper.SetDefault("performance.queue_size", 200)
    viper.SetDefault("performance.batch_size", 50)
}

// Validate performs the cross-field checks that can't be expressed as
// a plain default.
func (c *Config) Validate() error {
    if c.Directory.Domain == "" {
        return fmt.Errorf("directory domain is required")
    }
    if c.Monitoring.Metrics.Enabled && (c.Monitoring.Metrics.Port <= 0 || c.Monitoring.Metrics.Port > 65535) {
        return fmt.Errorf("invalid metrics port: %d", c.Monitoring.Metrics.Port)
    }
    if c.Monitoring.Health.Enabled && (c.Monitoring.Health.Port <= 0 || c.Monitoring.Health.Port > 65535) {
        return fmt.Errorf("invalid health port: %d", c.Monitoring.Health.Port)
    }
    for _, job := range c.TableSync.Jobs {
        if job.Table == "" {
            return fmt.Errorf("tablesync job %q: table is required", job.Name)
        }
        if job.SourceDSN == "" || job.DestDSN == "" {
            return fmt.Errorf("tablesync job %q: source_dsn and dest_dsn are required", job.Name)
        }
    }
    return nil
}

// GetDSN returns the default database connection string.
func (c *DatabaseConfig) GetDSN() string {
    charset := c.Charset
    if charset == "" {
        charset = "utf8mb4"
    }
    return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=true&loc=Local",
        c.Username, c.Password, c.Host, c.Port, c.Database, charset)
}

// GetRedisAddr returns the Redis address.
func (c *RedisConfig) GetRedisAddr() string {
    return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction returns true if running in production environment.
func (c *AppConfig) IsProduction() bool {
    return strings.ToLower(c.Environment) == "production"
}

// IsDevelopment returns true if running in development environment.
func (c *AppConfig) IsDevelopment() bool {
    return strings.ToLower(c.Environment) == "development"
}
