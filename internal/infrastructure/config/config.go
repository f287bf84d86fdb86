package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Sync      SyncConfig
	Webhook   WebhookConfig
	Monitor   MonitorConfig
	Providers ProvidersConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	TrustedProxies    []string
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
}

// SyncConfig holds sync orchestration settings
type SyncConfig struct {
	// InterCallDelay spaces sequential due-integration syncs so one
	// process does not burst multiple providers at once
	InterCallDelay time.Duration
	// RequestTimeout bounds every outbound provider call
	RequestTimeout time.Duration
	// MaxRetries is the retry budget for idempotent requests
	MaxRetries int
	// TokenRefreshBuffer refreshes tokens this long before expiry
	TokenRefreshBuffer time.Duration
	// FullSyncLookback bounds how far back a full sync re-pulls
	FullSyncLookback time.Duration
}

// WebhookConfig holds webhook ingestion settings
type WebhookConfig struct {
	// GraceWindow skips events younger than this in the pending sweep so
	// an in-flight delivery is not raced
	GraceWindow time.Duration
	// RetentionCeiling is the oldest an unprocessed event may be and
	// still be swept
	RetentionCeiling time.Duration
	// SweepBatchSize bounds one processPending pass
	SweepBatchSize int
	// DedupTTL is how long delivery ids are remembered for duplicate
	// suppression
	DedupTTL time.Duration
}

// MonitorConfig holds health monitoring and alerting settings
type MonitorConfig struct {
	Enabled       bool
	CycleInterval time.Duration
	// AlertWindow is the rolling window alert rules evaluate over
	AlertWindow time.Duration
	// ConsecutiveFailureThreshold triggers the high-severity sync alert
	ConsecutiveFailureThreshold int
	// LatencyThreshold triggers the medium-severity slow-probe alert
	LatencyThreshold time.Duration
	// StaleAfter triggers the high-severity stale alert when no probe has
	// passed for this long
	StaleAfter time.Duration
	// StuckWebhookDelay is how old an unprocessed event must be to count
	// toward the backlog alert
	StuckWebhookDelay time.Duration
	// StuckWebhookThreshold is the backlog size that raises the alert
	StuckWebhookThreshold int
	// AlertCooldown suppresses re-notifying the same alert key
	AlertCooldown time.Duration
	// LogRetention is how long sync and health logs are kept
	LogRetention time.Duration
	// NotifyURL, when set, receives alert JSON via POST
	NotifyURL string
}

// ProvidersConfig holds per-provider adapter settings
type ProvidersConfig struct {
	Shopify    ShopifyConfig
	Amazon     AmazonConfig
	QuickBooks QuickBooksConfig
}

// ShopifyConfig holds Shopify Admin API settings
type ShopifyConfig struct {
	Enabled       bool
	APIVersion    string
	WebhookSecret string
	PageSize      int
}

// AmazonConfig holds Amazon SP-API settings
type AmazonConfig struct {
	Enabled  bool
	Endpoint string
	AuthURL  string
	PageSize int
}

// QuickBooksConfig holds QuickBooks Online API settings
type QuickBooksConfig struct {
	Enabled      bool
	Endpoint     string
	AuthURL      string
	MinorVersion string
	PageSize     int
	// WebhookVerifier signs inbound webhook deliveries
	WebhookVerifier string
}

// StorageConfig holds S3-compatible object storage settings used for webhook
// payload archival
type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// UsePathStyle is required by most S3-compatible backends (MinIO, RustFS).
	UsePathStyle bool
}

// TelemetryConfig holds OpenTelemetry tracing settings
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	ProfilerEnabled   bool
	ProfilerAddress   string
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// MigrateURL returns the database URL in the form golang-migrate expects
func (c *DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password),
		c.Host, c.Port, c.DBName, c.SSLMode)
}

// Addr returns the Redis address in host:port form
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with SYNCBRIDGE_ prefix (e.g., SYNCBRIDGE_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("SYNCBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
		},
		Sync: SyncConfig{
			InterCallDelay:     v.GetDuration("sync.inter_call_delay"),
			RequestTimeout:     v.GetDuration("sync.request_timeout"),
			MaxRetries:         v.GetInt("sync.max_retries"),
			TokenRefreshBuffer: v.GetDuration("sync.token_refresh_buffer"),
			FullSyncLookback:   v.GetDuration("sync.full_sync_lookback"),
		},
		Webhook: WebhookConfig{
			GraceWindow:      v.GetDuration("webhook.grace_window"),
			RetentionCeiling: v.GetDuration("webhook.retention_ceiling"),
			SweepBatchSize:   v.GetInt("webhook.sweep_batch_size"),
			DedupTTL:         v.GetDuration("webhook.dedup_ttl"),
		},
		Monitor: MonitorConfig{
			Enabled:                     v.GetBool("monitor.enabled"),
			CycleInterval:               v.GetDuration("monitor.cycle_interval"),
			AlertWindow:                 v.GetDuration("monitor.alert_window"),
			ConsecutiveFailureThreshold: v.GetInt("monitor.consecutive_failure_threshold"),
			LatencyThreshold:            v.GetDuration("monitor.latency_threshold"),
			StaleAfter:                  v.GetDuration("monitor.stale_after"),
			StuckWebhookDelay:           v.GetDuration("monitor.stuck_webhook_delay"),
			StuckWebhookThreshold:       v.GetInt("monitor.stuck_webhook_threshold"),
			AlertCooldown:               v.GetDuration("monitor.alert_cooldown"),
			LogRetention:                v.GetDuration("monitor.log_retention"),
			NotifyURL:                   v.GetString("monitor.notify_url"),
		},
		Providers: ProvidersConfig{
			Shopify: ShopifyConfig{
				Enabled:       v.GetBool("providers.shopify.enabled"),
				APIVersion:    v.GetString("providers.shopify.api_version"),
				WebhookSecret: v.GetString("providers.shopify.webhook_secret"),
				PageSize:      v.GetInt("providers.shopify.page_size"),
			},
			Amazon: AmazonConfig{
				Enabled:  v.GetBool("providers.amazon.enabled"),
				Endpoint: v.GetString("providers.amazon.endpoint"),
				AuthURL:  v.GetString("providers.amazon.auth_url"),
				PageSize: v.GetInt("providers.amazon.page_size"),
			},
			QuickBooks: QuickBooksConfig{
				Enabled:         v.GetBool("providers.quickbooks.enabled"),
				Endpoint:        v.GetString("providers.quickbooks.endpoint"),
				AuthURL:         v.GetString("providers.quickbooks.auth_url"),
				MinorVersion:    v.GetString("providers.quickbooks.minor_version"),
				PageSize:        v.GetInt("providers.quickbooks.page_size"),
				WebhookVerifier: v.GetString("providers.quickbooks.webhook_verifier"),
			},
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("storage.enabled"),
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ProfilerEnabled:   v.GetBool("telemetry.profiler_enabled"),
			ProfilerAddress:   v.GetString("telemetry.profiler_address"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "syncbridge"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "syncbridge"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 120
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "Accept", "Origin", "Cache-Control"}
	}
	if cfg.Sync.InterCallDelay == 0 {
		cfg.Sync.InterCallDelay = 2 * time.Second
	}
	if cfg.Sync.RequestTimeout == 0 {
		cfg.Sync.RequestTimeout = 30 * time.Second
	}
	if cfg.Sync.MaxRetries == 0 {
		cfg.Sync.MaxRetries = 3
	}
	if cfg.Sync.TokenRefreshBuffer == 0 {
		cfg.Sync.TokenRefreshBuffer = 5 * time.Minute
	}
	if cfg.Sync.FullSyncLookback == 0 {
		cfg.Sync.FullSyncLookback = 30 * 24 * time.Hour
	}
	if cfg.Webhook.GraceWindow == 0 {
		cfg.Webhook.GraceWindow = 30 * time.Second
	}
	if cfg.Webhook.RetentionCeiling == 0 {
		cfg.Webhook.RetentionCeiling = 7 * 24 * time.Hour
	}
	if cfg.Webhook.SweepBatchSize == 0 {
		cfg.Webhook.SweepBatchSize = 100
	}
	if cfg.Webhook.DedupTTL == 0 {
		cfg.Webhook.DedupTTL = 24 * time.Hour
	}
	if cfg.Monitor.CycleInterval == 0 {
		cfg.Monitor.CycleInterval = time.Minute
	}
	if cfg.Monitor.AlertWindow == 0 {
		cfg.Monitor.AlertWindow = 24 * time.Hour
	}
	if cfg.Monitor.ConsecutiveFailureThreshold == 0 {
		cfg.Monitor.ConsecutiveFailureThreshold = 3
	}
	if cfg.Monitor.LatencyThreshold == 0 {
		cfg.Monitor.LatencyThreshold = 10 * time.Second
	}
	if cfg.Monitor.StaleAfter == 0 {
		cfg.Monitor.StaleAfter = 6 * time.Hour
	}
	if cfg.Monitor.StuckWebhookDelay == 0 {
		cfg.Monitor.StuckWebhookDelay = 15 * time.Minute
	}
	if cfg.Monitor.StuckWebhookThreshold == 0 {
		cfg.Monitor.StuckWebhookThreshold = 10
	}
	if cfg.Monitor.AlertCooldown == 0 {
		cfg.Monitor.AlertCooldown = time.Hour
	}
	if cfg.Monitor.LogRetention == 0 {
		cfg.Monitor.LogRetention = 30 * 24 * time.Hour
	}
	if cfg.Providers.Shopify.APIVersion == "" {
		cfg.Providers.Shopify.APIVersion = "2024-10"
	}
	if cfg.Providers.Shopify.PageSize == 0 {
		cfg.Providers.Shopify.PageSize = 250
	}
	if cfg.Providers.Amazon.Endpoint == "" {
		cfg.Providers.Amazon.Endpoint = "https://sellingpartnerapi-na.amazon.com"
	}
	if cfg.Providers.Amazon.AuthURL == "" {
		cfg.Providers.Amazon.AuthURL = "https://api.amazon.com/auth/o2/token"
	}
	if cfg.Providers.Amazon.PageSize == 0 {
		cfg.Providers.Amazon.PageSize = 100
	}
	if cfg.Providers.QuickBooks.Endpoint == "" {
		cfg.Providers.QuickBooks.Endpoint = "https://quickbooks.api.intuit.com"
	}
	if cfg.Providers.QuickBooks.AuthURL == "" {
		cfg.Providers.QuickBooks.AuthURL = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
	}
	if cfg.Providers.QuickBooks.MinorVersion == "" {
		cfg.Providers.QuickBooks.MinorVersion = "73"
	}
	if cfg.Providers.QuickBooks.PageSize == 0 {
		cfg.Providers.QuickBooks.PageSize = 100
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
}

// validate checks configuration invariants that would otherwise surface as
// confusing runtime behavior
func (c *Config) validate() error {
	if c.App.Env != "development" && c.App.Env != "staging" && c.App.Env != "production" {
		return fmt.Errorf("config: invalid app.env %q", c.App.Env)
	}
	if c.Sync.MaxRetries < 0 || c.Sync.MaxRetries > 10 {
		return fmt.Errorf("config: sync.max_retries must be between 0 and 10, got %d", c.Sync.MaxRetries)
	}
	if c.Webhook.GraceWindow >= c.Webhook.RetentionCeiling {
		return fmt.Errorf("config: webhook.grace_window must be below webhook.retention_ceiling")
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("config: telemetry.sampling_ratio must be within [0,1], got %f", c.Telemetry.SamplingRatio)
	}
	if c.Storage.Enabled {
		if c.Storage.Bucket == "" {
			return fmt.Errorf("config: storage.bucket is required when storage is enabled")
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return fmt.Errorf("config: storage credentials are required when storage is enabled")
		}
	}
	return nil
}

// IsProduction returns true when running with the production environment tag
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
