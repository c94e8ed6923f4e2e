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
	MQTT      MQTTConfig
	Transport TransportConfig
	Cart      CartConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file path
	AutoMigrate     bool   // sqlite only
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// MQTTConfig holds broker settings for the kiosk transport
type MQTTConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	ClientID       string
	CleanSession   bool
	QoS            int
	ConnectTimeout time.Duration
	ReconnectDelay time.Duration
	KeepAlive      time.Duration
}

// TransportConfig selects the publish/subscribe transport
type TransportConfig struct {
	Driver string // mqtt, redis, memory
}

// CartConfig holds cart session and checkout rules
type CartConfig struct {
	SessionTTL            time.Duration
	MaxItems              int
	LoanPeriod            time.Duration
	StoreTimeout          time.Duration
	ReplaceActiveSession  bool   // cancel the running session instead of rejecting a new one
	SessionStore          string // memory, redis
	SweepInterval         time.Duration
	IngestMaxRetries      int
	IngestRetryMaxElapsed time.Duration
	SessionLockTTL        time.Duration // lifetime of the cross-instance cart lock; redis store only
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool   // Whether to export metrics and traces
	CollectorEndpoint string // OTEL Collector endpoint (e.g., "localhost:4317")
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	ExportInterval    time.Duration
	SamplingRatio     float64 // Trace sampling ratio (0.0 to 1.0)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with LIB_ prefix (e.g., LIB_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("LIB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans that default to true need an explicit viper default
	v.SetDefault("mqtt.clean_session", true)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sampling_ratio", 1.0)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		MQTT: MQTTConfig{
			Host:           v.GetString("mqtt.host"),
			Port:           v.GetInt("mqtt.port"),
			Username:       v.GetString("mqtt.username"),
			Password:       v.GetString("mqtt.password"),
			ClientID:       v.GetString("mqtt.client_id"),
			CleanSession:   v.GetBool("mqtt.clean_session"),
			QoS:            v.GetInt("mqtt.qos"),
			ConnectTimeout: v.GetDuration("mqtt.connect_timeout"),
			ReconnectDelay: v.GetDuration("mqtt.reconnect_delay"),
			KeepAlive:      v.GetDuration("mqtt.keep_alive"),
		},
		Transport: TransportConfig{
			Driver: v.GetString("transport.driver"),
		},
		Cart: CartConfig{
			SessionTTL:            v.GetDuration("cart.session_ttl"),
			MaxItems:              v.GetInt("cart.max_items"),
			LoanPeriod:            v.GetDuration("cart.loan_period"),
			StoreTimeout:          v.GetDuration("cart.store_timeout"),
			ReplaceActiveSession:  v.GetBool("cart.replace_active_session"),
			SessionStore:          v.GetString("cart.session_store"),
			SweepInterval:         v.GetDuration("cart.sweep_interval"),
			IngestMaxRetries:      v.GetInt("cart.ingest_max_retries"),
			IngestRetryMaxElapsed: v.GetDuration("cart.ingest_retry_max_elapsed"),
			SessionLockTTL:        v.GetDuration("cart.session_lock_ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
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
		cfg.App.Name = "biblioteca-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "3000"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
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
		cfg.Database.DBName = "biblioteca"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "biblioteca.db"
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
	if cfg.MQTT.Host == "" {
		cfg.MQTT.Host = "localhost"
	}
	if cfg.MQTT.Port == 0 {
		cfg.MQTT.Port = 1883
	}
	if cfg.MQTT.Username == "" {
		cfg.MQTT.Username = "biblioteca_server"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "biblioteca-backend"
	}
	if cfg.MQTT.QoS == 0 {
		cfg.MQTT.QoS = 1
	}
	if cfg.MQTT.ConnectTimeout == 0 {
		cfg.MQTT.ConnectTimeout = 30 * time.Second
	}
	if cfg.MQTT.ReconnectDelay == 0 {
		cfg.MQTT.ReconnectDelay = 5 * time.Second
	}
	if cfg.MQTT.KeepAlive == 0 {
		cfg.MQTT.KeepAlive = 60 * time.Second
	}
	if cfg.Transport.Driver == "" {
		cfg.Transport.Driver = "mqtt"
	}
	if cfg.Cart.SessionTTL == 0 {
		cfg.Cart.SessionTTL = time.Hour
	}
	if cfg.Cart.MaxItems == 0 {
		cfg.Cart.MaxItems = 3
	}
	if cfg.Cart.LoanPeriod == 0 {
		cfg.Cart.LoanPeriod = 7 * 24 * time.Hour
	}
	if cfg.Cart.StoreTimeout == 0 {
		cfg.Cart.StoreTimeout = 5 * time.Second
	}
	if cfg.Cart.SessionStore == "" {
		cfg.Cart.SessionStore = "memory"
	}
	if cfg.Cart.SweepInterval == 0 {
		cfg.Cart.SweepInterval = 5 * time.Minute
	}
	if cfg.Cart.IngestMaxRetries == 0 {
		cfg.Cart.IngestMaxRetries = 3
	}
	if cfg.Cart.IngestRetryMaxElapsed == 0 {
		cfg.Cart.IngestRetryMaxElapsed = 2 * time.Second
	}
	if cfg.Cart.SessionLockTTL == 0 {
		cfg.Cart.SessionLockTTL = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	// Empty CORS origins means no cross-origin requests until configured
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "biblioteca-backend"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Transport.Driver {
	case "mqtt", "redis", "memory":
	default:
		return fmt.Errorf("transport.driver must be mqtt, redis or memory, got %q", c.Transport.Driver)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}

	switch c.Cart.SessionStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("cart.session_store must be memory or redis, got %q", c.Cart.SessionStore)
	}
	if c.Cart.MaxItems < 0 {
		return fmt.Errorf("cart.max_items cannot be negative")
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1, got %g", c.Telemetry.SamplingRatio)
	}
	if c.Cart.SessionTTL < 0 || c.Cart.LoanPeriod < 0 {
		return fmt.Errorf("cart.session_ttl and cart.loan_period must be positive")
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "postgres" {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		if c.Transport.Driver == "memory" {
			return fmt.Errorf("transport.driver=memory cannot reach kiosks; use mqtt or redis in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns host:port for the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// BrokerURL returns the MQTT broker URL
func (m *MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", m.Host, m.Port)
}
