// Package config provides configuration management for the collaboration graph service.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/helixir/collab-graph-service/internal/domain"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "COLLABGRAPH"

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Output format constants for the collaborations file.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config holds all configuration for the collaboration graph service.
type Config struct {
	// OpenAlex contains catalog API settings.
	OpenAlex OpenAlexConfig `mapstructure:"openalex"`
	// Fetch contains work pagination settings.
	Fetch FetchConfig `mapstructure:"fetch"`
	// Pipeline contains run policies.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	// Resolver contains roster name resolution settings.
	Resolver ResolverConfig `mapstructure:"resolver"`
	// Roster contains roster file locations.
	Roster RosterConfig `mapstructure:"roster"`
	// Output contains the collaborations file settings.
	Output OutputConfig `mapstructure:"output"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Neo4j contains graph database settings.
	Neo4j Neo4jConfig `mapstructure:"neo4j"`
	// Kafka contains edge event publisher settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Redis contains resolution cache settings.
	Redis RedisConfig `mapstructure:"redis"`
}

// OpenAlexConfig holds catalog API configuration.
type OpenAlexConfig struct {
	// BaseURL is the OpenAlex API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Email is sent as mailto for the polite pool.
	Email string `mapstructure:"email"`
	// Timeout bounds every request (default: 30s).
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the request ceiling in requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the token bucket burst.
	BurstSize int `mapstructure:"burst_size"`
}

// FetchConfig holds work pagination configuration.
type FetchConfig struct {
	// FromYear is the inclusive lower bound of publication year.
	FromYear int `mapstructure:"from_year"`
	// PageSize is the number of works per page (1-200).
	PageSize int `mapstructure:"page_size"`
	// MaxPages caps pages per institution; 0 means no cap.
	MaxPages int `mapstructure:"max_pages"`
	// PageDelay is the pause between consecutive pages of one institution.
	PageDelay time.Duration `mapstructure:"page_delay"`
}

// PipelineConfig holds run policy configuration.
type PipelineConfig struct {
	// FailurePolicy is "abort" or "isolate".
	FailurePolicy string `mapstructure:"failure_policy"`
	// CountPolicy is "per_pass" or "per_work".
	CountPolicy string `mapstructure:"count_policy"`
}

// ResolverConfig holds roster name resolution configuration.
type ResolverConfig struct {
	// Delay is the pause after every search.
	Delay time.Duration `mapstructure:"delay"`
	// ResultLimit is the per-page value of the search request.
	ResultLimit int `mapstructure:"result_limit"`
}

// RosterConfig holds roster file locations.
type RosterConfig struct {
	// InputPath is the roster CSV read by resolve and build.
	InputPath string `mapstructure:"input_path"`
	// ResolvedJSONPath is where resolve writes the resolved roster as JSON.
	ResolvedJSONPath string `mapstructure:"resolved_json_path"`
	// ResolvedCSVPath is where resolve writes the resolved roster as CSV.
	ResolvedCSVPath string `mapstructure:"resolved_csv_path"`
}

// OutputConfig holds the collaborations file settings.
type OutputConfig struct {
	// CollaborationsPath is the collaborations file.
	CollaborationsPath string `mapstructure:"collaborations_path"`
	// Format is "json" or "yaml".
	Format string `mapstructure:"format"`
	// ReportPath, when set, receives the full run report as JSON.
	ReportPath string `mapstructure:"report_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
	// Path is the HTTP path for the metrics endpoint.
	Path string `mapstructure:"path"`
	// TextfilePath, when set, receives a metrics dump after each build.
	TextfilePath string `mapstructure:"textfile_path"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// CORSAllowedOrigins lists origins allowed to call the API.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Enabled turns on the PostgreSQL sink and run queries.
	Enabled bool `mapstructure:"enabled"`
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is loaded only from COLLABGRAPH_DATABASE_PASSWORD.
	Password string `mapstructure:"-"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun applies pending migrations before a build.
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// Neo4jConfig holds graph database configuration.
type Neo4jConfig struct {
	// Enabled turns on the graph sink.
	Enabled bool `mapstructure:"enabled"`
	// URI is the bolt or neo4j URI.
	URI string `mapstructure:"uri"`
	// Username is the Neo4j user.
	Username string `mapstructure:"username"`
	// Password is loaded only from COLLABGRAPH_NEO4J_PASSWORD.
	Password string `mapstructure:"-"`
	// Database is the target database name; empty uses the server default.
	Database string `mapstructure:"database"`
}

// KafkaConfig holds edge event publisher configuration.
type KafkaConfig struct {
	// Enabled turns on the event sink.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic receives one message per edge plus a run summary.
	Topic string `mapstructure:"topic"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// RedisConfig holds resolution cache configuration.
type RedisConfig struct {
	// Enabled turns on the resolution cache.
	Enabled bool `mapstructure:"enabled"`
	// Addr is the host:port of the Redis server.
	Addr string `mapstructure:"addr"`
	// Password is loaded only from COLLABGRAPH_REDIS_PASSWORD.
	Password string `mapstructure:"-"`
	// DB is the Redis database number.
	DB int `mapstructure:"db"`
	// KeyPrefix namespaces cache keys.
	KeyPrefix string `mapstructure:"key_prefix"`
	// TTL is how long a resolution stays cached; 0 keeps it forever.
	TTL time.Duration `mapstructure:"ttl"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.HTTPPort))
}

// Load reads configuration from defaults, an optional YAML file and
// COLLABGRAPH_ environment variables, in increasing precedence.
// When configFile is empty the file is looked up as config.yaml in ., ./config
// and /etc/collab-graph-service, and a missing file is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/collab-graph-service")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// Config file not found is OK, we'll use env vars and defaults
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets reads credentials from the environment only.
func loadSecrets(cfg *Config) {
	cfg.Database.Password = os.Getenv(EnvPrefix + "_DATABASE_PASSWORD")
	cfg.Neo4j.Password = os.Getenv(EnvPrefix + "_NEO4J_PASSWORD")
	cfg.Redis.Password = os.Getenv(EnvPrefix + "_REDIS_PASSWORD")
}

// setDefaults sets default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// OpenAlex defaults
	v.SetDefault("openalex.base_url", "https://api.openalex.org")
	v.SetDefault("openalex.email", "")
	v.SetDefault("openalex.timeout", "30s")
	v.SetDefault("openalex.rate_limit", 10.0)
	v.SetDefault("openalex.burst_size", 1)

	// Fetch defaults
	v.SetDefault("fetch.from_year", 2020)
	v.SetDefault("fetch.page_size", 50)
	v.SetDefault("fetch.max_pages", 3)
	v.SetDefault("fetch.page_delay", "1s")

	// Pipeline defaults
	v.SetDefault("pipeline.failure_policy", string(domain.FailurePolicyAbort))
	v.SetDefault("pipeline.count_policy", string(domain.CountPolicyPerPass))

	// Resolver defaults
	v.SetDefault("resolver.delay", "1s")
	v.SetDefault("resolver.result_limit", 5)

	// Roster defaults
	v.SetDefault("roster.input_path", "data/institutions.csv")
	v.SetDefault("roster.resolved_json_path", "data/institution_ids.json")
	v.SetDefault("roster.resolved_csv_path", "data/institutions_with_ids.csv")

	// Output defaults
	v.SetDefault("output.collaborations_path", "data/collaborations.json")
	v.SetDefault("output.format", FormatJSON)
	v.SetDefault("output.report_path", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "collabgraph")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.textfile_path", "")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors_allowed_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "collabgraph")
	v.SetDefault("database.name", "collab_graph")
	// Default to "require" for production security. Use COLLABGRAPH_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Neo4j defaults
	v.SetDefault("neo4j.enabled", false)
	v.SetDefault("neo4j.uri", "neo4j://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.database", "")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "collabgraph.edges")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "1s")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "collabgraph:resolve:")
	v.SetDefault("redis.ttl", "720h")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Validate catalog config
	if _, err := url.ParseRequestURI(c.OpenAlex.BaseURL); err != nil {
		return fmt.Errorf("invalid openalex base_url %q: %w", c.OpenAlex.BaseURL, err)
	}
	if c.OpenAlex.Timeout <= 0 {
		return fmt.Errorf("openalex timeout must be positive")
	}
	if c.OpenAlex.RateLimit <= 0 {
		return fmt.Errorf("openalex rate_limit must be positive")
	}

	// Validate fetch config
	if c.Fetch.PageSize < 1 || c.Fetch.PageSize > 200 {
		return fmt.Errorf("fetch page_size must be between 1 and 200, got %d", c.Fetch.PageSize)
	}
	if c.Fetch.MaxPages < 0 {
		return fmt.Errorf("fetch max_pages must not be negative")
	}
	if c.Fetch.PageDelay < 0 {
		return fmt.Errorf("fetch page_delay must not be negative")
	}
	if c.Fetch.FromYear < 1000 || c.Fetch.FromYear > 9999 {
		return fmt.Errorf("fetch from_year must be a four-digit year, got %d", c.Fetch.FromYear)
	}

	// Validate policies
	if !domain.FailurePolicy(c.Pipeline.FailurePolicy).IsValid() {
		return fmt.Errorf("invalid pipeline failure_policy: %s", c.Pipeline.FailurePolicy)
	}
	if !domain.CountPolicy(c.Pipeline.CountPolicy).IsValid() {
		return fmt.Errorf("invalid pipeline count_policy: %s", c.Pipeline.CountPolicy)
	}

	// Validate resolver config
	if c.Resolver.ResultLimit < 1 || c.Resolver.ResultLimit > 200 {
		return fmt.Errorf("resolver result_limit must be between 1 and 200, got %d", c.Resolver.ResultLimit)
	}
	if c.Resolver.Delay < 0 {
		return fmt.Errorf("resolver delay must not be negative")
	}

	// Validate output config
	if c.Output.CollaborationsPath == "" {
		return fmt.Errorf("output collaborations_path is required")
	}
	switch strings.ToLower(c.Output.Format) {
	case FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("invalid output format: %s", c.Output.Format)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate server port
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	// Validate database config
	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	}

	// Validate optional sinks
	if c.Neo4j.Enabled && c.Neo4j.URI == "" {
		return fmt.Errorf("neo4j uri is required when neo4j is enabled")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when redis is enabled")
	}

	return nil
}
