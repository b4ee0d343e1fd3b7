package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Server holds the HTTP server configuration.
type Server struct {
	ListenAddress string `yaml:"listenAddress"`
	// TrustedProxies are IPs/CIDRs to trust for X-Forwarded-For headers
	// (e.g. ["10.0.0.0/8", "127.0.0.1"]).
	TrustedProxies []string `yaml:"trustedProxies"`
	// Debug enables gin debug mode and permissive CORS for local frontends.
	Debug bool `yaml:"debug"`
	// RateLimitPerSecond caps requests per client IP. Zero disables limiting.
	RateLimitPerSecond float64 `yaml:"rateLimitPerSecond"`
	// RateLimitBurst is the burst allowance per client IP.
	RateLimitBurst int `yaml:"rateLimitBurst"`
}

// Database holds the storage configuration.
type Database struct {
	Path string `yaml:"path"`
	// LogMode enables SQL statement logging.
	LogMode bool `yaml:"logMode"`
}

// Auth holds the token verification configuration for the API.
type Auth struct {
	JWTSecret string `yaml:"jwtSecret"`
	Issuer    string `yaml:"issuer"`
}

// Kafka configures the optional export of flushed audit batches.
type Kafka struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Audit holds the audit pipeline configuration.
type Audit struct {
	Enabled              bool     `yaml:"enabled"`
	BatchSize            int      `yaml:"batchSize"`
	FlushIntervalSeconds int      `yaml:"flushIntervalSeconds"`
	MaxQueueSize         int      `yaml:"maxQueueSize"`
	RetentionDays        int      `yaml:"retentionDays"`
	CleanupIntervalHours int      `yaml:"cleanupIntervalHours"`
	CleanupBatchSize     int      `yaml:"cleanupBatchSize"`
	ShutdownGraceSeconds int      `yaml:"shutdownGraceSeconds"`
	ExcludedEntities     []string `yaml:"excludedEntities"`
	ExcludedFields       []string `yaml:"excludedFields"`
	Kafka                Kafka    `yaml:"kafka"`
}

// FlushInterval returns the flush interval as a duration.
func (a Audit) FlushInterval() time.Duration {
	return time.Duration(a.FlushIntervalSeconds) * time.Second
}

// Retention returns the retention window as a duration.
func (a Audit) Retention() time.Duration {
	return time.Duration(a.RetentionDays) * 24 * time.Hour
}

// CleanupInterval returns the cleanup interval as a duration.
func (a Audit) CleanupInterval() time.Duration {
	return time.Duration(a.CleanupIntervalHours) * time.Hour
}

// ShutdownGrace returns the shutdown grace period as a duration.
func (a Audit) ShutdownGrace() time.Duration {
	return time.Duration(a.ShutdownGraceSeconds) * time.Second
}

// Config is the root configuration, loaded once at startup.
type Config struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Auth     Auth     `yaml:"auth"`
	Audit    Audit    `yaml:"audit"`
}

// Load reads the configuration from a YAML file, applies defaults and
// validates it. An empty path falls back to ./config.yaml.
func Load(configPath ...string) (Config, error) {
	path := "./config.yaml"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	var config Config

	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("open config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(content, &config); err != nil {
		return config, fmt.Errorf("unmarshal config %s: %w", path, err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// applyDefaults fills in unset values.
func (c *Config) applyDefaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/backoffice.db"
	}

	a := &c.Audit
	if a.BatchSize <= 0 {
		a.BatchSize = 100
	}
	if a.FlushIntervalSeconds <= 0 {
		a.FlushIntervalSeconds = 5
	}
	if a.MaxQueueSize <= 0 {
		a.MaxQueueSize = 10000
	}
	if a.RetentionDays <= 0 {
		a.RetentionDays = 90
	}
	if a.CleanupIntervalHours <= 0 {
		a.CleanupIntervalHours = 24
	}
	if a.CleanupBatchSize <= 0 {
		a.CleanupBatchSize = 1000
	}
	if a.ShutdownGraceSeconds <= 0 {
		a.ShutdownGraceSeconds = 10
	}
	if a.ExcludedEntities == nil {
		a.ExcludedEntities = []string{"AuditRecord", "RefreshToken"}
	}
	if a.ExcludedFields == nil {
		a.ExcludedFields = []string{
			"password", "passwordHash", "secret", "token",
			"refreshToken", "securityStamp", "updatedAt",
		}
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Audit.Kafka.Enabled {
		if len(c.Audit.Kafka.Brokers) == 0 {
			return fmt.Errorf("audit.kafka.brokers must be set when the Kafka mirror is enabled")
		}
		if c.Audit.Kafka.Topic == "" {
			return fmt.Errorf("audit.kafka.topic must be set when the Kafka mirror is enabled")
		}
	}
	if c.Auth.JWTSecret == "" && !c.Server.Debug {
		return fmt.Errorf("auth.jwtSecret must be set outside debug mode")
	}
	return nil
}
