package restmed

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config consolidates settings for the mediation layer and its collaborators.
type Config struct {
	Database DatabaseConfig `yaml:"database" json:"database"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Schemas  SchemaConfig   `yaml:"schemas" json:"schemas"`
	Query    QueryConfig    `yaml:"query" json:"query"`
	Locks    LockConfig     `yaml:"locks" json:"locks"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	Database        string        `yaml:"database" json:"database"`
	Username        string        `yaml:"username" json:"username"`
	Password        string        `yaml:"password" json:"password"`
	SSLMode         string        `yaml:"sslMode" json:"sslMode"`
	MaxConnections  int           `yaml:"maxConnections" json:"maxConnections"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" json:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `yaml:"connMaxIdleTime" json:"connMaxIdleTime"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	// UseDSQLAuth switches password auth to AWS DSQL token generation.
	UseDSQLAuth bool   `yaml:"useDsqlAuth" json:"useDsqlAuth"`
	AWSRegion   string `yaml:"awsRegion" json:"awsRegion"`
}

// ConnString renders a pgx-compatible connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Database, d.Username, d.Password, d.SSLMode)
}

// ServerConfig contains HTTP boundary settings.
type ServerConfig struct {
	Port            string        `yaml:"port" json:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" json:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
}

// SchemaConfig describes where entity schema documents are loaded from.
// Directory is the primary source; when S3Bucket is set, documents are
// fetched from the bucket prefix instead.
type SchemaConfig struct {
	Directory string `yaml:"directory" json:"directory"`
	S3Bucket  string `yaml:"s3Bucket" json:"s3Bucket"`
	S3Prefix  string `yaml:"s3Prefix" json:"s3Prefix"`
	AWSRegion string `yaml:"awsRegion" json:"awsRegion"`
	// ConcurrencyProtection lists model names whose single-item updates
	// require an optimistic updated_at check.
	ConcurrencyProtection []string `yaml:"concurrencyProtection" json:"concurrencyProtection"`
}

// Protected reports whether concurrency protection is enabled for a model.
func (s SchemaConfig) Protected(model string) bool {
	for _, name := range s.ConcurrencyProtection {
		if name == model {
			return true
		}
	}
	return false
}

// QueryConfig contains query execution settings.
type QueryConfig struct {
	MaxLimit       int           `yaml:"maxLimit" json:"maxLimit"`
	DefaultTimeout time.Duration `yaml:"defaultTimeout" json:"defaultTimeout"`
}

// LockConfig contains advisory lock registry settings.
type LockConfig struct {
	TTL time.Duration `yaml:"ttl" json:"ttl"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "restmed",
			Username:        "postgres",
			SSLMode:         "disable",
			MaxConnections:  25,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			Timeout:         30 * time.Second,
		},
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Schemas: SchemaConfig{
			Directory: "schemas",
		},
		Query: QueryConfig{
			MaxLimit:       1000,
			DefaultTimeout: 30 * time.Second,
		},
		Locks: LockConfig{
			TTL: 15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig reads a YAML config file over the defaults. A missing path
// returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewFileError(fmt.Sprintf("read config file %s", path), err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, NewFileError(fmt.Sprintf("parse config file %s", path), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.MaxConnections <= 0 {
		return &ConfigError{Field: "database.maxConnections", Message: "must be greater than 0"}
	}
	if c.Database.Port <= 0 {
		return &ConfigError{Field: "database.port", Message: "must be greater than 0"}
	}
	if c.Query.MaxLimit <= 0 {
		return &ConfigError{Field: "query.maxLimit", Message: "must be greater than 0"}
	}
	if c.Locks.TTL <= 0 {
		return &ConfigError{Field: "locks.ttl", Message: "must be greater than 0"}
	}
	if c.Schemas.Directory == "" && c.Schemas.S3Bucket == "" {
		return &ConfigError{Field: "schemas.directory", Message: "a schema directory or S3 bucket is required"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
