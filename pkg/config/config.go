package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root application config, parsed from YAML.
type Config struct {
	Logger LoggerConfig `yaml:"logger"`
	Server ServerConfig `yaml:"http-server"`
	DB     `yaml:"db"`
}

type ServerConfig struct {
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	// MaxBatchBytes bounds a decoded batch request body.
	MaxBatchBytes int64 `yaml:"max_batch_bytes"`
}

type DB struct {
	Memtable MemtableConfig `yaml:"memtable"`
	Expiry   ExpiryConfig   `yaml:"expiry"`
}

type MemtableConfig struct {
	// MaxBytes caps the key and value bytes held by the memtable.
	// Zero disables the limit.
	MaxBytes int `yaml:"max_bytes"`
}

type ExpiryConfig struct {
	// WriteTimeTTL is how long PutWT records live after their write time.
	// Zero keeps them forever.
	WriteTimeTTL time.Duration `yaml:"write_time_ttl"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level: "DEBUG",
			JSON:  false,
		},
		Server: ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: 5 * time.Second,
			MaxBatchBytes:     4 << 20,
		},
		DB: DB{
			Memtable: MemtableConfig{
				MaxBytes: 64 << 20,
			},
			Expiry: ExpiryConfig{
				WriteTimeTTL: 0,
			},
		},
	}
}

func (c *Config) Validate() error {
	switch strings.ToUpper(c.Logger.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("logger.level: unknown level %q", c.Logger.Level)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("http-server.port: %d out of range", c.Server.Port)
	}
	if c.Server.MaxBatchBytes < 0 {
		return fmt.Errorf("http-server.max_batch_bytes: must not be negative")
	}
	if c.Memtable.MaxBytes < 0 {
		return fmt.Errorf("db.memtable.max_bytes: must not be negative")
	}
	if c.Expiry.WriteTimeTTL < 0 {
		return fmt.Errorf("db.expiry.write_time_ttl: must not be negative")
	}
	return nil
}
