// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads the service configuration from defaults, a YAML
// file, ACCOUNTS_ environment variables and command-line flags, in that
// order of precedence.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

// EnvPrefix prefixes every environment variable the service reads.
// ACCOUNTS_DATABASE_URL sets database.url.
const EnvPrefix = "ACCOUNTS_"

// Defaults.
const (
	DefaultHTTPAddr        = ":8080"
	DefaultMetricsAddr     = "127.0.0.1:9100"
	DefaultDatabaseRetries = 5
	DefaultTokenTTL        = time.Hour
	DefaultBcryptCost      = 12
	DefaultMailPort        = 587
	DefaultMailQueue       = 64
	DefaultMailTimeout     = 10 * time.Second
	DefaultLogFormat       = "json"
)

// Config is the complete service configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Token    TokenConfig    `koanf:"token"`
	Bcrypt   BcryptConfig   `koanf:"bcrypt"`
	Mail     MailConfig     `koanf:"mail"`
	CORS     CORSConfig     `koanf:"cors"`
	Log      LogConfig      `koanf:"log"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// MetricsConfig configures the metrics and health listener.
// An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL     string `koanf:"url"`
	Retries uint64 `koanf:"retries"`
}

// TokenConfig configures bearer token signing.
type TokenConfig struct {
	Secret string        `koanf:"secret"`
	TTL    time.Duration `koanf:"ttl"`
}

// BcryptConfig configures password hashing.
type BcryptConfig struct {
	Cost int `koanf:"cost"`
}

// MailConfig configures outbound email. An empty Host disables delivery.
type MailConfig struct {
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	From     string        `koanf:"from"`
	Queue    int           `koanf:"queue"`
	Retries  uint64        `koanf:"retries"`
	Timeout  time.Duration `koanf:"timeout"`
}

// CORSConfig lists the origins allowed to call the API.
type CORSConfig struct {
	Origins []string `koanf:"origins"`
}

// LogConfig selects the log output format: json or text.
type LogConfig struct {
	Format string `koanf:"format"`
}

func defaults() map[string]any {
	return map[string]any{
		"http.addr":        DefaultHTTPAddr,
		"metrics.addr":     DefaultMetricsAddr,
		"database.url":     "",
		"database.retries": DefaultDatabaseRetries,
		"token.secret":     "",
		"token.ttl":        DefaultTokenTTL.String(),
		"bcrypt.cost":      DefaultBcryptCost,
		"mail.host":        "",
		"mail.port":        DefaultMailPort,
		"mail.username":    "",
		"mail.password":    "",
		"mail.from":        "",
		"mail.queue":       DefaultMailQueue,
		"mail.retries":     0,
		"mail.timeout":     DefaultMailTimeout.String(),
		"cors.origins":     []string{"*"},
		"log.format":       DefaultLogFormat,
	}
}

// RegisterFlags adds the configuration flags to fs. Only flags the user
// sets override lower layers.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("http-addr", DefaultHTTPAddr, "HTTP API listen address")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("mail-host", "", "SMTP relay host (empty = email disabled)")
}

// LoadDotEnv loads .env style files into the process environment.
// Missing files are ignored and existing variables are never overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return oops.Code("CONFIG_DOTENV_FAILED").With("path", p).Wrap(err)
		}
	}
	return nil
}

// Load builds a Config. path may be empty to skip the file layer and
// flags may be nil to skip the flag layer. The result is not validated.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	ko := koanf.New(".")

	if err := ko.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "defaults").Wrap(err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "file").With("path", path).Wrap(err)
		}
		if err := ko.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "file").With("path", path).Wrap(err)
		}
	}

	if err := ko.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "env").Wrap(err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", ko, func(f *pflag.Flag) (string, any) {
			return strings.ReplaceAll(f.Name, "-", "."), posflag.FlagVal(flags, f)
		})
		if err := ko.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := ko.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return &cfg, nil
}

// envValue maps ACCOUNTS_MAIL_HOST to mail.host. List values are
// comma separated.
func envValue(name, value string) (string, any) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_", ".")
	if key == "cors.origins" {
		origins := strings.Split(value, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		return key, origins
	}
	return key, value
}

// Validate checks everything the serve command needs.
func (c *Config) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if c.Token.Secret == "" {
		return invalid("token.secret", "token secret is required")
	}
	if c.Token.TTL <= 0 {
		return invalid("token.ttl", "token ttl must be positive")
	}
	if c.Bcrypt.Cost < bcrypt.MinCost || c.Bcrypt.Cost > bcrypt.MaxCost {
		return invalid("bcrypt.cost", "bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "http address is required")
	}
	if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
		return invalid("mail.port", "mail port must be between 1 and 65535")
	}
	if c.Mail.Queue <= 0 {
		return invalid("mail.queue", "mail queue must be positive")
	}
	if c.Mail.Timeout <= 0 {
		return invalid("mail.timeout", "mail timeout must be positive")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	return nil
}

// ValidateDatabase checks only the database settings, for commands such as
// migrate that never serve traffic.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL == "" {
		return invalid("database.url", "database url is required")
	}
	return nil
}

// MailEnabled reports whether an SMTP relay is configured.
func (c *Config) MailEnabled() bool {
	return c.Mail.Host != ""
}

// LogValue keeps secrets out of logs.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("http_addr", c.HTTP.Addr),
		slog.String("metrics_addr", c.Metrics.Addr),
		slog.Bool("database_configured", c.Database.URL != ""),
		slog.Duration("token_ttl", c.Token.TTL),
		slog.Int("bcrypt_cost", c.Bcrypt.Cost),
		slog.Bool("mail_enabled", c.MailEnabled()),
		slog.String("mail_host", c.Mail.Host),
		slog.Any("cors_origins", c.CORS.Origins),
		slog.String("log_format", c.Log.Format),
	)
}

func invalid(field, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
}
