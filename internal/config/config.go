// Package config loads the focal configuration from a YAML file,
// a dotenv file and the environment.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/focalpics/focal/internal/htpasswd"
	"github.com/focalpics/focal/internal/logging"
	"github.com/focalpics/focal/internal/mailer"
	"github.com/focalpics/focal/internal/server/session"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"
)

// EnvPrefix is the prefix of the environment variables overriding the configuration.
// A double underscore separates nested keys: FOCAL_SESSION__STORE sets session.store.
const EnvPrefix = "FOCAL_"

const (
	// StoreMemory keeps the sessions in the process memory.
	StoreMemory = "memory"
	// StoreRedis keeps the sessions in Redis.
	StoreRedis = "redis"
)

type (
	// Config is the focal configuration.
	Config struct {
		Address       string   `koanf:"address"`
		DatabasePath  string   `koanf:"database_path"`
		Origin        string   `koanf:"origin"`
		MagicLinkPath string   `koanf:"magic_link_path"`
		Log           Log      `koanf:"log"`
		Session       Session  `koanf:"session"`
		Htpasswd      Htpasswd `koanf:"htpasswd"`
		Redis         Redis    `koanf:"redis"`
		Mail          Mail     `koanf:"mail"`
	}

	// Log holds the logger configuration.
	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
		File   string `koanf:"file"`
	}

	// Session holds the session subsystem configuration.
	Session struct {
		Store         string        `koanf:"store"`
		TokenLength   int           `koanf:"token_length"`
		UnverifiedTTL time.Duration `koanf:"unverified_ttl"`
		ReapInterval  time.Duration `koanf:"reap_interval"`
		CookieName    string        `koanf:"cookie_name"`
	}

	// Htpasswd holds the credential file configuration.
	Htpasswd struct {
		Path          string        `koanf:"path"`
		Lockfile      string        `koanf:"lockfile"`
		RetryInterval time.Duration `koanf:"retry_interval"`
		Timeout       time.Duration `koanf:"timeout"`
	}

	// Redis holds the Redis connection used by the redis session store.
	Redis struct {
		Address  string `koanf:"address"`
		Username string `koanf:"username"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
		Prefix   string `koanf:"prefix"`
	}

	// Mail holds the magic-link mailer configuration.
	Mail struct {
		Provider string `koanf:"provider"`
		APIKey   string `koanf:"api_key"`
		Endpoint string `koanf:"endpoint"`
		From     string `koanf:"from"`
		Subject  string `koanf:"subject"`
		SiteName string `koanf:"site_name"`
	}
)

var defaults = map[string]interface{}{
	"address":                 "localhost:5000",
	"magic_link_path":         session.DefaultMagicLinkPath,
	"log.level":               "info",
	"log.format":              "text",
	"session.store":           StoreMemory,
	"session.token_length":    session.DefaultTokenLength,
	"session.unverified_ttl":  session.DefaultUnverifiedTTL.String(),
	"session.reap_interval":   session.DefaultReapInterval.String(),
	"session.cookie_name":     "token",
	"htpasswd.retry_interval": htpasswd.DefaultRetryInterval.String(),
	"htpasswd.timeout":        htpasswd.DefaultTimeout.String(),
	"redis.address":           "localhost:6379",
	"redis.prefix":            session.DefaultRedisPrefix,
	"mail.provider":           mailer.ProviderLog,
	"mail.subject":            mailer.DefaultSubject,
	"mail.site_name":          mailer.DefaultSiteName,
}

// Load reads the configuration.
// The dotenv file is loaded first when envfile is not empty, then the defaults,
// the YAML file and the environment are layered in that order.
func Load(filename, envfile string) (*Config, error) {
	if envfile != "" {
		if err := godotenv.Load(envfile); err != nil {
			return nil, errors.Wrap(err, "could not load env file")
		}
	}

	konf := koanf.New(".")
	if err := konf.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, errors.Wrap(err, "could not load defaults")
	}

	if filename != "" {
		if err := konf.Load(file.Provider(filename), yaml.Parser()); err != nil {
			return nil, errors.Wrap(err, "could not load configuration file")
		}
	}

	if err := konf.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "could not load environment")
	}

	var cfg Config
	if err := konf.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.Wrap(err, "could not decode configuration")
	}

	return &cfg, cfg.Validate()
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Validate checks the required keys and the value ranges.
func (c *Config) Validate() error {
	if c.Origin == "" {
		return errors.New("origin not found")
	}
	origin, err := url.Parse(c.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return errors.Errorf("invalid origin %q", c.Origin)
	}

	if !strings.HasPrefix(c.MagicLinkPath, "/") {
		return errors.Errorf("magic_link_path must start with a slash: %q", c.MagicLinkPath)
	}

	if c.Htpasswd.Path == "" {
		return errors.New("htpasswd path not found")
	}
	if c.Htpasswd.RetryInterval <= 0 || c.Htpasswd.Timeout <= 0 {
		return errors.New("htpasswd retry_interval and timeout must be positive")
	}

	switch c.Session.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.Address == "" {
			return errors.New("redis address not found")
		}
	default:
		return errors.Errorf("unsupported session store %q", c.Session.Store)
	}
	if c.Session.TokenLength < session.DefaultTokenLength {
		return errors.Errorf("session token_length must be at least %d", session.DefaultTokenLength)
	}
	if c.Session.UnverifiedTTL <= 0 {
		return errors.New("session unverified_ttl must be positive")
	}
	if c.Session.CookieName == "" {
		return errors.New("session cookie_name not found")
	}

	switch c.Mail.Provider {
	case mailer.ProviderLog:
	case mailer.ProviderSendGrid:
		if c.Mail.APIKey == "" || c.Mail.From == "" {
			return errors.New("sendgrid mail provider requires api_key and from")
		}
	default:
		return errors.Errorf("unsupported mail provider %q", c.Mail.Provider)
	}

	return nil
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		File:   c.Log.File,
	}
}

// Credentials returns the credential file configuration.
func (c *Config) Credentials() htpasswd.Config {
	return htpasswd.Config{
		Path:          c.Htpasswd.Path,
		Lockfile:      c.Htpasswd.Lockfile,
		RetryInterval: c.Htpasswd.RetryInterval,
		Timeout:       c.Htpasswd.Timeout,
	}
}

// Mailer returns the mailer configuration.
func (c *Config) Mailer() mailer.Config {
	return mailer.Config{
		Provider: c.Mail.Provider,
		APIKey:   c.Mail.APIKey,
		Endpoint: c.Mail.Endpoint,
		From:     c.Mail.From,
		Subject:  c.Mail.Subject,
		SiteName: c.Mail.SiteName,
	}
}

// Manager returns the session manager configuration.
func (c *Config) Manager() session.Config {
	return session.Config{
		Origin:        c.Origin,
		MagicLinkPath: c.MagicLinkPath,
		TokenLength:   c.Session.TokenLength,
		UnverifiedTTL: c.Session.UnverifiedTTL,
		ReapInterval:  c.Session.ReapInterval,
	}
}
