// Package config loads the relay configuration from an optional YAML file
// and environment variables prefixed with RELAY_. Environment values win.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/ytget/yt-relay/internal/model"
)

const (
	envVarPrefix = "RELAY"

	// ConfigFileEnv names the YAML file read when no path is given
	ConfigFileEnv = envVarPrefix + "_CONFIG_FILE"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Relay modes
const (
	RelayTelegram = "telegram"
	RelayOBS      = "obs"
)

// Default values
const (
	DefaultDownloadDir      = "./DOWNLOADS"
	DefaultProgressInterval = 3 * time.Second
	DefaultMetadataTimeout  = 60 * time.Second
	DefaultSessionTTL       = 30 * time.Minute
	DefaultRetryDelay       = 2 * time.Second
	DefaultAddr             = ":5000"
	DefaultRedisAddr        = "localhost:6379"
	DefaultEditsPerSecond   = 1.0
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"

	// MaxFetchRetries caps FetchRetries
	MaxFetchRetries = 10
)

// DefaultBannedKeywords reject a source URL and blacklist its sender
var DefaultBannedKeywords = []string{"porn", "sex", "sexy", "adult"}

// Config is the complete runtime configuration
type Config struct {
	DownloadDir       string        `envconfig:"DOWNLOAD_DIR"       yaml:"downloadDir"`
	MaxPartSize       int64         `envconfig:"MAX_PART_SIZE"      yaml:"maxPartSize"`
	ProgressInterval  time.Duration `envconfig:"PROGRESS_INTERVAL"  yaml:"progressInterval"`
	MetadataTimeout   time.Duration `envconfig:"METADATA_TIMEOUT"   yaml:"metadataTimeout"`
	SessionTTL        time.Duration `envconfig:"SESSION_TTL"        yaml:"sessionTTL"`
	FetchRetries      int           `envconfig:"FETCH_RETRIES"      yaml:"fetchRetries"`
	RetryDelay        time.Duration `envconfig:"RETRY_DELAY"        yaml:"retryDelay"`
	CheckCertificates bool          `envconfig:"CHECK_CERTIFICATES" yaml:"checkCertificates"`
	BannedKeywords    []string      `envconfig:"BANNED_KEYWORDS"    yaml:"bannedKeywords"`

	BotToken   string `envconfig:"BOT_TOKEN"   yaml:"botToken"`
	Webhook    bool   `envconfig:"WEBHOOK"     yaml:"webhook"`
	WebhookURL string `envconfig:"WEBHOOK_URL" yaml:"webhookURL"`
	Addr       string `envconfig:"ADDR"        yaml:"addr"`

	StoreBackend  string `envconfig:"STORE_BACKEND"  yaml:"storeBackend"`
	RedisAddr     string `envconfig:"REDIS_ADDR"     yaml:"redisAddr"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" yaml:"redisPassword"`
	RedisDB       int    `envconfig:"REDIS_DB"       yaml:"redisDB"`

	RelayMode    string `envconfig:"MODE"           yaml:"relayMode"`
	ObsEndpoint  string `envconfig:"OBS_ENDPOINT"   yaml:"obsEndpoint"`
	ObsAccessKey string `envconfig:"OBS_ACCESS_KEY" yaml:"obsAccessKey"`
	ObsSecretKey string `envconfig:"OBS_SECRET_KEY" yaml:"obsSecretKey"`
	ObsBucket    string `envconfig:"OBS_BUCKET"     yaml:"obsBucket"`
	ObsPrefix    string `envconfig:"OBS_PREFIX"     yaml:"obsPrefix"`

	EditsPerSecond float64 `envconfig:"EDITS_PER_SECOND" yaml:"editsPerSecond"`
	LogLevel       string  `envconfig:"LOG_LEVEL"        yaml:"logLevel"`
	LogFormat      string  `envconfig:"LOG_FORMAT"       yaml:"logFormat"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		DownloadDir:      DefaultDownloadDir,
		MaxPartSize:      model.MaxPartSize,
		ProgressInterval: DefaultProgressInterval,
		MetadataTimeout:  DefaultMetadataTimeout,
		SessionTTL:       DefaultSessionTTL,
		RetryDelay:       DefaultRetryDelay,
		BannedKeywords:   append([]string(nil), DefaultBannedKeywords...),
		Addr:             DefaultAddr,
		StoreBackend:     StoreMemory,
		RedisAddr:        DefaultRedisAddr,
		RelayMode:        RelayTelegram,
		EditsPerSecond:   DefaultEditsPerSecond,
		LogLevel:         DefaultLogLevel,
		LogFormat:        DefaultLogFormat,
	}
}

// Load reads path, or the file named by RELAY_CONFIG_FILE when path is
// empty, then applies environment overrides. Without any file the defaults
// are the base.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}

	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, c); err != nil {
			return nil, fmt.Errorf("unmarshaling config file: %w", err)
		}
	}

	if err := envconfig.Process(envVarPrefix, c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	c.normalize()
	return c, nil
}

// normalize clamps values that have a safe range
func (c *Config) normalize() {
	if c.FetchRetries < 0 {
		c.FetchRetries = 0
	}
	if c.FetchRetries > MaxFetchRetries {
		c.FetchRetries = MaxFetchRetries
	}
	if c.MaxPartSize <= 0 || c.MaxPartSize > model.MaxPartSize {
		c.MaxPartSize = model.MaxPartSize
	}
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	c.RelayMode = strings.ToLower(strings.TrimSpace(c.RelayMode))
}

// Validate reports the first missing or inconsistent setting
func (c *Config) Validate() error {
	if y, e := func() (string, string) {
		if c.BotToken == "" {
			return "botToken", "BOT_TOKEN"
		}
		if c.DownloadDir == "" {
			return "downloadDir", "DOWNLOAD_DIR"
		}
		if c.Addr == "" {
			return "addr", "ADDR"
		}
		if c.Webhook && c.WebhookURL == "" {
			return "webhookURL", "WEBHOOK_URL"
		}
		if c.StoreBackend == StoreRedis && c.RedisAddr == "" {
			return "redisAddr", "REDIS_ADDR"
		}
		if c.RelayMode == RelayOBS {
			switch {
			case c.ObsEndpoint == "":
				return "obsEndpoint", "OBS_ENDPOINT"
			case c.ObsAccessKey == "":
				return "obsAccessKey", "OBS_ACCESS_KEY"
			case c.ObsSecretKey == "":
				return "obsSecretKey", "OBS_SECRET_KEY"
			case c.ObsBucket == "":
				return "obsBucket", "OBS_BUCKET"
			}
		}
		return "", ""
	}(); y != "" {
		return fmt.Errorf(
			"missing required configuration: %s / %s_%s",
			y,
			envVarPrefix,
			e,
		)
	}

	if c.StoreBackend != StoreMemory && c.StoreBackend != StoreRedis {
		return fmt.Errorf("invalid configuration: storeBackend %q is not %s or %s", c.StoreBackend, StoreMemory, StoreRedis)
	}
	if c.RelayMode != RelayTelegram && c.RelayMode != RelayOBS {
		return fmt.Errorf("invalid configuration: relayMode %q is not %s or %s", c.RelayMode, RelayTelegram, RelayOBS)
	}
	if c.ProgressInterval < time.Second {
		return errors.New("invalid configuration: progressInterval must be at least 1s")
	}
	return nil
}

// Level maps LogLevel onto a slog level, defaulting to info
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// JSONLogs reports whether logs are written as JSON
func (c *Config) JSONLogs() bool {
	return strings.EqualFold(c.LogFormat, "json")
}
