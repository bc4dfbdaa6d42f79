package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ytget/yt-relay/internal/model"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c := Default()

	if c.DownloadDir != DefaultDownloadDir {
		t.Errorf("Expected download dir %s, got %s", DefaultDownloadDir, c.DownloadDir)
	}
	if c.MaxPartSize != model.MaxPartSize {
		t.Errorf("Expected max part size %d, got %d", model.MaxPartSize, c.MaxPartSize)
	}
	if c.ProgressInterval != 3*time.Second {
		t.Errorf("Expected progress interval 3s, got %v", c.ProgressInterval)
	}
	if c.StoreBackend != StoreMemory || c.RelayMode != RelayTelegram {
		t.Errorf("Unexpected backends: %s %s", c.StoreBackend, c.RelayMode)
	}
	if len(c.BannedKeywords) != 4 {
		t.Errorf("Expected 4 banned keywords, got %v", c.BannedKeywords)
	}

	c.BannedKeywords[0] = "changed"
	if DefaultBannedKeywords[0] != "porn" {
		t.Error("Default must not share the keyword slice")
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
downloadDir: /data/downloads
progressInterval: 5s
fetchRetries: 2
botToken: file-token
storeBackend: redis
redisAddr: redis:6379
bannedKeywords: [spam]
`)
	t.Setenv("RELAY_BOT_TOKEN", "env-token")
	t.Setenv("RELAY_REDIS_DB", "3")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.DownloadDir != "/data/downloads" {
		t.Errorf("Expected download dir from file, got %s", c.DownloadDir)
	}
	if c.ProgressInterval != 5*time.Second {
		t.Errorf("Expected 5s progress interval, got %v", c.ProgressInterval)
	}
	if c.BotToken != "env-token" {
		t.Errorf("Expected environment to override the file, got %s", c.BotToken)
	}
	if c.RedisDB != 3 || c.RedisAddr != "redis:6379" || c.StoreBackend != StoreRedis {
		t.Errorf("Unexpected redis settings: %+v", c)
	}
	if c.FetchRetries != 2 {
		t.Errorf("Expected 2 retries, got %d", c.FetchRetries)
	}
	if strings.Join(c.BannedKeywords, ",") != "spam" {
		t.Errorf("Expected keywords from file, got %v", c.BannedKeywords)
	}
	if c.Addr != DefaultAddr {
		t.Errorf("Expected default addr to survive, got %s", c.Addr)
	}
}

func TestLoad_ConfigFileEnv(t *testing.T) {
	path := writeFile(t, "botToken: from-env-file\n")
	t.Setenv(ConfigFileEnv, path)

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.BotToken != "from-env-file" {
		t.Errorf("Expected token from %s, got %q", ConfigFileEnv, c.BotToken)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for a missing file")
	}
	if _, err := Load(writeFile(t, "unknownKey: 1\n")); err == nil {
		t.Error("Expected strict parsing to reject unknown keys")
	}
	t.Setenv("RELAY_FETCH_RETRIES", "many")
	if _, err := Load(""); err == nil {
		t.Error("Expected error for a malformed environment value")
	}
}

func TestNormalize(t *testing.T) {
	c := Default()
	c.FetchRetries = 50
	c.MaxPartSize = 10 * model.MaxPartSize
	c.StoreBackend = " Redis "
	c.RelayMode = "OBS"
	c.normalize()

	if c.FetchRetries != MaxFetchRetries {
		t.Errorf("Expected retries clamped to %d, got %d", MaxFetchRetries, c.FetchRetries)
	}
	if c.MaxPartSize != model.MaxPartSize {
		t.Errorf("Expected part size capped at the sink ceiling, got %d", c.MaxPartSize)
	}
	if c.StoreBackend != StoreRedis || c.RelayMode != RelayOBS {
		t.Errorf("Expected lower-cased modes, got %q %q", c.StoreBackend, c.RelayMode)
	}

	c.FetchRetries = -1
	c.normalize()
	if c.FetchRetries != 0 {
		t.Errorf("Expected retries clamped to 0, got %d", c.FetchRetries)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.BotToken = "token"
		return c
	}

	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing token", func(c *Config) { c.BotToken = "" }, "missing required configuration: botToken / RELAY_BOT_TOKEN"},
		{"webhook without url", func(c *Config) { c.Webhook = true }, "webhookURL / RELAY_WEBHOOK_URL"},
		{"obs without bucket", func(c *Config) {
			c.RelayMode = RelayOBS
			c.ObsEndpoint = "https://obs.example"
			c.ObsAccessKey = "ak"
			c.ObsSecretKey = "sk"
		}, "obsBucket / RELAY_OBS_BUCKET"},
		{"unknown store", func(c *Config) { c.StoreBackend = "etcd" }, "storeBackend"},
		{"unknown relay", func(c *Config) { c.RelayMode = "ftp" }, "relayMode"},
		{"fast progress", func(c *Config) { c.ProgressInterval = 100 * time.Millisecond }, "progressInterval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(c)
			err := c.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("Expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		c := &Config{LogLevel: in}
		if got := c.Level(); got != want {
			t.Errorf("Level(%q) = %v, want %v", in, got, want)
		}
	}

	if !(&Config{LogFormat: "JSON"}).JSONLogs() {
		t.Error("Expected JSON logs")
	}
}
