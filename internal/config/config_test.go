package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.test.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Port != 3000 || cfg.Mode != "release" || cfg.SlowConsumer != "drop" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.PingPeriod != 50*time.Second || cfg.PongTimeout != 5*time.Second || cfg.MaxConnection != 5*time.Hour {
		t.Fatalf("unexpected liveness defaults %+v", cfg)
	}
	if cfg.AuthTimeout != 5*time.Second {
		t.Fatalf("unexpected auth timeout %s", cfg.AuthTimeout)
	}
	if cfg.SessionTimeout != 10*time.Minute || cfg.ReapInterval != 0 {
		t.Fatalf("unexpected reaper defaults %+v", cfg)
	}
	if cfg.DatabaseURL != "postgres://localhost/tocata-stream" || cfg.TLS() {
		t.Fatalf("unexpected store defaults %+v", cfg)
	}
}

func TestFileAndEnvOverrides(t *testing.T) {
	p := writeConfig(t, "port: 4000\nsession_timeout: 90s\nslow_consumer: kick\n")
	t.Setenv("TOCATA_PORT", "4100")
	t.Setenv("TOCATA_REDIS_ADDR", "redis:6379")

	cfg, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Port != 4100 {
		t.Fatalf("env should win over file, got port %d", cfg.Port)
	}
	if cfg.SessionTimeout != 90*time.Second || cfg.SlowConsumer != "kick" {
		t.Fatalf("file values not applied %+v", cfg)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("redis addr %q", cfg.RedisAddr)
	}
}

func TestRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"policy":   "slow_consumer: block\n",
		"duration": "pong_timeout: 0s\n",
		"tls":      "tls_cert: /etc/tocata/cert.pem\n",
		"ping":     "ping_period: 10m\nsession_timeout: 10m\n",
	}
	for name, body := range cases {
		_, err := LoadFile(writeConfig(t, body))
		if !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}

	if _, err := LoadFile(writeConfig(t, "ping_period: soon\n")); err == nil {
		t.Fatal("unparseable duration accepted")
	}
}
