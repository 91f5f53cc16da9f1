package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	LogLevel   string `mapstructure:"log_level"`

	ReadLimit     int64         `mapstructure:"read_limit"`
	SendBuffer    int           `mapstructure:"send_buffer"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	PingPeriod    time.Duration `mapstructure:"ping_period"`
	PongTimeout   time.Duration `mapstructure:"pong_timeout"`
	MaxConnection time.Duration `mapstructure:"max_connection"`

	SessionTimeout time.Duration `mapstructure:"session_timeout"`
	ReapInterval   time.Duration `mapstructure:"reap_interval"`
	SlowConsumer   string        `mapstructure:"slow_consumer"`

	LoginAttempts int           `mapstructure:"login_attempts"`
	LoginWindow   time.Duration `mapstructure:"login_window"`
	AuthTimeout   time.Duration `mapstructure:"auth_timeout"`

	DatabaseURL string `mapstructure:"database_url"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix"`

	TLSCert string `mapstructure:"tls_cert"`
	TLSKey  string `mapstructure:"tls_key"`
}

// TLS reports whether both certificate and key are configured.
func (c *Config) TLS() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// Load reads config/config.<CONFIG_ENV>.yaml (env "dev" by default), then
// TOCATA_* environment overrides.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("TOCATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 3000)
	v.SetDefault("static_path", "./static")
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("send_buffer", 256)
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("ping_period", "50s")
	v.SetDefault("pong_timeout", "5s")
	v.SetDefault("max_connection", "5h")
	v.SetDefault("session_timeout", "10m")
	v.SetDefault("reap_interval", "0s")
	v.SetDefault("slow_consumer", "drop")
	v.SetDefault("login_attempts", 5)
	v.SetDefault("login_window", "1m")
	v.SetDefault("auth_timeout", "5s")
	v.SetDefault("database_url", "postgres://localhost/tocata-stream")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_prefix", "tocata")
	v.SetDefault("tls_cert", "")
	v.SetDefault("tls_key", "")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.SlowConsumer {
	case "drop", "kick":
	default:
		return fmt.Errorf("%w: slow_consumer %q", ErrInvalidConfig, c.SlowConsumer)
	}
	for name, d := range map[string]time.Duration{
		"write_timeout":   c.WriteTimeout,
		"ping_period":     c.PingPeriod,
		"pong_timeout":    c.PongTimeout,
		"max_connection":  c.MaxConnection,
		"session_timeout": c.SessionTimeout,
		"auth_timeout":    c.AuthTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}
	// Pongs are what keep an otherwise silent jam alive.
	if c.PingPeriod >= c.SessionTimeout {
		return fmt.Errorf("%w: ping_period %s must be shorter than session_timeout %s", ErrInvalidConfig, c.PingPeriod, c.SessionTimeout)
	}
	if c.ReapInterval < 0 {
		return fmt.Errorf("%w: reap_interval must not be negative", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidConfig, c.Port)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("%w: send_buffer must be positive", ErrInvalidConfig)
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("%w: tls_cert and tls_key must be set together", ErrInvalidConfig)
	}
	return nil
}
