// Package config loads server and client settings from YAML, environment and
// built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"textile-core/pkg/textile"
	"textile-core/pkg/transport"
)

// EnvPrefix prefixes every environment override, e.g. TEXTILE_SERVER_PORT.
const EnvPrefix = "TEXTILE"

// Config is the root configuration shared by both binaries.
type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Client ClientConfig `mapstructure:"client" yaml:"client"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// ServerConfig configures the relay server.
type ServerConfig struct {
	Bind string `mapstructure:"bind" yaml:"bind"`
	// Port 0 selects the default Textile port.
	Port             int           `mapstructure:"port" yaml:"port"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`
	// TokenTTL is how long an idle reconnect token stays claimable.
	TokenTTL     time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	ReapInterval time.Duration `mapstructure:"reap_interval" yaml:"reap_interval"`
	// AcceptRate is accepted connections per second; 0 disables throttling.
	AcceptRate  int `mapstructure:"accept_rate" yaml:"accept_rate"`
	AcceptBurst int `mapstructure:"accept_burst" yaml:"accept_burst"`
	MaxPayload  int `mapstructure:"max_payload" yaml:"max_payload"`
}

// ClientConfig configures the chat client.
type ClientConfig struct {
	// Server is host[:port].
	Server       string        `mapstructure:"server" yaml:"server"`
	Name         string        `mapstructure:"name" yaml:"name"`
	Encoding     string        `mapstructure:"encoding" yaml:"encoding"`
	ClientType   string        `mapstructure:"client_type" yaml:"client_type"`
	Token        string        `mapstructure:"token" yaml:"token"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	NoColor      bool          `mapstructure:"no_color" yaml:"no_color"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// Format: console or json
	Format string `mapstructure:"format" yaml:"format"`
	// Outputs: stdout, stderr or file paths
	Outputs     []string       `mapstructure:"outputs" yaml:"outputs"`
	Rotation    RotationConfig `mapstructure:"rotation" yaml:"rotation"`
	Development bool           `mapstructure:"development" yaml:"development"`
}

// RotationConfig controls rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable" yaml:"enable"`
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Bind:             "0.0.0.0",
			Port:             transport.DefaultPort,
			HandshakeTimeout: 10 * time.Second,
			TokenTTL:         30 * time.Minute,
			ReapInterval:     time.Minute,
			AcceptRate:       50,
			AcceptBurst:      100,
		},
		Client: ClientConfig{
			Server:       fmt.Sprintf("127.0.0.1:%d", transport.DefaultPort),
			Name:         "guest",
			Encoding:     "UTF8",
			ClientType:   "textile-go",
			DialTimeout:  10 * time.Second,
			PingInterval: 30 * time.Second,
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				Filename:   "logs/textile.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from path when non-empty, otherwise from
// $TEXTILE_CONFIG or textile.yaml in the usual places. A missing file is not
// an error. Environment variables override file values: dots and dashes in
// keys become underscores, e.g. TEXTILE_LOG_LEVEL=debug.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("textile")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".textile"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.bind", cfg.Server.Bind)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.handshake_timeout", cfg.Server.HandshakeTimeout)
	v.SetDefault("server.token_ttl", cfg.Server.TokenTTL)
	v.SetDefault("server.reap_interval", cfg.Server.ReapInterval)
	v.SetDefault("server.accept_rate", cfg.Server.AcceptRate)
	v.SetDefault("server.accept_burst", cfg.Server.AcceptBurst)
	v.SetDefault("server.max_payload", cfg.Server.MaxPayload)

	v.SetDefault("client.server", cfg.Client.Server)
	v.SetDefault("client.name", cfg.Client.Name)
	v.SetDefault("client.encoding", cfg.Client.Encoding)
	v.SetDefault("client.client_type", cfg.Client.ClientType)
	v.SetDefault("client.token", cfg.Client.Token)
	v.SetDefault("client.dial_timeout", cfg.Client.DialTimeout)
	v.SetDefault("client.ping_interval", cfg.Client.PingInterval)
	v.SetDefault("client.no_color", cfg.Client.NoColor)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Server.Port == 0 {
		c.Server.Port = transport.DefaultPort
	}
	if c.Server.HandshakeTimeout <= 0 {
		return fmt.Errorf("invalid server.handshake_timeout: %s", c.Server.HandshakeTimeout)
	}
	if c.Server.AcceptRate < 0 {
		return fmt.Errorf("invalid server.accept_rate: %d", c.Server.AcceptRate)
	}
	if c.Server.AcceptRate > 0 && c.Server.AcceptBurst < 1 {
		c.Server.AcceptBurst = 1
	}

	if _, _, err := textile.SplitAddress(c.Client.Server); err != nil {
		return fmt.Errorf("invalid client.server: %w", err)
	}
	if _, ok := textile.LookupEncoding(c.Client.Encoding); !ok {
		return fmt.Errorf("invalid client.encoding: %q", c.Client.Encoding)
	}
	if strings.TrimSpace(c.Client.Name) == "" {
		c.Client.Name = "guest"
	}
	return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
