// Package config loads virtrpcd's configuration from a YAML file, with
// environment variables (VIRTRPCD_*) overriding values the file sets, and
// defaults for whatever is left unset, using viper for sourcing and
// mapstructure for decoding. Command-line flags are not read here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the top-level daemon configuration.
type Config struct {
	Listen   ListenConfig   `mapstructure:"listen" yaml:"listen"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Admin    AdminAPIConfig `mapstructure:"admin" yaml:"admin"`
	Archive  ArchiveConfig  `mapstructure:"archive" yaml:"archive"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// ListenConfig describes the RPC socket and its optional TLS wrapping.
type ListenConfig struct {
	Address  string    `mapstructure:"address" yaml:"address"`
	TLS      TLSConfig `mapstructure:"tls" yaml:"tls"`
	ReadOnly bool      `mapstructure:"read_only" yaml:"read_only"`
}

type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	CertFile string `mapstructure:"cert_file" yaml:"cert_file"`
	KeyFile  string `mapstructure:"key_file" yaml:"key_file"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// AuthConfig selects the single SASL mechanism the server offers and its
// backing credential store, plus the throttle and optional Kerberos setup.
type AuthConfig struct {
	Mechanism string           `mapstructure:"mechanism" yaml:"mechanism"` // "PLAIN" or "GSSAPI"
	CredStore CredStoreConfig  `mapstructure:"cred_store" yaml:"cred_store"`
	Throttle  ThrottleConfig   `mapstructure:"throttle" yaml:"throttle"`
	Kerberos  KerberosConfig   `mapstructure:"kerberos" yaml:"kerberos"`
}

type CredStoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // memory, sqlite, postgres
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
}

type ThrottleConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	Path          string        `mapstructure:"path" yaml:"path"`
	MaxAttempts   int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Window        time.Duration `mapstructure:"window" yaml:"window"`
}

type KerberosConfig struct {
	Enabled          bool   `mapstructure:"enabled" yaml:"enabled"`
	KeytabPath       string `mapstructure:"keytab_path" yaml:"keytab_path"`
	ServicePrincipal string `mapstructure:"service_principal" yaml:"service_principal"`
	Krb5Conf         string `mapstructure:"krb5_conf" yaml:"krb5_conf"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

type AdminAPIConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Address   string `mapstructure:"address" yaml:"address"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

type ArchiveConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // none, fs, s3
	Path    string `mapstructure:"path" yaml:"path"`
	Bucket  string `mapstructure:"bucket" yaml:"bucket"`
	Region  string `mapstructure:"region" yaml:"region"`
}

// Default returns the built-in defaults, used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with the daemon's defaults.
func ApplyDefaults(c *Config) {
	if c.Listen.Address == "" {
		c.Listen.Address = "0.0.0.0:16509"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Auth.Mechanism == "" {
		c.Auth.Mechanism = "PLAIN"
	}
	if c.Auth.CredStore.Backend == "" {
		c.Auth.CredStore.Backend = "memory"
	}
	if c.Auth.Throttle.MaxAttempts == 0 {
		c.Auth.Throttle.MaxAttempts = 5
	}
	if c.Auth.Throttle.Window == 0 {
		c.Auth.Throttle.Window = 10 * time.Minute
	}
	if c.Auth.Throttle.Path == "" {
		c.Auth.Throttle.Path = "/var/lib/virtrpcd/throttle"
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9120
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4317"
	}
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 1.0
	}
	if c.Admin.Address == "" {
		c.Admin.Address = "127.0.0.1:16510"
	}
	if c.Archive.Backend == "" {
		c.Archive.Backend = "none"
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Validate rejects a config that would produce an unsafe or inconsistent
// daemon. Runs as a separate pass after defaulting.
func Validate(c *Config) error {
	switch strings.ToUpper(c.Auth.Mechanism) {
	case "PLAIN", "GSSAPI":
	default:
		return fmt.Errorf("auth.mechanism must be PLAIN or GSSAPI, got %q", c.Auth.Mechanism)
	}
	if strings.ToUpper(c.Auth.Mechanism) == "GSSAPI" && !c.Auth.Kerberos.Enabled {
		return fmt.Errorf("auth.mechanism is GSSAPI but auth.kerberos.enabled is false")
	}
	switch c.Auth.CredStore.Backend {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("auth.cred_store.backend must be memory, sqlite or postgres, got %q", c.Auth.CredStore.Backend)
	}
	switch c.Archive.Backend {
	case "none", "fs", "s3":
	default:
		return fmt.Errorf("archive.backend must be none, fs or s3, got %q", c.Archive.Backend)
	}
	if c.Listen.TLS.Enabled && (c.Listen.TLS.CertFile == "" || c.Listen.TLS.KeyFile == "") {
		return fmt.Errorf("listen.tls.enabled requires cert_file and key_file")
	}
	return nil
}

// Load reads configuration from configPath (or the default search path if
// empty), environment variables prefixed VIRTRPCD_, and defaults. When no
// config file is found it returns Default() as is: the environment is not
// consulted in that case.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return Default(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("VIRTRPCD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(defaultConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read config file: %w", err)
	}
	return true, nil
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "virtrpcd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "virtrpcd")
}

// DefaultConfigPath returns the path Load searches when configPath is empty.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.yaml")
}
