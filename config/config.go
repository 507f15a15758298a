// Package config provides YAML-based configuration loading for flash32w.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	// Transport selects how the bridge is reached
	Transport TransportConfig `mapstructure:"transport"`

	// Baud holds the mode-selecting line rates
	Baud BaudConfig `mapstructure:"baud"`

	// Retry bounds the bridge code-type polls
	Retry RetryConfig `mapstructure:"retry"`

	// Handshake bounds the YMODEM handshake wait
	Handshake HandshakeConfig `mapstructure:"handshake"`

	// Flash controls target programming
	Flash FlashConfig `mapstructure:"flash"`

	// Trace logs every transfer as hex at debug level
	Trace bool `mapstructure:"trace"`

	// Log holds logging configuration
	Log LogConfig `mapstructure:"log"`
}

// TransportConfig selects the USB or tty transport.
type TransportConfig struct {
	// Kind: usb or serial
	Kind string `mapstructure:"kind"`
	// Port is the tty path when Kind is serial
	Port string `mapstructure:"port"`
	// VendorID of the bridge when Kind is usb
	VendorID int `mapstructure:"vendor_id"`
	// ProductIDs are tried in order when Kind is usb
	ProductIDs []int `mapstructure:"product_ids"`
	// Timeout bounds every transfer
	Timeout time.Duration `mapstructure:"timeout"`
}

// BaudConfig holds the line rates that select the bridge mode.
type BaudConfig struct {
	Bridge           int `mapstructure:"bridge"`
	BridgeBootloader int `mapstructure:"bridge_bootloader"`
	Target           int `mapstructure:"target"`
}

// RetryConfig bounds polling loops.
type RetryConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
}

// HandshakeConfig bounds the YMODEM handshake.
type HandshakeConfig struct {
	Attempts int `mapstructure:"attempts"`
}

// FlashConfig controls target programming.
type FlashConfig struct {
	// BaseAddress is where images are written
	BaseAddress uint32 `mapstructure:"base_address"`
	// Verify reads the image back after writing
	Verify bool `mapstructure:"verify"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Default returns a Config populated with the stock bridge settings.
func Default() *Config {
	return &Config{
		Transport: TransportConfig{
			Kind:       "usb",
			Port:       "/dev/ttyACM0",
			VendorID:   0x0483,
			ProductIDs: []int{0x5740, 0x5741},
			Timeout:    500 * time.Millisecond,
		},
		Baud: BaudConfig{
			Bridge:           50,
			BridgeBootloader: 10,
			Target:           115200,
		},
		Retry:     RetryConfig{Attempts: 100, Delay: 100 * time.Millisecond},
		Handshake: HandshakeConfig{Attempts: 100},
		Flash:     FlashConfig{BaseAddress: 0x08000000},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				Filename:   "flash32w.log",
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
		},
	}
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix FLASH32W and `.`/`-` are replaced with `_`.
// Example: FLASH32W_TRANSPORT_KIND=serial
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FLASH32W")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults so env-only configs work
	v.SetDefault("transport.kind", cfg.Transport.Kind)
	v.SetDefault("transport.port", cfg.Transport.Port)
	v.SetDefault("transport.vendor_id", cfg.Transport.VendorID)
	v.SetDefault("transport.product_ids", cfg.Transport.ProductIDs)
	v.SetDefault("transport.timeout", cfg.Transport.Timeout)
	v.SetDefault("baud.bridge", cfg.Baud.Bridge)
	v.SetDefault("baud.bridge_bootloader", cfg.Baud.BridgeBootloader)
	v.SetDefault("baud.target", cfg.Baud.Target)
	v.SetDefault("retry.attempts", cfg.Retry.Attempts)
	v.SetDefault("retry.delay", cfg.Retry.Delay)
	v.SetDefault("handshake.attempts", cfg.Handshake.Attempts)
	v.SetDefault("flash.base_address", cfg.Flash.BaseAddress)
	v.SetDefault("flash.verify", cfg.Flash.Verify)
	v.SetDefault("trace", cfg.Trace)
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

	if path == "" {
		if envPath := os.Getenv("FLASH32W_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("flash32w")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".flash32w"))
		}
	}

	// a missing config file leaves defaults and env in place
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

func (c *Config) validate() error {
	c.Transport.Kind = strings.ToLower(strings.TrimSpace(c.Transport.Kind))
	switch c.Transport.Kind {
	case "usb", "serial":
	default:
		return fmt.Errorf("invalid transport.kind: %q", c.Transport.Kind)
	}
	if c.Transport.VendorID < 0 || c.Transport.VendorID > 0xFFFF {
		return fmt.Errorf("invalid transport.vendor_id: 0x%X", c.Transport.VendorID)
	}
	for _, pid := range c.Transport.ProductIDs {
		if pid < 0 || pid > 0xFFFF {
			return fmt.Errorf("invalid transport.product_ids entry: 0x%X", pid)
		}
	}
	if c.Transport.Timeout <= 0 {
		return fmt.Errorf("invalid transport.timeout: %s", c.Transport.Timeout)
	}
	if c.Baud.Bridge <= 0 || c.Baud.BridgeBootloader <= 0 || c.Baud.Target <= 0 {
		return fmt.Errorf("baud rates must be positive: %+v", c.Baud)
	}
	if c.Retry.Attempts <= 0 {
		return fmt.Errorf("invalid retry.attempts: %d", c.Retry.Attempts)
	}
	if c.Retry.Delay < 0 {
		return fmt.Errorf("invalid retry.delay: %s", c.Retry.Delay)
	}
	if c.Handshake.Attempts <= 0 {
		return fmt.Errorf("invalid handshake.attempts: %d", c.Handshake.Attempts)
	}

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
	return nil
}
