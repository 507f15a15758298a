package bridge

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dmarion/flash32w/channel"
	"github.com/dmarion/flash32w/internal/retry"
	"github.com/dmarion/flash32w/ymodem"
)

// Config holds the bridge configuration.
type Config struct {
	// Logger is used for logging operations
	Logger *zap.Logger

	// Poll bounds the code-type polls while waiting for the bridge bootloader
	Poll retry.Policy

	// HandshakeAttempts bounds the wait for the YMODEM 'C' handshake
	HandshakeAttempts int

	// MaxResends bounds NAK retransmissions of a single YMODEM block
	MaxResends int

	// ToggleDelay is the pause between the reset line toggles
	ToggleDelay time.Duration

	// ReopenDelay is the pause between closing and reopening the channel
	// while the bridge re-enumerates
	ReopenDelay time.Duration

	// BridgeBaud selects the bridge command mode
	BridgeBaud int

	// BootloaderBaud selects the bridge bootloader mode
	BootloaderBaud int

	// TargetBaud selects pass-through to the target ROM bootloader
	TargetBaud int

	// TransferProgress is called after every YMODEM data block (optional)
	TransferProgress ymodem.ProgressCallback

	// Sleep replaces the context-aware sleep, used by tests
	Sleep func(ctx context.Context, d time.Duration) error
}

func defaultConfig() Config {
	return Config{
		Logger:            zap.NewNop(),
		Poll:              retry.Policy{Attempts: 100, Delay: 100 * time.Millisecond},
		HandshakeAttempts: ymodem.DefaultHandshakeAttempts,
		MaxResends:        ymodem.DefaultMaxResends,
		ToggleDelay:       100 * time.Millisecond,
		ReopenDelay:       100 * time.Millisecond,
		BridgeBaud:        channel.BaudBridge,
		BootloaderBaud:    channel.BaudBridgeBootloader,
		TargetBaud:        channel.BaudTarget,
		Sleep:             retry.Sleep,
	}
}

func newConfig(opts []Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Poll.Sleep = cfg.Sleep
	return cfg
}

// Option is a functional option for configuring bridge components.
type Option func(*Config)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithPoll sets the attempt count and delay for code-type polling.
//
// Example:
//
//	up := bridge.NewUpdater(ch, bridge.WithPoll(50, 200*time.Millisecond))
func WithPoll(attempts int, delay time.Duration) Option {
	return func(c *Config) {
		if attempts > 0 {
			c.Poll.Attempts = attempts
		}
		if delay >= 0 {
			c.Poll.Delay = delay
		}
	}
}

// WithHandshakeAttempts sets how many reads wait for the YMODEM handshake.
func WithHandshakeAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.HandshakeAttempts = n
		}
	}
}

// WithMaxResends bounds NAK retransmissions of a YMODEM block.
func WithMaxResends(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxResends = n
		}
	}
}

// WithBaudRates overrides the mode-selecting line rates.
func WithBaudRates(bridgeBaud, bootloaderBaud, targetBaud int) Option {
	return func(c *Config) {
		if bridgeBaud > 0 {
			c.BridgeBaud = bridgeBaud
		}
		if bootloaderBaud > 0 {
			c.BootloaderBaud = bootloaderBaud
		}
		if targetBaud > 0 {
			c.TargetBaud = targetBaud
		}
	}
}

// WithTransferProgress sets a callback for bridge firmware transfers.
func WithTransferProgress(cb ymodem.ProgressCallback) Option {
	return func(c *Config) {
		c.TransferProgress = cb
	}
}

// WithSleep replaces the sleep used between toggles and polls.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Config) {
		if sleep != nil {
			c.Sleep = sleep
		}
	}
}
