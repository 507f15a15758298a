package bootloader

import (
	"go.uber.org/zap"

	"github.com/dmarion/flash32w/protocol"
)

// DefaultBaseAddress is the start of the target's main flash.
const DefaultBaseAddress = 0x08000000

// Config holds the programmer configuration.
type Config struct {
	// ProgressCallback is called during programming to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations
	Logger *zap.Logger

	// BaseAddress is where the image is written
	BaseAddress uint32

	// ChunkSize is the number of bytes per write-memory command
	ChunkSize int

	// Fill pads the final chunk
	Fill byte

	// VerifyAfterProgram reads the image back and compares it after writing
	VerifyAfterProgram bool
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Logger:      zap.NewNop(),
		BaseAddress: DefaultBaseAddress,
		ChunkSize:   protocol.MaxWriteLength,
		Fill:        0xFF,
	}
}

// Option is a functional option for configuring the Programmer.
type Option func(*Config)

// WithProgressCallback sets a callback function to track programming progress.
//
// Example:
//
//	prog := bootloader.New(ch, seq,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the programmer operations.
//
// Example:
//
//	prog := bootloader.New(ch, seq, bootloader.WithLogger(logger))
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithBaseAddress sets the flash address the image is written to.
// Default is 0x08000000.
//
// Example:
//
//	prog := bootloader.New(ch, seq, bootloader.WithBaseAddress(0x08001000))
func WithBaseAddress(addr uint32) Option {
	return func(c *Config) {
		c.BaseAddress = addr
	}
}

// WithChunkSize sets the number of bytes per write-memory command.
// Values outside [1, 256] are ignored.
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size <= protocol.MaxWriteLength {
			c.ChunkSize = size
		}
	}
}

// WithVerify enables or disables read-back verification after programming.
// Default is false.
//
// Example:
//
//	prog := bootloader.New(ch, seq, bootloader.WithVerify(true))
func WithVerify(verify bool) Option {
	return func(c *Config) {
		c.VerifyAfterProgram = verify
	}
}
