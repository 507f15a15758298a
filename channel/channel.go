// Package channel provides the byte transports the protocol clients run over.
//
// A Channel is exclusively owned by one session. Protocol clients borrow it
// for the duration of an operation and never close it themselves.
//
//	ch, err := channel.OpenUSB(channel.DefaultUSBConfig())
//	if err != nil {
//	    return err
//	}
//	defer ch.Close()
package channel

import "time"

// Channel is a blocking byte transport with a fixed per-call timeout.
type Channel interface {
	// Send writes the whole frame in one transfer and returns the count written.
	Send(p []byte) (int, error)

	// Receive reads up to len(p) bytes. A per-call timeout with no data
	// returns (0, nil).
	Receive(p []byte) (int, error)

	// SetBaud sets the line rate. The bridge selects its mode from the rate.
	SetBaud(rate int) error

	// Reopen closes and reopens the same device, e.g. after the bridge
	// re-enumerates on a mode switch.
	Reopen() error

	// Close releases the transport.
	Close() error
}

// Opener opens a Channel.
type Opener func() (Channel, error)

// Well-known line rates. The bridge treats 50 baud as its command mode and
// 10 baud as its own bootloader mode; anything else is passed through to
// the target.
const (
	BaudBridge           = 50
	BaudBridgeBootloader = 10
	BaudTarget           = 115200
)

// DefaultTimeout is the per-call transport timeout.
const DefaultTimeout = 500 * time.Millisecond
