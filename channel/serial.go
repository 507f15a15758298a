package channel

import (
	"time"

	"go.bug.st/serial"

	"github.com/dmarion/flash32w/protocol"
)

// DefaultSerialPort is the tty the bridge enumerates as on Linux.
const DefaultSerialPort = "/dev/ttyACM0"

// SerialConfig selects the tty transport.
type SerialConfig struct {
	// Port is the device path, e.g. /dev/ttyACM0
	Port string

	// Baud is the initial line rate
	Baud int

	// Timeout bounds every read
	Timeout time.Duration
}

// Serial is a Channel over the bridge's CDC ACM tty.
type Serial struct {
	cfg  SerialConfig
	port serial.Port
}

// OpenSerial opens the tty named by cfg.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.Port == "" {
		cfg.Port = DefaultSerialPort
	}
	if cfg.Baud == 0 {
		cfg.Baud = BaudBridge
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	s := &Serial{cfg: cfg}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// SerialOpener returns an Opener for cfg.
func SerialOpener(cfg SerialConfig) Opener {
	return func() (Channel, error) {
		return OpenSerial(cfg)
	}
}

func (s *Serial) mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: s.cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

func (s *Serial) open() error {
	port, err := serial.Open(s.cfg.Port, s.mode())
	if err != nil {
		return protocol.WrapError("open "+s.cfg.Port, protocol.ErrTransport, err)
	}
	if err := port.SetReadTimeout(s.cfg.Timeout); err != nil {
		port.Close()
		return protocol.WrapError("open "+s.cfg.Port, protocol.ErrTransport, err)
	}
	s.port = port
	return nil
}

// Send implements Channel.
func (s *Serial) Send(p []byte) (int, error) {
	n, err := s.port.Write(p)
	if err != nil {
		return n, protocol.WrapError("serial send", protocol.ErrTransport, err)
	}
	return n, nil
}

// Receive implements Channel. The port's read timeout yields (0, nil).
func (s *Serial) Receive(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if err != nil {
		return n, protocol.WrapError("serial receive", protocol.ErrTransport, err)
	}
	return n, nil
}

// SetBaud implements Channel.
func (s *Serial) SetBaud(rate int) error {
	s.cfg.Baud = rate
	if err := s.port.SetMode(s.mode()); err != nil {
		return protocol.WrapError("set baud", protocol.ErrTransport, err)
	}
	return nil
}

// Reopen implements Channel. The last baud rate set is restored.
func (s *Serial) Reopen() error {
	if s.port != nil {
		s.port.Close()
		s.port = nil
	}
	return s.open()
}

// Close implements Channel.
func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
