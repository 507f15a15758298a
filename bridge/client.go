package bridge

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"

	"github.com/dmarion/flash32w/channel"
	"github.com/dmarion/flash32w/protocol"
)

// Client sends control commands to the bridge. The channel must already be
// at the bridge command baud rate.
type Client struct {
	ch  channel.Channel
	cfg Config
	log *zap.Logger
}

// NewClient creates a Client borrowing ch.
func NewClient(ch channel.Channel, opts ...Option) *Client {
	if ch == nil {
		panic("channel cannot be nil")
	}
	cfg := newConfig(opts)
	return &Client{ch: ch, cfg: cfg, log: cfg.Logger.Named("bridge")}
}

// Query1 sends a single-opcode command and returns its one-byte value.
func (c *Client) Query1(op byte) (byte, error) {
	value, err := c.exchange(op, 1, op)
	if err != nil {
		return 0, err
	}
	return value[0], nil
}

// Query4 sends a single-opcode command and returns its four value bytes
// assembled big-endian.
func (c *Client) Query4(op byte) (uint32, error) {
	value, err := c.exchange(op, 4, op)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(value), nil
}

// SetLine sends a two-byte line control command, e.g. SetLine(BridgeSetReset, 1).
func (c *Client) SetLine(op, arg byte) (byte, error) {
	value, err := c.exchange(op, 1, op, arg)
	if err != nil {
		return 0, err
	}
	return value[0], nil
}

// Send transmits a single-opcode command without waiting for a reply.
func (c *Client) Send(op byte) error {
	frame, err := protocol.BuildBridgeCmd(op)
	if err != nil {
		return err
	}
	if err := c.send(frame); err != nil {
		return fmt.Errorf("%s: %w", protocol.BridgeOpName(op), err)
	}
	return nil
}

// exchange sends a command frame and reads back a response carrying want value bytes.
func (c *Client) exchange(op byte, want int, args ...byte) ([]byte, error) {
	name := protocol.BridgeOpName(op)

	frame, err := protocol.BuildBridgeCmd(args...)
	if err != nil {
		return nil, err
	}
	if err := c.send(frame); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	reply, err := c.receive(want + protocol.BridgeFrameOverhead)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	value, err := protocol.ParseBridgeResponse(reply, want)
	if err != nil {
		c.log.Debug("rejected bridge response", zap.String("op", name), zap.Binary("reply", reply))
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return value, nil
}

// receive reads one response of at least n bytes. Each read takes a whole
// transfer, so bytes beyond n are kept for the frame length check.
func (c *Client) receive(n int) ([]byte, error) {
	buf := make([]byte, protocol.DefaultResponseBufferSize)
	got := 0
	for got < n && got < len(buf) {
		k, err := c.ch.Receive(buf[got:])
		if err != nil {
			return nil, err
		}
		if k == 0 {
			break
		}
		got += k
	}
	return buf[:got], nil
}

func (c *Client) send(frame []byte) error {
	n, err := c.ch.Send(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return protocol.NewError("send", protocol.ErrTransport, "short write: %d of %d bytes", n, len(frame))
	}
	return nil
}

// CodeType reports which image the bridge is running:
// protocol.CodeTypeBootloader or protocol.CodeTypeApplication.
func (c *Client) CodeType() (byte, error) {
	return c.Query1(protocol.BridgeGetCodeType)
}

// ApplicationPresent reports whether the bridge holds a valid application image.
func (c *Client) ApplicationPresent() (bool, error) {
	v, err := c.Query1(protocol.BridgeIsAppPresent)
	return v != 0, err
}

// Info describes the bridge firmware.
type Info struct {
	BootloaderVersion  protocol.Version
	ApplicationVersion protocol.Version
}

// Info queries the bridge bootloader and application versions.
func (c *Client) Info() (*Info, error) {
	bl, err := c.Query4(protocol.BridgeGetBootloaderVersion)
	if err != nil {
		return nil, err
	}
	app, err := c.Query4(protocol.BridgeGetAppVersion)
	if err != nil {
		return nil, err
	}

	info := &Info{
		BootloaderVersion:  protocol.Version(bl),
		ApplicationVersion: protocol.Version(app),
	}
	c.log.Debug("bridge info",
		zap.Stringer("bootloader", info.BootloaderVersion),
		zap.Stringer("application", info.ApplicationVersion),
	)
	return info, nil
}
