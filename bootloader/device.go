package bootloader

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dmarion/flash32w/channel"
	"github.com/dmarion/flash32w/protocol"
)

// Device speaks the target's ROM bootloader protocol over a borrowed channel.
//
// Every command requires the session to be in protocol.StateBootloaderActive.
// Region bounds are checked before the state, so an out-of-range request
// never touches the channel.
type Device struct {
	ch    channel.Channel
	state protocol.SessionState
	log   *zap.Logger
}

// NewDevice creates a Device borrowing ch. The session starts unresponsive.
func NewDevice(ch channel.Channel, logger *zap.Logger) *Device {
	if ch == nil {
		panic("channel cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Device{ch: ch, state: protocol.StateUnresponsive, log: logger.Named("rom")}
}

// State returns the current session state.
func (d *Device) State() protocol.SessionState {
	return d.state
}

// SetState records a session state transition. It is passed to the boot
// entry sequencer as its protocol.StateFunc.
func (d *Device) SetState(s protocol.SessionState) {
	if s != d.state {
		d.log.Debug("session state", zap.Stringer("from", d.state), zap.Stringer("to", s))
	}
	d.state = s
}

func (d *Device) requireActive(op string) error {
	if d.state != protocol.StateBootloaderActive {
		return protocol.NewError(op, protocol.ErrProtocolViolation, "bootloader not active (%s)", d.state)
	}
	return nil
}

// Ping sends 0x7F and expects a single acknowledge.
func (d *Device) Ping() error {
	const op = "ping"
	if err := d.requireActive(op); err != nil {
		return err
	}
	if err := d.send(op, protocol.BuildPingCmd()); err != nil {
		return err
	}
	return d.ack(op)
}

// GetVersion returns the bootloader version and the opcodes it supports.
func (d *Device) GetVersion() (byte, []byte, error) {
	payload, err := d.info("get", protocol.CmdGet)
	if err != nil {
		return 0, nil, err
	}
	return payload[0], payload[1:], nil
}

// GetID returns the device product ID.
func (d *Device) GetID() (uint16, error) {
	const op = "get id"
	payload, err := d.info(op, protocol.CmdGetID)
	if err != nil {
		return 0, err
	}
	if len(payload) < 2 {
		return 0, protocol.NewError(op, protocol.ErrFraming, "product id has %d bytes, expected 2", len(payload))
	}
	return uint16(payload[0])<<8 | uint16(payload[1]), nil
}

// info runs a get/get-id exchange: [ACK][N][PAYLOAD(N+1)][ACK].
func (d *Device) info(op string, opcode byte) ([]byte, error) {
	if err := d.requireActive(op); err != nil {
		return nil, err
	}
	if err := d.send(op, protocol.BuildCommand(opcode)); err != nil {
		return nil, err
	}

	reply, err := d.receiveInfo()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	payload, err := protocol.ParseInfoResponse(op, reply)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), payload...), nil
}

// receiveInfo reads until the length announced in byte 1 has arrived or the
// channel stops making progress.
func (d *Device) receiveInfo() ([]byte, error) {
	buf := make([]byte, protocol.DefaultResponseBufferSize)
	got := 0
	for {
		n, err := d.ch.Receive(buf[got:])
		if err != nil {
			return nil, err
		}
		got += n
		if n == 0 || got == len(buf) {
			break
		}
		if got >= 2 && got >= int(buf[1])+4 {
			break
		}
	}
	return buf[:got], nil
}

// ReadMemory reads n bytes at addr, n in [1, protocol.MaxReadLength].
//
// After the data phase a get-id is issued to confirm the bootloader
// survived the read; if it fails the data is discarded.
func (d *Device) ReadMemory(addr uint32, n int) ([]byte, error) {
	const op = "read memory"

	region, err := protocol.NewReadRegion(addr, n)
	if err != nil {
		return nil, err
	}
	if err := d.requireActive(op); err != nil {
		return nil, err
	}

	if err := d.command(op, protocol.CmdReadMemory, addr); err != nil {
		return nil, err
	}

	length, err := protocol.BuildReadLength(region)
	if err != nil {
		return nil, err
	}
	if err := d.send(op, length); err != nil {
		return nil, annotate(err, addr)
	}

	// The acknowledge of the length phase leads the data.
	frame, err := channel.ReceiveFull(d.ch, region.Length+1)
	if err != nil {
		return nil, protocol.WrapError(op, protocol.ErrTransport, err).AtAddress(addr)
	}
	data, err := protocol.ParseReadResponse(region, frame)
	if err != nil {
		return nil, err
	}

	if _, err := d.GetID(); err != nil {
		return nil, protocol.WrapError(op, protocol.ErrProtocolViolation,
			fmt.Errorf("liveness check after read failed: %w", err)).AtAddress(addr)
	}

	return data, nil
}

// WriteMemory writes data at addr, len(data) in [1, protocol.MaxWriteLength].
func (d *Device) WriteMemory(addr uint32, data []byte) error {
	const op = "write memory"

	if _, err := protocol.NewWriteRegion(addr, len(data)); err != nil {
		return err
	}
	if err := d.requireActive(op); err != nil {
		return err
	}

	if err := d.command(op, protocol.CmdWriteMemory, addr); err != nil {
		return err
	}

	payload, err := protocol.BuildWritePayload(data)
	if err != nil {
		return err
	}
	if err := d.send(op, payload); err != nil {
		return annotate(err, addr)
	}
	return annotate(d.ack(op+" data"), addr)
}

// Erase erases count pages starting at page start.
func (d *Device) Erase(start, count int) error {
	const op = "erase"

	pages, err := protocol.NewPageRange(start, count)
	if err != nil {
		return err
	}
	if err := d.requireActive(op); err != nil {
		return err
	}

	if err := d.send(op, protocol.BuildCommand(protocol.CmdErase)); err != nil {
		return err
	}
	if err := d.ack(op + " command"); err != nil {
		return err
	}

	payload, err := protocol.BuildErasePayload(pages)
	if err != nil {
		return err
	}
	if err := d.send(op, payload); err != nil {
		return err
	}
	return d.ack(op + " pages")
}

// command runs the opcode and address phases shared by read and write.
func (d *Device) command(op string, opcode byte, addr uint32) error {
	if err := d.send(op, protocol.BuildCommand(opcode)); err != nil {
		return annotate(err, addr)
	}
	if err := d.ack(op + " command"); err != nil {
		return annotate(err, addr)
	}
	if err := d.send(op, protocol.BuildAddress(addr)); err != nil {
		return annotate(err, addr)
	}
	return annotate(d.ack(op+" address"), addr)
}

func (d *Device) send(op string, frame []byte) error {
	n, err := d.ch.Send(frame)
	if err != nil {
		if protocol.KindOf(err) == nil {
			err = protocol.WrapError(op, protocol.ErrTransport, err)
		}
		return err
	}
	if n != len(frame) {
		return protocol.NewError(op, protocol.ErrTransport, "short write: %d of %d bytes", n, len(frame))
	}
	return nil
}

// ack reads a single acknowledge byte for phase.
func (d *Device) ack(phase string) error {
	buf := make([]byte, protocol.DefaultResponseBufferSize)
	n, err := d.ch.Receive(buf)
	if err != nil {
		if protocol.KindOf(err) == nil {
			err = protocol.WrapError(phase, protocol.ErrTransport, err)
		}
		return err
	}
	return protocol.CheckAck(phase, buf[:n])
}

// annotate attaches addr to a *protocol.Error that has none.
func annotate(err error, addr uint32) error {
	if pe, ok := err.(*protocol.Error); ok && !pe.HasAddress {
		return pe.AtAddress(addr)
	}
	return err
}
