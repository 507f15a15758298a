package channel

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"

	"github.com/dmarion/flash32w/protocol"
)

// USB identifiers of the bridge.
const (
	DefaultVendorID       = 0x0483
	DefaultProductID      = 0x5740
	DefaultProductIDAlt   = 0x5741
	defaultOutEndpoint    = 0x03
	defaultInEndpoint     = 0x81
	defaultUSBConfigIndex = 1
)

// CDC ACM class requests.
const (
	cdcRequestType          = 0x21
	cdcSetLineCoding        = 0x20
	cdcSetControlLineState  = 0x22
	cdcControlLineDTRAndRTS = 0x03
	cdcLineCodingSize       = 7
	cdcDataBits             = 8
)

// USBConfig selects and tunes the USB bridge transport.
type USBConfig struct {
	// VendorID of the bridge
	VendorID uint16

	// ProductIDs are tried in order
	ProductIDs []uint16

	// Timeout bounds every bulk transfer
	Timeout time.Duration
}

// DefaultUSBConfig returns the configuration for the stock bridge.
func DefaultUSBConfig() USBConfig {
	return USBConfig{
		VendorID:   DefaultVendorID,
		ProductIDs: []uint16{DefaultProductID, DefaultProductIDAlt},
		Timeout:    DefaultTimeout,
	}
}

// USB is a Channel over the bridge's bulk endpoints.
type USB struct {
	cfg  USBConfig
	ctx  *gousb.Context
	dev  *gousb.Device
	conf *gousb.Config
	intf *gousb.Interface
	out  *gousb.OutEndpoint
	in   *gousb.InEndpoint
}

// OpenUSB finds the first bridge matching cfg and claims its data interface.
func OpenUSB(cfg USBConfig) (*USB, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if len(cfg.ProductIDs) == 0 {
		cfg.ProductIDs = DefaultUSBConfig().ProductIDs
	}

	u := &USB{cfg: cfg, ctx: gousb.NewContext()}
	if err := u.open(); err != nil {
		u.ctx.Close()
		return nil, err
	}
	return u, nil
}

// USBOpener returns an Opener for cfg.
func USBOpener(cfg USBConfig) Opener {
	return func() (Channel, error) {
		return OpenUSB(cfg)
	}
}

func (u *USB) open() error {
	const op = "open usb"

	var dev *gousb.Device
	for _, pid := range u.cfg.ProductIDs {
		d, err := u.ctx.OpenDeviceWithVIDPID(gousb.ID(u.cfg.VendorID), gousb.ID(pid))
		if err != nil {
			return protocol.WrapError(op, protocol.ErrTransport, err)
		}
		if d != nil {
			dev = d
			break
		}
	}
	if dev == nil {
		return protocol.NewError(op, protocol.ErrTransport, "no device %04x:%v found", u.cfg.VendorID, u.cfg.ProductIDs)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		return protocol.WrapError(op, protocol.ErrTransport, err)
	}
	dev.ControlTimeout = u.cfg.Timeout

	conf, err := dev.Config(defaultUSBConfigIndex)
	if err != nil {
		dev.Close()
		return protocol.WrapError(op, protocol.ErrTransport, err)
	}

	num, alt, err := dataInterface(conf.Desc)
	if err != nil {
		conf.Close()
		dev.Close()
		return protocol.WrapError(op, protocol.ErrTransport, err)
	}

	intf, err := conf.Interface(num, alt)
	if err != nil {
		conf.Close()
		dev.Close()
		return protocol.WrapError(op, protocol.ErrTransport, err)
	}

	out, err := intf.OutEndpoint(defaultOutEndpoint)
	if err == nil {
		u.in, err = intf.InEndpoint(defaultInEndpoint & 0x0F)
	}
	if err != nil {
		intf.Close()
		conf.Close()
		dev.Close()
		return protocol.WrapError(op, protocol.ErrTransport, err)
	}

	u.dev, u.conf, u.intf, u.out = dev, conf, intf, out
	return nil
}

// dataInterface locates the interface carrying the bulk endpoints.
func dataInterface(desc gousb.ConfigDesc) (int, int, error) {
	for _, iface := range desc.Interfaces {
		for _, setting := range iface.AltSettings {
			_, hasOut := setting.Endpoints[gousb.EndpointAddress(defaultOutEndpoint)]
			_, hasIn := setting.Endpoints[gousb.EndpointAddress(defaultInEndpoint)]
			if hasOut && hasIn {
				return setting.Number, setting.Alternate, nil
			}
		}
	}
	return 0, 0, errors.New("no interface with bulk endpoints 0x03/0x81")
}

// Send implements Channel.
func (u *USB) Send(p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), u.cfg.Timeout)
	defer cancel()

	n, err := u.out.WriteContext(ctx, p)
	if err != nil {
		return n, protocol.WrapError("usb send", protocol.ErrTransport, err)
	}
	return n, nil
}

// Receive implements Channel.
func (u *USB) Receive(p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), u.cfg.Timeout)
	defer cancel()

	n, err := u.in.ReadContext(ctx, p)
	if err != nil {
		if isTimeout(err) {
			return n, nil
		}
		return n, protocol.WrapError("usb receive", protocol.ErrTransport, err)
	}
	return n, nil
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, gousb.ErrorTimeout) ||
		errors.Is(err, gousb.TransferTimedOut) ||
		errors.Is(err, gousb.TransferCancelled)
}

// SetBaud sends CDC SET_LINE_CODING (8N1 at rate) followed by
// SET_CONTROL_LINE_STATE with DTR and RTS raised.
func (u *USB) SetBaud(rate int) error {
	coding := make([]byte, cdcLineCodingSize)
	binary.LittleEndian.PutUint32(coding, uint32(rate))
	coding[6] = cdcDataBits

	if _, err := u.dev.Control(cdcRequestType, cdcSetLineCoding, 0, 0, coding); err != nil {
		return protocol.WrapError("set baud", protocol.ErrTransport, fmt.Errorf("line coding %d: %w", rate, err))
	}
	if _, err := u.dev.Control(cdcRequestType, cdcSetControlLineState, cdcControlLineDTRAndRTS, 0, nil); err != nil {
		return protocol.WrapError("set baud", protocol.ErrTransport, fmt.Errorf("control line state: %w", err))
	}
	return nil
}

// Reopen implements Channel.
func (u *USB) Reopen() error {
	u.release()
	return u.open()
}

func (u *USB) release() {
	if u.intf != nil {
		u.intf.Close()
		u.intf = nil
	}
	if u.conf != nil {
		u.conf.Close()
		u.conf = nil
	}
	if u.dev != nil {
		u.dev.Close()
		u.dev = nil
	}
	u.out, u.in = nil, nil
}

// Close implements Channel.
func (u *USB) Close() error {
	u.release()
	return u.ctx.Close()
}
