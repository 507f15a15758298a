package bootloader

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Fixed locations of identifiers in the target's flash information area.
const (
	AddrBurnedEUI64     = 0x080407A2
	AddrCIBOptionBytes  = 0x08040800
	AddrCIBManufacturer = 0x0804081A
	AddrCIBBoardName    = 0x0804082A
	AddrCIBPHYConfig    = 0x0804083C
	AddrCIBEUI64        = 0x080408A2

	cibStringLength      = 16
	cibOptionBytesLength = 16
	cibPHYConfigLength   = 2

	// ReadProtectionInactive is the option byte value that disables read protection
	ReadProtectionInactive = 0xA5
)

// EUI64 is an IEEE EUI-64 stored least significant byte first.
type EUI64 [8]byte

// String formats the address most significant byte first, colon separated.
func (e EUI64) String() string {
	var b strings.Builder
	for i := len(e) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "%02x", e[i])
		if i > 0 {
			b.WriteByte(':')
		}
	}
	return b.String()
}

// TargetInfo describes the target chip as reported by its ROM bootloader
// and flash information area.
type TargetInfo struct {
	// BootloaderVersion is the ROM bootloader protocol version
	BootloaderVersion byte

	// Commands lists the opcodes the bootloader supports
	Commands []byte

	// DeviceType is the product ID returned by get-id
	DeviceType uint16

	// BurnedEUI64 is the factory-programmed EUI-64
	BurnedEUI64 EUI64

	// CIBEUI64 is the EUI-64 stored in the customer information block
	CIBEUI64 EUI64

	// Manufacturer and BoardName are the CIB strings, non-printable bytes as '.'
	Manufacturer string
	BoardName    string

	// ReadProtection is option byte 0; ReadProtectionInactive means unprotected
	ReadProtection byte

	// WriteProtection holds one bit per flash page group, set = not protected
	WriteProtection uint32

	// PHYConfig is the CIB radio PHY configuration
	PHYConfig [2]byte
}

// ReadProtected reports whether flash read protection is active.
func (t *TargetInfo) ReadProtected() bool {
	return t.ReadProtection != ReadProtectionInactive
}

// WriteProtected reports whether page group i (0-31) is write protected.
func (t *TargetInfo) WriteProtected(group int) bool {
	return t.WriteProtection&(1<<uint(group)) == 0
}

// WriteProtectionMap renders the write protection bits as 'y' (protected)
// or 'n', in groups of eight.
func (t *TargetInfo) WriteProtectionMap() string {
	var b strings.Builder
	for i := 0; i < 32; i++ {
		if t.WriteProtected(i) {
			b.WriteByte('y')
		} else {
			b.WriteByte('n')
		}
		if (i+1)%8 == 0 && i != 31 {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// Info resets the target into its ROM bootloader and collects its
// identification and CIB contents.
func (p *Programmer) Info(ctx context.Context) (*TargetInfo, error) {
	if err := p.Connect(ctx); err != nil {
		return nil, err
	}

	info := &TargetInfo{}

	version, commands, err := p.dev.GetVersion()
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	info.BootloaderVersion = version
	info.Commands = commands

	if info.DeviceType, err = p.dev.GetID(); err != nil {
		return nil, fmt.Errorf("get id: %w", err)
	}

	reads := []struct {
		addr uint32
		n    int
		set  func([]byte)
	}{
		{AddrBurnedEUI64, len(EUI64{}), func(b []byte) { copy(info.BurnedEUI64[:], b) }},
		{AddrCIBEUI64, len(EUI64{}), func(b []byte) { copy(info.CIBEUI64[:], b) }},
		{AddrCIBManufacturer, cibStringLength, func(b []byte) { info.Manufacturer = printable(b) }},
		{AddrCIBBoardName, cibStringLength, func(b []byte) { info.BoardName = printable(b) }},
		{AddrCIBOptionBytes, cibOptionBytesLength, func(b []byte) {
			info.ReadProtection = b[0]
			info.WriteProtection = uint32(b[8]) | uint32(b[10])<<8 | uint32(b[12])<<16 | uint32(b[14])<<24
		}},
		{AddrCIBPHYConfig, cibPHYConfigLength, func(b []byte) { copy(info.PHYConfig[:], b) }},
	}

	for _, r := range reads {
		data, err := p.dev.ReadMemory(r.addr, r.n)
		if err != nil {
			return nil, &StepError{Step: StepRead, Address: r.addr, Size: r.n, Err: err}
		}
		r.set(data)
	}

	p.log.Debug("target info",
		zap.Uint8("bootloader", info.BootloaderVersion),
		zap.String("device_type", fmt.Sprintf("0x%04x", info.DeviceType)),
		zap.Stringer("eui64", info.BurnedEUI64),
	)
	return info, nil
}

// printable replaces bytes outside 0x20-0x7F with '.'.
func printable(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c < 0x20 || c > 0x7F {
			c = '.'
		}
		out[i] = c
	}
	return string(out)
}
