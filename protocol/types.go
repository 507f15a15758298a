package protocol

import "fmt"

// SessionState tracks how far the boot-entry sequence has brought the target.
type SessionState int

const (
	// StateUnresponsive is the state before the bridge has been addressed
	StateUnresponsive SessionState = iota

	// StateBridgeReady means the bridge accepts control commands
	StateBridgeReady

	// StateDeviceInReset means the target is held in reset with boot mode selected
	StateDeviceInReset

	// StateBootloaderActive means the target ROM bootloader is running
	StateBootloaderActive
)

func (s SessionState) String() string {
	switch s {
	case StateUnresponsive:
		return "unresponsive"
	case StateBridgeReady:
		return "bridge ready"
	case StateDeviceInReset:
		return "device in reset"
	case StateBootloaderActive:
		return "bootloader active"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// StateFunc observes session state transitions.
type StateFunc func(SessionState)

// Version is a 4-byte bridge firmware version.
type Version uint32

// String formats the version as major.minor.patch.build.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// MemoryRegion describes a single read or write transfer.
type MemoryRegion struct {
	// Address is the first target address
	Address uint32

	// Length is the transfer size in bytes
	Length int
}

// PageRange describes a contiguous list of flash pages to erase.
type PageRange struct {
	// Start is the first page index
	Start int

	// Count is the number of pages
	Count int
}

// Pages returns the explicit page indices Start..Start+Count-1.
func (r PageRange) Pages() []byte {
	pages := make([]byte, r.Count)
	for i := range pages {
		pages[i] = byte(r.Start + i)
	}
	return pages
}
