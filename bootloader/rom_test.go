package bootloader

import (
	"context"

	"github.com/dmarion/flash32w/channel/channeltest"
	"github.com/dmarion/flash32w/protocol"
)

// romEmulator answers frames the way the target's ROM bootloader does.
type romEmulator struct {
	mem map[uint32]byte

	phase string
	addr  uint32

	writes []uint32
	erased []byte
	reads  int

	// nackWriteAt NACKs the data phase of a write at this address
	nackWriteAt uint32
	nackWrite   bool

	// corruptAt flips the stored byte at this address
	corruptAt uint32
	corrupt   bool

	// silentGetIDAfterRead stops answering get-id after the first read
	silentGetIDAfterRead bool
}

func newROM() *romEmulator {
	return &romEmulator{mem: make(map[uint32]byte)}
}

func (r *romEmulator) channel() *channeltest.Fake {
	return &channeltest.Fake{Respond: r.respond}
}

func (r *romEmulator) load(addr uint32, data []byte) {
	for i, b := range data {
		r.mem[addr+uint32(i)] = b
	}
}

func (r *romEmulator) byteAt(addr uint32) byte {
	if b, ok := r.mem[addr]; ok {
		return b
	}
	return 0xFF
}

func ack() []byte  { return []byte{protocol.Ack} }
func nack() []byte { return []byte{protocol.Nack} }

func (r *romEmulator) respond(frame []byte) [][]byte {
	switch r.phase {
	case "read address", "write address":
		if len(frame) != 5 || protocol.XORChecksum(frame[:4]) != frame[4] {
			r.phase = ""
			return [][]byte{nack()}
		}
		r.addr = uint32(frame[0])<<24 | uint32(frame[1])<<16 | uint32(frame[2])<<8 | uint32(frame[3])
		if r.phase == "read address" {
			r.phase = "read length"
		} else {
			r.phase = "write data"
		}
		return [][]byte{ack()}

	case "read length":
		r.phase = ""
		if len(frame) != 2 || frame[0]^frame[1] != 0xFF {
			return [][]byte{nack()}
		}
		n := int(frame[0]) + 1
		out := append(ack(), make([]byte, n)...)
		for i := 0; i < n; i++ {
			out[1+i] = r.byteAt(r.addr + uint32(i))
		}
		r.reads++
		return [][]byte{out}

	case "write data":
		r.phase = ""
		n := int(frame[0]) + 1
		if len(frame) != n+2 || protocol.XORChecksum(frame) != 0 {
			return [][]byte{nack()}
		}
		if r.nackWrite && r.addr == r.nackWriteAt {
			return [][]byte{nack()}
		}
		r.writes = append(r.writes, r.addr)
		r.load(r.addr, frame[1:1+n])
		if r.corrupt && r.corruptAt >= r.addr && r.corruptAt < r.addr+uint32(n) {
			r.mem[r.corruptAt] ^= 0x01
		}
		return [][]byte{ack()}

	case "erase pages":
		r.phase = ""
		n := int(frame[0]) + 1
		if len(frame) != n+2 || protocol.XORChecksum(frame) != 0 {
			return [][]byte{nack()}
		}
		r.erased = append(r.erased, frame[1:1+n]...)
		return [][]byte{ack()}
	}

	if len(frame) == 1 && frame[0] == protocol.CmdPing {
		return [][]byte{ack()}
	}
	if len(frame) != 2 || frame[0]^frame[1] != 0xFF {
		return [][]byte{nack()}
	}

	switch frame[0] {
	case protocol.CmdGet:
		return [][]byte{{protocol.Ack, 0x05, 0x22, 0x00, 0x02, 0x11, 0x31, 0x43, protocol.Ack}}
	case protocol.CmdGetID:
		if r.silentGetIDAfterRead && r.reads > 0 {
			return nil
		}
		return [][]byte{{protocol.Ack, 0x01, 0x04, 0x13, protocol.Ack}}
	case protocol.CmdReadMemory:
		r.phase = "read address"
	case protocol.CmdWriteMemory:
		r.phase = "write address"
	case protocol.CmdErase:
		r.phase = "erase pages"
	default:
		return [][]byte{nack()}
	}
	return [][]byte{ack()}
}

// fakeResetter reports a successful boot entry unless err is set.
type fakeResetter struct {
	err   error
	calls int
}

func (f *fakeResetter) ResetIntoBootloader(_ context.Context, track protocol.StateFunc) error {
	f.calls++
	track(protocol.StateBridgeReady)
	track(protocol.StateDeviceInReset)
	if f.err != nil {
		return f.err
	}
	track(protocol.StateBootloaderActive)
	return nil
}
