package protocol

// BuildCommand constructs the two-byte command phase of a ROM bootloader command.
//
// Frame structure:
//
//	[OPCODE][OPCODE ^ 0xFF]
func BuildCommand(opcode byte) []byte {
	return []byte{opcode, opcode ^ 0xFF}
}

// BuildPingCmd constructs the single-byte synchronisation frame.
func BuildPingCmd() []byte {
	return []byte{CmdPing}
}

// BuildAddress constructs the address phase.
//
// Frame structure:
//
//	[A31..24][A23..16][A15..8][A7..0][XOR of the four address bytes]
func BuildAddress(addr uint32) []byte {
	frame := []byte{byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr)}
	return append(frame, XORChecksum(frame))
}

// BuildReadLength constructs the length phase of a read-memory command.
//
// Frame structure:
//
//	[N-1][(N-1) ^ 0xFF]
func BuildReadLength(r MemoryRegion) ([]byte, error) {
	if _, err := NewReadRegion(r.Address, r.Length); err != nil {
		return nil, err
	}
	n := byte(r.Length - 1)
	return []byte{n, n ^ 0xFF}, nil
}

// BuildWritePayload constructs the payload phase of a write-memory command.
//
// Frame structure:
//
//	[N-1][DATA(N)...][XOR of N-1 and DATA]
func BuildWritePayload(data []byte) ([]byte, error) {
	if _, err := NewWriteRegion(0, len(data)); err != nil {
		return nil, err
	}

	frame := make([]byte, 0, len(data)+2)
	frame = append(frame, byte(len(data)-1))
	frame = append(frame, data...)
	frame = append(frame, XORChecksum(frame))

	return frame, nil
}

// BuildErasePayload constructs the payload phase of an erase command.
//
// Frame structure:
//
//	[COUNT-1][START][START+1]...[START+COUNT-1][XOR of all preceding bytes]
func BuildErasePayload(r PageRange) ([]byte, error) {
	if _, err := NewPageRange(r.Start, r.Count); err != nil {
		return nil, err
	}

	frame := make([]byte, 0, r.Count+2)
	frame = append(frame, byte(r.Count-1))
	frame = append(frame, r.Pages()...)
	frame = append(frame, XORChecksum(frame))

	return frame, nil
}

// CommandName returns a readable name for a ROM bootloader opcode.
func CommandName(opcode byte) string {
	switch opcode {
	case CmdPing:
		return "ping"
	case CmdGet:
		return "get"
	case CmdGetID:
		return "get id"
	case CmdReadMemory:
		return "read memory"
	case CmdWriteMemory:
		return "write memory"
	case CmdErase:
		return "erase"
	default:
		return "unknown"
	}
}
