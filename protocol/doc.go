// Package protocol implements the wire formats spoken by flash32w.
//
// Three framings are covered, none of which perform I/O:
//
// # Bridge commands
//
// Control commands for the USB-to-serial bridge controller:
//
//	Request:  [0xAA][ARGC][CMD...][0x55]
//	Response: [0xBB][ARGC][VALUE...][0x55]
//
//	frame, err := protocol.BuildBridgeCmd(protocol.BridgeGetCodeType)
//	value, err := protocol.ParseBridgeResponse(reply, 1)
//
// # ROM bootloader
//
// The target's STM32-style bootloader. Every command starts with an opcode and its
// complement, each phase is acknowledged with a single 0x79 byte, and every
// multi-byte field is big-endian with a trailing XOR checksum:
//
//	Command: [OPCODE][OPCODE ^ 0xFF]
//	Address: [A3][A2][A1][A0][A3^A2^A1^A0]
//	Payload: [N-1][DATA...][XOR]
//
// Region descriptors (NewReadRegion, NewWriteRegion, NewPageRange) reject
// out-of-range transfers with ErrBounds before anything is encoded.
//
// # YMODEM
//
// Blocks used to reflash the bridge controller itself:
//
//	[SOH|STX][SEQ][~SEQ][PAYLOAD(128|1024)][CRC16_H][CRC16_L]
//
// # Errors
//
// Every failure is an *Error carrying one kind sentinel:
//
//	if errors.Is(err, protocol.ErrBounds) {
//	    // rejected before any byte was sent
//	}
package protocol
