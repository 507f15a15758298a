package protocol

// CheckAck validates a single-byte acknowledge reply for the named phase.
func CheckAck(phase string, reply []byte) error {
	if len(reply) == 0 {
		return NewError(phase, ErrProtocolViolation, "no response")
	}
	if len(reply) != 1 {
		return NewError(phase, ErrFraming, "expected 1 acknowledge byte, got %d", len(reply))
	}
	if reply[0] != Ack {
		return WrapError(phase, ErrProtocolViolation, &AckError{Phase: phase, Got: reply[0]})
	}
	return nil
}

// ParseInfoResponse validates a get/get-id reply and returns its payload.
//
// Frame structure:
//
//	[ACK][N][PAYLOAD(N+1)...][ACK]
//
// The frame must be exactly N+4 bytes long and both ends must be ACK.
func ParseInfoResponse(op string, frame []byte) ([]byte, error) {
	if len(frame) < 4 {
		return nil, NewError(op, ErrFraming, "frame too short: got %d bytes, minimum is 4", len(frame))
	}

	n := int(frame[1])
	if len(frame) != n+4 {
		return nil, NewError(op, ErrFraming, "frame length mismatch: got %d bytes, expected %d", len(frame), n+4)
	}

	if frame[0] != Ack {
		return nil, WrapError(op, ErrProtocolViolation, &AckError{Phase: "leading", Got: frame[0]})
	}
	if frame[len(frame)-1] != Ack {
		return nil, WrapError(op, ErrProtocolViolation, &AckError{Phase: "trailing", Got: frame[len(frame)-1]})
	}

	return frame[2 : len(frame)-1], nil
}

// ParseReadResponse validates the accumulated reply of a read-memory command
// and returns the data bytes.
//
// Frame structure:
//
//	[ACK][DATA(N)...]
func ParseReadResponse(r MemoryRegion, frame []byte) ([]byte, error) {
	const op = "read memory"

	if len(frame) != r.Length+1 {
		return nil, NewError(op, ErrFraming, "short read: got %d of %d bytes", len(frame), r.Length+1).AtAddress(r.Address)
	}
	if frame[0] != Ack {
		return nil, WrapError(op, ErrProtocolViolation, &AckError{Phase: "data", Got: frame[0]}).AtAddress(r.Address)
	}

	return frame[1:], nil
}
