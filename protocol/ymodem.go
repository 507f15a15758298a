package protocol

import (
	"encoding/binary"
	"strconv"
)

// Block is one YMODEM block. The payload length is fixed by the header:
// ShortBlockSize for SOH, LongBlockSize for STX.
type Block struct {
	Header  byte
	Seq     byte
	Payload []byte
}

// BlockPayloadSize returns the payload size for a block header.
func BlockPayloadSize(header byte) (int, error) {
	switch header {
	case SOH:
		return ShortBlockSize, nil
	case STX:
		return LongBlockSize, nil
	default:
		return 0, NewError("ymodem block", ErrBounds, "invalid block header 0x%02X", header)
	}
}

// NewBlock builds a block, zero-padding payload to the size fixed by header.
func NewBlock(header, seq byte, payload []byte) (*Block, error) {
	size, err := BlockPayloadSize(header)
	if err != nil {
		return nil, err
	}
	if len(payload) > size {
		return nil, NewError("ymodem block", ErrBounds, "payload %d bytes exceeds block size %d", len(payload), size)
	}

	padded := make([]byte, size)
	copy(padded, payload)

	return &Block{Header: header, Seq: seq, Payload: padded}, nil
}

// Bytes encodes the block for transmission.
//
// Frame structure:
//
//	[HEADER][SEQ][~SEQ][PAYLOAD(128|1024)...][CRC_H][CRC_L]
func (b *Block) Bytes() []byte {
	frame := make([]byte, 0, BlockOverhead+len(b.Payload))
	frame = append(frame, b.Header, b.Seq, ^b.Seq)
	frame = append(frame, b.Payload...)
	frame = binary.BigEndian.AppendUint16(frame, CRC16(b.Payload))
	return frame
}

// BuildHeaderPayload constructs the payload of block 0: the null-terminated
// base name followed by the decimal file size and a trailing space.
func BuildHeaderPayload(name string, size int64) ([]byte, error) {
	payload := make([]byte, 0, ShortBlockSize)
	payload = append(payload, name...)
	payload = append(payload, 0)
	payload = strconv.AppendInt(payload, size, 10)
	payload = append(payload, ' ')

	if len(payload) > ShortBlockSize {
		return nil, NewError("ymodem header", ErrBounds, "file name %q too long for header block", name)
	}
	return payload, nil
}

// NewHeaderBlock builds block 0 announcing name and size.
func NewHeaderBlock(name string, size int64) (*Block, error) {
	payload, err := BuildHeaderPayload(name, size)
	if err != nil {
		return nil, err
	}
	return NewBlock(SOH, 0, payload)
}

// NewEndOfBatchBlock builds the all-zero SOH block that closes a batch.
func NewEndOfBatchBlock() *Block {
	return &Block{Header: SOH, Seq: 0, Payload: make([]byte, ShortBlockSize)}
}
