package bootloader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dmarion/flash32w/channel/channeltest"
	"github.com/dmarion/flash32w/protocol"
)

func activeDevice(t *testing.T, ch *channeltest.Fake) *Device {
	t.Helper()
	d := NewDevice(ch, zaptest.NewLogger(t))
	d.SetState(protocol.StateBootloaderActive)
	return d
}

func TestPing(t *testing.T) {
	ch := channeltest.New(ack())
	d := activeDevice(t, ch)

	require.NoError(t, d.Ping())
	assert.Equal(t, [][]byte{{0x7F}}, ch.Sent())
}

func TestPingFailures(t *testing.T) {
	tests := []struct {
		name    string
		replies [][]byte
	}{
		{name: "no response", replies: nil},
		{name: "nack", replies: [][]byte{nack()}},
		{name: "garbage", replies: [][]byte{{0x00}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := activeDevice(t, channeltest.New(tt.replies...))
			assert.ErrorIs(t, d.Ping(), protocol.ErrProtocolViolation)
		})
	}
}

func TestCommandsRequireActiveSession(t *testing.T) {
	ch := newROM().channel()
	d := NewDevice(ch, nil)

	assert.ErrorIs(t, d.Ping(), protocol.ErrProtocolViolation)
	_, err := d.GetID()
	assert.ErrorIs(t, err, protocol.ErrProtocolViolation)
	_, err = d.ReadMemory(0x08000000, 4)
	assert.ErrorIs(t, err, protocol.ErrProtocolViolation)
	assert.ErrorIs(t, d.WriteMemory(0x08000000, []byte{1}), protocol.ErrProtocolViolation)
	assert.ErrorIs(t, d.Erase(0, 1), protocol.ErrProtocolViolation)

	assert.Empty(t, ch.Sent())
}

func TestGetVersionAndID(t *testing.T) {
	ch := newROM().channel()
	d := activeDevice(t, ch)

	version, commands, err := d.GetVersion()
	require.NoError(t, err)
	assert.Equal(t, byte(0x22), version)
	assert.Equal(t, []byte{0x00, 0x02, 0x11, 0x31, 0x43}, commands)

	id, err := d.GetID()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0413), id)

	assert.Equal(t, [][]byte{{0x00, 0xFF}, {0x02, 0xFD}}, ch.Sent())
}

func TestGetIDSplitReply(t *testing.T) {
	ch := channeltest.New([]byte{protocol.Ack, 0x01}, []byte{0x04, 0x13, protocol.Ack})
	d := activeDevice(t, ch)

	id, err := d.GetID()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0413), id)
}

func TestGetIDBadFrame(t *testing.T) {
	ch := channeltest.New([]byte{protocol.Ack, 0x01, 0x04, 0x13})
	d := activeDevice(t, ch)

	_, err := d.GetID()
	assert.ErrorIs(t, err, protocol.ErrFraming)
}

func TestReadMemory(t *testing.T) {
	rom := newROM()
	rom.load(0x0804081A, []byte("STMicroelectroni"))
	ch := rom.channel()
	d := activeDevice(t, ch)

	data, err := d.ReadMemory(0x0804081A, 16)
	require.NoError(t, err)
	assert.Equal(t, "STMicroelectroni", string(data))

	sent := ch.Sent()
	require.Len(t, sent, 4, "command, address, length, liveness get-id")
	assert.Equal(t, []byte{0x11, 0xEE}, sent[0])
	assert.Equal(t, []byte{0x08, 0x04, 0x08, 0x1A, 0x08 ^ 0x04 ^ 0x08 ^ 0x1A}, sent[1])
	assert.Equal(t, []byte{0x0F, 0xF0}, sent[2])
	assert.Equal(t, []byte{0x02, 0xFD}, sent[3])
}

func TestReadMemoryBoundsBeforeTransport(t *testing.T) {
	ch := newROM().channel()
	d := activeDevice(t, ch)

	for _, n := range []int{0, 97} {
		_, err := d.ReadMemory(0x08000000, n)
		assert.ErrorIs(t, err, protocol.ErrBounds, "length %d", n)
	}
	assert.Empty(t, ch.Sent(), "no transport call")
	assert.Zero(t, ch.Receives())
}

func TestReadMemoryLivenessFailure(t *testing.T) {
	rom := newROM()
	rom.silentGetIDAfterRead = true
	d := activeDevice(t, rom.channel())

	data, err := d.ReadMemory(0x08000000, 8)
	assert.Nil(t, data, "read invalidated")
	assert.ErrorIs(t, err, protocol.ErrProtocolViolation)
	assert.Contains(t, err.Error(), "liveness")
}

func TestReadMemoryShortRead(t *testing.T) {
	ch := channeltest.New(ack(), ack(), []byte{protocol.Ack, 1, 2})
	d := activeDevice(t, ch)

	_, err := d.ReadMemory(0x08000000, 8)
	assert.ErrorIs(t, err, protocol.ErrFraming)
	assert.Contains(t, err.Error(), "0x08000000")
}

func TestReadMemoryAddressNack(t *testing.T) {
	ch := channeltest.New(ack(), nack())
	d := activeDevice(t, ch)

	_, err := d.ReadMemory(0x08000100, 8)
	assert.ErrorIs(t, err, protocol.ErrProtocolViolation)

	var ackErr *protocol.AckError
	require.True(t, errors.As(err, &ackErr))
	assert.Equal(t, byte(protocol.Nack), ackErr.Got)
	assert.Len(t, ch.Sent(), 2, "aborted after the address phase")
}

func TestWriteMemory(t *testing.T) {
	rom := newROM()
	ch := rom.channel()
	d := activeDevice(t, ch)

	require.NoError(t, d.WriteMemory(0x08000400, []byte{0xDE, 0xAD, 0xBE, 0xEF}))

	sent := ch.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, []byte{0x31, 0xCE}, sent[0])
	assert.Equal(t, []byte{0x08, 0x00, 0x04, 0x00, 0x0C}, sent[1])
	assert.Equal(t, []byte{0x03, 0xDE, 0xAD, 0xBE, 0xEF, 0x03 ^ 0xDE ^ 0xAD ^ 0xBE ^ 0xEF}, sent[2])
	assert.Equal(t, byte(0xEF), rom.byteAt(0x08000403))
}

func TestWriteMemoryBounds(t *testing.T) {
	ch := newROM().channel()
	d := activeDevice(t, ch)

	assert.ErrorIs(t, d.WriteMemory(0x08000000, nil), protocol.ErrBounds)
	assert.ErrorIs(t, d.WriteMemory(0x08000000, make([]byte, 257)), protocol.ErrBounds)
	assert.NoError(t, d.WriteMemory(0x08000000, make([]byte, 256)))
	assert.Len(t, ch.Sent(), 3)
}

func TestWriteMemoryDataNack(t *testing.T) {
	rom := newROM()
	rom.nackWrite = true
	rom.nackWriteAt = 0x08000000
	d := activeDevice(t, rom.channel())

	err := d.WriteMemory(0x08000000, []byte{1, 2})
	assert.ErrorIs(t, err, protocol.ErrProtocolViolation)

	var pe *protocol.Error
	require.True(t, errors.As(err, &pe))
	assert.True(t, pe.HasAddress)
	assert.Equal(t, uint32(0x08000000), pe.Address)
}

func TestErase(t *testing.T) {
	rom := newROM()
	ch := rom.channel()
	d := activeDevice(t, ch)

	require.NoError(t, d.Erase(4, 3))
	assert.Equal(t, []byte{4, 5, 6}, rom.erased)

	sent := ch.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, []byte{0x43, 0xBC}, sent[0])
	assert.Equal(t, []byte{0x02, 4, 5, 6, 0x02 ^ 4 ^ 5 ^ 6}, sent[1])
}

func TestEraseBounds(t *testing.T) {
	ch := newROM().channel()
	d := activeDevice(t, ch)

	tests := []struct{ start, count int }{
		{0, 0}, {0, 117}, {117, 1}, {116, 1}, {100, 17},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, d.Erase(tt.start, tt.count), protocol.ErrBounds, "start %d count %d", tt.start, tt.count)
	}
	assert.Empty(t, ch.Sent())
}

func TestSendTransportError(t *testing.T) {
	ch := &channeltest.Fake{SendErr: errors.New("libusb: pipe")}
	d := activeDevice(t, ch)

	assert.ErrorIs(t, d.Ping(), protocol.ErrTransport)
}
