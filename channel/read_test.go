package channel_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarion/flash32w/channel"
	"github.com/dmarion/flash32w/channel/channeltest"
)

func TestReceiveFull(t *testing.T) {
	ch := channeltest.New([]byte{0x79, 1}, []byte{2, 3}, []byte{4, 5})

	got, err := channel.ReceiveFull(ch, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x79, 1, 2, 3, 4}, got)
	assert.Equal(t, 1, ch.Pending(), "bytes past n stay queued")
}

func TestReceiveFullStopsWithoutProgress(t *testing.T) {
	ch := channeltest.New([]byte{0x79, 1})

	got, err := channel.ReceiveFull(ch, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x79, 1}, got)
}

func TestReceiveFullError(t *testing.T) {
	boom := errors.New("boom")
	ch := &channeltest.Fake{ReceiveErr: boom}

	_, err := channel.ReceiveFull(ch, 4)
	assert.ErrorIs(t, err, boom)
}
