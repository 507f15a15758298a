package firmware

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarion/flash32w/protocol"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	img, err := Open(path)
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, "app.bin", img.Name)
	assert.Equal(t, int64(3), img.Size)
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(dir, "missing.bin")},
		{name: "directory", path: dir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.path)
			assert.ErrorIs(t, err, protocol.ErrIO)
		})
	}
}

func TestNextPadsFinalChunk(t *testing.T) {
	data := make([]byte, 2049)
	for i := range data {
		data[i] = byte(i)
	}
	img := FromBytes("app.bin", data)

	var offsets []int64
	var last []byte
	for {
		chunk, off, err := img.Next(256, 0xFF)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		require.Len(t, chunk, 256)
		offsets = append(offsets, off)
		last = chunk
	}

	assert.Len(t, offsets, 9)
	assert.Equal(t, int64(2048), offsets[8])
	assert.Equal(t, byte(2048&0xFF), last[0])
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 255), last[1:])
	assert.Zero(t, img.Remaining())
}

func TestNextExactMultiple(t *testing.T) {
	img := FromBytes("app.bin", make([]byte, 512))

	n := 0
	for {
		_, _, err := img.Next(256, 0xFF)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 2, n)
}

func TestReadStopsAtSize(t *testing.T) {
	img := FromReader("x.bin", 4, bytes.NewReader([]byte("abcdefgh")))

	got, err := io.ReadAll(img)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(got))
}

func TestReadTruncated(t *testing.T) {
	img := FromReader("x.bin", 10, bytes.NewReader([]byte("abc")))

	_, err := io.ReadAll(img)
	assert.ErrorIs(t, err, protocol.ErrIO)
}

func TestEmptyImage(t *testing.T) {
	img := FromBytes("empty.bin", nil)

	_, _, err := img.Next(256, 0xFF)
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, img.Close())
}
