package firmware

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/dmarion/flash32w/protocol"
)

// Image is a flat binary firmware image.
type Image struct {
	// Name is the base name of the image, announced in YMODEM headers
	Name string

	// Size is the total length in bytes
	Size int64

	r      io.Reader
	closer io.Closer
	offset int64
}

// Open opens the image file at path.
//
// Example:
//
//	img, err := firmware.Open("firmware/app.bin")
//	if err != nil {
//	    return err
//	}
//	defer img.Close()
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, protocol.WrapError("open image", protocol.ErrIO, err)
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, protocol.WrapError("open image", protocol.ErrIO, err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, protocol.NewError("open image", protocol.ErrIO, "%s is a directory", path)
	}

	return &Image{
		Name:   filepath.Base(path),
		Size:   st.Size(),
		r:      f,
		closer: f,
	}, nil
}

// FromBytes wraps an in-memory image.
func FromBytes(name string, data []byte) *Image {
	return FromReader(name, int64(len(data)), bytes.NewReader(data))
}

// FromReader wraps r, which must yield exactly size bytes.
func FromReader(name string, size int64, r io.Reader) *Image {
	return &Image{Name: name, Size: size, r: r}
}

// Offset returns the number of bytes consumed so far.
func (img *Image) Offset() int64 {
	return img.offset
}

// Remaining returns the number of bytes not yet consumed.
func (img *Image) Remaining() int64 {
	return img.Size - img.offset
}

// Read implements io.Reader, stopping at Size.
func (img *Image) Read(p []byte) (int, error) {
	if img.offset >= img.Size {
		return 0, io.EOF
	}
	if rem := img.Size - img.offset; int64(len(p)) > rem {
		p = p[:rem]
	}

	n, err := img.r.Read(p)
	img.offset += int64(n)
	if err == io.EOF {
		if img.offset < img.Size {
			return n, protocol.NewError("read image", protocol.ErrIO,
				"%s truncated at %d of %d bytes", img.Name, img.offset, img.Size)
		}
		if n > 0 {
			err = nil
		}
	} else if err != nil {
		return n, protocol.WrapError("read image", protocol.ErrIO, err)
	}
	return n, err
}

// Next returns the next chunk of exactly size bytes and its offset in the
// image. A short final chunk is padded with pad. io.EOF is returned once the
// image is exhausted.
func (img *Image) Next(size int, pad byte) ([]byte, int64, error) {
	off := img.offset
	if off >= img.Size {
		return nil, off, io.EOF
	}

	chunk := make([]byte, size)
	n, err := io.ReadFull(img, chunk)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, off, err
	}
	if n == 0 {
		return nil, off, io.EOF
	}
	for i := n; i < size; i++ {
		chunk[i] = pad
	}
	return chunk, off, nil
}

// Close releases the underlying file, if any.
func (img *Image) Close() error {
	if img.closer == nil {
		return nil
	}
	err := img.closer.Close()
	img.closer = nil
	return err
}
