// Package ymodem sends a single file over YMODEM with CRC-16 blocks.
//
// It is used to push a new image into the bridge controller once the bridge
// runs its own bootloader.
package ymodem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/dmarion/flash32w/channel"
	"github.com/dmarion/flash32w/internal/retry"
	"github.com/dmarion/flash32w/protocol"
)

const (
	// DefaultHandshakeAttempts bounds the reads spent waiting for 'C'
	DefaultHandshakeAttempts = 100

	// DefaultMaxResends bounds NAK retransmissions of one block
	DefaultMaxResends = 10
)

// Progress reports a running transfer.
type Progress struct {
	// Block is the sequence number of the last acknowledged data block
	Block int

	// BytesSent counts file bytes acknowledged so far
	BytesSent int64

	// TotalBytes is the file size
	TotalBytes int64

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// ElapsedTime is the time since the handshake completed
	ElapsedTime time.Duration
}

// ProgressCallback is called after every acknowledged data block.
type ProgressCallback func(Progress)

// Sender transmits blocks over a borrowed channel.
type Sender struct {
	ch                channel.Channel
	log               *zap.Logger
	handshakeAttempts int
	maxResends        int
	progress          ProgressCallback
}

// Option configures a Sender.
type Option func(*Sender)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Sender) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithHandshakeAttempts sets how many reads wait for the 'C' handshake.
func WithHandshakeAttempts(n int) Option {
	return func(s *Sender) {
		if n > 0 {
			s.handshakeAttempts = n
		}
	}
}

// WithMaxResends bounds NAK retransmissions of a single block.
func WithMaxResends(n int) Option {
	return func(s *Sender) {
		if n >= 0 {
			s.maxResends = n
		}
	}
}

// WithProgressCallback sets a callback invoked after every data block.
func WithProgressCallback(cb ProgressCallback) Option {
	return func(s *Sender) {
		s.progress = cb
	}
}

// NewSender creates a Sender borrowing ch.
func NewSender(ch channel.Channel, opts ...Option) *Sender {
	s := &Sender{
		ch:                ch,
		log:               zap.NewNop(),
		handshakeAttempts: DefaultHandshakeAttempts,
		maxResends:        DefaultMaxResends,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("ymodem")
	return s
}

// Handshake waits for the receiver's 'C' request.
func (s *Sender) Handshake(ctx context.Context) error {
	buf := make([]byte, protocol.DefaultResponseBufferSize)

	err := retry.Do(ctx, retry.Policy{Attempts: s.handshakeAttempts}, func(int) error {
		n, err := s.ch.Receive(buf)
		if err != nil {
			return fmt.Errorf("%w: %w", retry.ErrStop, err)
		}
		if n > 0 && buf[0] == protocol.CRCRequest {
			return nil
		}
		return errNoHandshake
	})
	if err != nil {
		return fmt.Errorf("ymodem handshake: %w", err)
	}
	return nil
}

var errNoHandshake = errors.New("no 'C' from receiver")

// SendBlock transmits b and waits for its acknowledge. A NAK resends the
// identical bytes, at most the configured number of times.
func (s *Sender) SendBlock(ctx context.Context, b *protocol.Block) error {
	frame := b.Bytes()
	op := fmt.Sprintf("ymodem block %d", b.Seq)

	for resends := 0; ; resends++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		reply, err := s.exchange(frame)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		switch reply {
		case protocol.ACK:
			return nil
		case protocol.NAK:
			if resends >= s.maxResends {
				return protocol.NewError(op, protocol.ErrTimeout, "still NAKed after %d resends", resends)
			}
			s.log.Debug("block NAKed, resending", zap.Uint8("seq", b.Seq), zap.Int("resend", resends+1))
		default:
			return protocol.NewError(op, protocol.ErrProtocolViolation, "unexpected reply 0x%02X", reply)
		}
	}
}

// SendEOT sends the end-of-transmission byte and requires an ACK.
func (s *Sender) SendEOT(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	reply, err := s.exchange([]byte{protocol.EOT})
	if err != nil {
		return fmt.Errorf("ymodem eot: %w", err)
	}
	if reply != protocol.ACK {
		return protocol.NewError("ymodem eot", protocol.ErrProtocolViolation, "EOT not accepted: reply 0x%02X", reply)
	}
	return nil
}

// exchange sends frame and returns the first byte of the reply.
func (s *Sender) exchange(frame []byte) (byte, error) {
	n, err := s.ch.Send(frame)
	if err != nil {
		return 0, err
	}
	if n != len(frame) {
		return 0, protocol.NewError("send", protocol.ErrTransport, "short write: %d of %d bytes", n, len(frame))
	}

	buf := make([]byte, protocol.DefaultResponseBufferSize)
	n, err = s.ch.Receive(buf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, protocol.NewError("receive", protocol.ErrProtocolViolation, "no reply")
	}
	return buf[0], nil
}

// Send performs a complete single-file batch: handshake, header block, data
// blocks, EOT and the closing empty header block. r must yield size bytes.
func (s *Sender) Send(ctx context.Context, name string, size int64, r io.Reader) error {
	if err := s.Handshake(ctx); err != nil {
		return err
	}
	start := time.Now()

	header, err := protocol.NewHeaderBlock(name, size)
	if err != nil {
		return err
	}
	if err := s.SendBlock(ctx, header); err != nil {
		return err
	}
	s.log.Debug("header accepted", zap.String("name", name), zap.Int64("size", size))

	buf := make([]byte, protocol.LongBlockSize)
	var sent int64
	for seq := 1; ; seq++ {
		n, err := io.ReadFull(r, buf)
		if n == 0 && (err == io.EOF || err == io.ErrUnexpectedEOF) {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			if protocol.KindOf(err) == nil {
				err = protocol.WrapError("read image", protocol.ErrIO, err)
			}
			return err
		}

		block, err := protocol.NewBlock(protocol.STX, byte(seq), buf[:n])
		if err != nil {
			return err
		}
		if err := s.SendBlock(ctx, block); err != nil {
			return fmt.Errorf("at offset %d: %w", sent, err)
		}

		sent += int64(n)
		s.report(Progress{
			Block:       seq,
			BytesSent:   sent,
			TotalBytes:  size,
			Percentage:  percent(sent, size),
			ElapsedTime: time.Since(start),
		})
	}

	if err := s.SendEOT(ctx); err != nil {
		return err
	}
	if err := s.SendBlock(ctx, protocol.NewEndOfBatchBlock()); err != nil {
		return err
	}

	s.log.Info("transfer complete", zap.String("name", name), zap.Int64("bytes", sent), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *Sender) report(p Progress) {
	if s.progress != nil {
		s.progress(p)
	}
}

func percent(done, total int64) float64 {
	if total <= 0 {
		return 100
	}
	return float64(done) / float64(total) * 100
}
