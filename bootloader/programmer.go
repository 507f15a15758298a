package bootloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/dmarion/flash32w/channel"
	"github.com/dmarion/flash32w/firmware"
	"github.com/dmarion/flash32w/protocol"
)

// Resetter forces the target into its ROM bootloader, reporting each
// session state transition to track. *bridge.Sequencer implements it.
type Resetter interface {
	ResetIntoBootloader(ctx context.Context, track protocol.StateFunc) error
}

// Programmer orchestrates flash operations on the target: boot entry,
// erase, chunked writes, read-back verification, information queries and
// memory dumps.
//
// Programmer is not safe for concurrent use; it borrows a single channel.
type Programmer struct {
	dev    *Device
	reset  Resetter
	config Config
	log    *zap.Logger
}

// New creates a new Programmer over ch, using reset for boot entry.
//
// Example:
//
//	ch, _ := channel.OpenUSB(channel.DefaultUSBConfig())
//	seq := bridge.NewSequencer(ch)
//	prog := bootloader.New(ch, seq,
//	    bootloader.WithProgressCallback(progressFunc),
//	    bootloader.WithVerify(true),
//	)
func New(ch channel.Channel, reset Resetter, opts ...Option) *Programmer {
	if ch == nil {
		panic("channel cannot be nil")
	}
	if reset == nil {
		panic("resetter cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Programmer{
		dev:    NewDevice(ch, cfg.Logger),
		reset:  reset,
		config: cfg,
		log:    cfg.Logger.Named("programmer"),
	}
}

// Device returns the ROM bootloader client.
func (p *Programmer) Device() *Device {
	return p.dev
}

// Connect resets the target into its ROM bootloader and pings it.
// Any failed line toggle reported by the resetter is fatal.
func (p *Programmer) Connect(ctx context.Context) error {
	if err := p.reset.ResetIntoBootloader(ctx, p.dev.SetState); err != nil {
		return &StepError{Step: StepBootEntry, Err: err}
	}
	if err := p.dev.Ping(); err != nil {
		return &StepError{Step: StepPing, Err: err}
	}
	p.log.Debug("bootloader answered ping")
	return nil
}

// Program performs the complete flash sequence:
//  1. Reset the target into its ROM bootloader
//  2. Ping it
//  3. Erase pages 0 to ceil(size/1024)-1
//  4. Write the image in fixed-size chunks at BaseAddress+offset, the
//     final chunk padded with 0xFF
//  5. Read the image back and compare, if verification is enabled
//
// Any failure aborts the run; a partially written region is left as is.
//
// Example:
//
//	img, _ := firmware.Open("app.bin")
//	defer img.Close()
//	err := prog.Program(context.Background(), img)
func (p *Programmer) Program(ctx context.Context, img *firmware.Image) error {
	if img == nil {
		return fmt.Errorf("image cannot be nil")
	}
	if img.Size <= 0 {
		return protocol.NewError("program", protocol.ErrBounds, "image %s is empty", img.Name)
	}

	base := p.config.BaseAddress
	pages := protocol.PagesFor(img.Size)
	if _, err := protocol.NewPageRange(0, pages); err != nil {
		return fmt.Errorf("image %s (%d bytes): %w", img.Name, img.Size, err)
	}

	startTime := time.Now()

	// Phase 1: Boot entry
	p.reportProgress(Progress{Phase: PhaseEntering, Address: base, TotalBytes: img.Size})

	if err := p.Connect(ctx); err != nil {
		return err
	}

	// Phase 2: Erase
	p.reportProgress(Progress{
		Phase:       PhaseErasing,
		Address:     base,
		TotalBytes:  img.Size,
		ElapsedTime: time.Since(startTime),
	})

	p.log.Info("erasing flash", zap.Int("first_page", 0), zap.Int("last_page", pages-1))
	if err := p.dev.Erase(0, pages); err != nil {
		return &StepError{Step: StepErase, Address: base, Err: err}
	}

	// Phase 3: Write
	var written []byte
	if p.config.VerifyAfterProgram {
		written = make([]byte, 0, img.Size)
	}

	var done int64
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		chunk, off, err := img.Next(p.config.ChunkSize, p.config.Fill)
		if errors.Is(err, io.EOF) {
			break
		}
		addr := base + uint32(off)
		if err != nil {
			return &StepError{Step: StepReadImage, Address: addr, Offset: off, Err: err}
		}

		if err := p.dev.WriteMemory(addr, chunk); err != nil {
			return &StepError{Step: StepWrite, Address: addr, Offset: off, Err: err}
		}
		if written != nil {
			written = append(written, chunk...)
		}

		done = img.Offset()
		p.reportProgress(Progress{
			Phase:       PhaseWriting,
			Address:     addr,
			BytesDone:   done,
			TotalBytes:  img.Size,
			Percentage:  percent(done, img.Size),
			ElapsedTime: time.Since(startTime),
		})
	}

	// Phase 4: Verify
	if p.config.VerifyAfterProgram {
		if err := p.verify(ctx, base, written[:img.Size], startTime); err != nil {
			return err
		}
	}

	p.reportProgress(Progress{
		Phase:       PhaseComplete,
		Address:     base,
		BytesDone:   done,
		TotalBytes:  img.Size,
		Percentage:  100,
		ElapsedTime: time.Since(startTime),
	})

	p.log.Info("programming complete",
		zap.String("image", img.Name),
		zap.Int64("bytes", done),
		zap.Int("pages", pages),
		zap.Duration("elapsed", time.Since(startTime)),
	)
	return nil
}

// verify reads want back from base and compares it byte by byte.
func (p *Programmer) verify(ctx context.Context, base uint32, want []byte, startTime time.Time) error {
	total := int64(len(want))

	return p.readBlocks(ctx, base, len(want), func(addr uint32, off int, data []byte) error {
		for i, b := range data {
			if b != want[off+i] {
				return &StepError{
					Step:    StepVerify,
					Address: addr + uint32(i),
					Offset:  int64(off + i),
					Err:     &VerifyError{Address: addr + uint32(i), Expected: want[off+i], Actual: b},
				}
			}
		}

		done := int64(off + len(data))
		p.reportProgress(Progress{
			Phase:       PhaseVerifying,
			Address:     addr,
			BytesDone:   done,
			TotalBytes:  total,
			Percentage:  percent(done, total),
			ElapsedTime: time.Since(startTime),
		})
		return nil
	})
}

// readBlocks reads length bytes from addr in maximum-size reads and hands
// each block to fn. A failed read is reported as a StepRead error naming the
// block size and address.
func (p *Programmer) readBlocks(ctx context.Context, addr uint32, length int, fn func(addr uint32, off int, data []byte) error) error {
	for off := 0; off < length; {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		n := min(length-off, protocol.MaxReadLength)
		at := addr + uint32(off)

		data, err := p.dev.ReadMemory(at, n)
		if err != nil {
			return &StepError{Step: StepRead, Address: at, Offset: int64(off), Size: n, Err: err}
		}
		if err := fn(at, off, data); err != nil {
			return err
		}
		off += n
	}
	return nil
}

// Dump resets the target into its ROM bootloader and reads length bytes
// starting at addr.
//
// Example:
//
//	data, err := prog.Dump(ctx, 0x08040800, 256)
//	fmt.Print(hex.Dump(data))
func (p *Programmer) Dump(ctx context.Context, addr uint32, length int) ([]byte, error) {
	if length <= 0 {
		return nil, protocol.NewError("dump", protocol.ErrBounds, "length %d must be positive", length).AtAddress(addr)
	}

	startTime := time.Now()
	if err := p.Connect(ctx); err != nil {
		return nil, err
	}

	out := make([]byte, 0, length)
	err := p.readBlocks(ctx, addr, length, func(at uint32, off int, data []byte) error {
		out = append(out, data...)
		p.reportProgress(Progress{
			Phase:       PhaseReading,
			Address:     at,
			BytesDone:   int64(len(out)),
			TotalBytes:  int64(length),
			Percentage:  percent(int64(len(out)), int64(length)),
			ElapsedTime: time.Since(startTime),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// reportProgress calls the progress callback if configured.
func (p *Programmer) reportProgress(progress Progress) {
	if p.config.ProgressCallback != nil {
		p.config.ProgressCallback(progress)
	}
}

func percent(done, total int64) float64 {
	if total <= 0 {
		return 100
	}
	return float64(done) / float64(total) * 100
}
