package bridge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dmarion/flash32w/channel"
	"github.com/dmarion/flash32w/protocol"
)

// Sequencer forces the target into its ROM bootloader by toggling nRESET
// and nBOOTMODE through the bridge.
type Sequencer struct {
	ch     channel.Channel
	client *Client
	cfg    Config
	log    *zap.Logger
}

// NewSequencer creates a Sequencer borrowing ch.
func NewSequencer(ch channel.Channel, opts ...Option) *Sequencer {
	cfg := newConfig(opts)
	return &Sequencer{
		ch:     ch,
		client: NewClient(ch, opts...),
		cfg:    cfg,
		log:    cfg.Logger.Named("sequencer"),
	}
}

type toggle struct {
	line  byte
	level byte
	pause bool
}

// resetSequence holds the target in reset with boot mode selected, then
// releases reset. nBOOTMODE is restored high at the end.
var resetSequence = []toggle{
	{line: protocol.BridgeSetBootMode, level: 1},
	{line: protocol.BridgeSetReset, level: 0},
	{line: protocol.BridgeSetBootMode, level: 0, pause: true},
	{line: protocol.BridgeSetReset, level: 1, pause: true},
	{line: protocol.BridgeSetBootMode, level: 1},
}

// Toggle runs the reset line sequence on a channel already at the bridge
// baud rate. Every step runs even if an earlier one failed; the failures are
// joined into the returned error.
func (s *Sequencer) Toggle(ctx context.Context) error {
	var errs []error
	for _, t := range resetSequence {
		if _, err := s.client.SetLine(t.line, t.level); err != nil {
			s.log.Warn("line toggle failed",
				zap.String("line", protocol.BridgeOpName(t.line)),
				zap.Uint8("level", t.level),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
		if t.pause {
			if err := s.cfg.Sleep(ctx, s.cfg.ToggleDelay); err != nil {
				return err
			}
		}
	}
	return errors.Join(errs...)
}

// ResetIntoBootloader switches the channel to the bridge baud rate, runs the
// reset sequence and switches to the target baud rate. track, if not nil,
// observes each state transition.
//
// A failed line toggle does not stop the sequence; the joined toggle
// failures are returned after the target baud rate has been set.
func (s *Sequencer) ResetIntoBootloader(ctx context.Context, track protocol.StateFunc) error {
	if track == nil {
		track = func(protocol.SessionState) {}
	}
	track(protocol.StateUnresponsive)

	if err := s.ch.SetBaud(s.cfg.BridgeBaud); err != nil {
		return fmt.Errorf("bridge baud: %w", err)
	}
	track(protocol.StateBridgeReady)

	toggleErr := s.Toggle(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	track(protocol.StateDeviceInReset)

	if err := s.ch.SetBaud(s.cfg.TargetBaud); err != nil {
		return errors.Join(toggleErr, fmt.Errorf("target baud: %w", err))
	}
	if toggleErr != nil {
		return fmt.Errorf("reset sequence: %w", toggleErr)
	}

	track(protocol.StateBootloaderActive)
	s.log.Debug("target reset into bootloader")
	return nil
}
