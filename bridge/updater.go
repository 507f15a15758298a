package bridge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dmarion/flash32w/channel"
	"github.com/dmarion/flash32w/firmware"
	"github.com/dmarion/flash32w/internal/retry"
	"github.com/dmarion/flash32w/protocol"
	"github.com/dmarion/flash32w/ymodem"
)

// Updater reflashes the bridge controller's own firmware.
type Updater struct {
	ch     channel.Channel
	client *Client
	cfg    Config
	log    *zap.Logger
}

// NewUpdater creates an Updater borrowing ch.
func NewUpdater(ch channel.Channel, opts ...Option) *Updater {
	cfg := newConfig(opts)
	return &Updater{
		ch:     ch,
		client: NewClient(ch, opts...),
		cfg:    cfg,
		log:    cfg.Logger.Named("updater"),
	}
}

// EnterBootloader brings the bridge into its own bootloader.
//
// The channel is switched to the bridge bootloader baud rate and the code
// type polled. If the bridge runs its application it is asked to restart
// into the bootloader, the channel is reopened once the bridge has
// re-enumerated, and the code type is polled again with a delay between
// attempts. Exhausted polls match protocol.ErrTimeout; a bridge that still
// reports its application afterwards is a protocol violation.
func (u *Updater) EnterBootloader(ctx context.Context) error {
	if err := u.ch.SetBaud(u.cfg.BootloaderBaud); err != nil {
		return fmt.Errorf("bridge bootloader baud: %w", err)
	}

	first := u.cfg.Poll
	first.Delay = 0
	code, err := u.pollCodeType(ctx, first)
	if err != nil {
		return err
	}
	if code == protocol.CodeTypeBootloader {
		u.log.Debug("bridge already in bootloader")
		return nil
	}

	if code == protocol.CodeTypeApplication {
		u.log.Info("requesting bridge bootloader")
		if _, err := u.client.Query1(protocol.BridgeRunBootloader); err != nil {
			u.log.Debug("no reply to run bootloader", zap.Error(err))
		}

		u.log.Info("waiting for bridge to reset")
		if err := u.cfg.Sleep(ctx, u.cfg.ReopenDelay); err != nil {
			return err
		}
		if err := u.ch.Reopen(); err != nil {
			return fmt.Errorf("reopen after bridge reset: %w", err)
		}
		if err := u.ch.SetBaud(u.cfg.BootloaderBaud); err != nil {
			return fmt.Errorf("bridge bootloader baud: %w", err)
		}

		code, err = u.pollCodeType(ctx, u.cfg.Poll)
		if err != nil {
			return err
		}
	}

	if code != protocol.CodeTypeBootloader {
		return protocol.NewError("enter bridge bootloader", protocol.ErrProtocolViolation,
			"bridge reports code type %d, restart might help", code)
	}
	return nil
}

func (u *Updater) pollCodeType(ctx context.Context, p retry.Policy) (byte, error) {
	var code byte
	err := retry.Do(ctx, p, func(attempt int) error {
		c, err := u.client.CodeType()
		if err != nil {
			u.log.Debug("code type poll failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		code = c
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("enter bridge bootloader: %w", err)
	}
	return code, nil
}

// Update enters the bridge bootloader, requests an image download and
// transfers img over YMODEM.
func (u *Updater) Update(ctx context.Context, img *firmware.Image) error {
	if img == nil {
		return fmt.Errorf("image cannot be nil")
	}
	if img.Size == 0 {
		return protocol.NewError("bridge update", protocol.ErrBounds, "image %s is empty", img.Name)
	}

	if err := u.EnterBootloader(ctx); err != nil {
		return err
	}

	u.log.Info("requesting YMODEM transfer", zap.String("image", img.Name), zap.Int64("size", img.Size))
	if err := u.client.Send(protocol.BridgeDownloadImage); err != nil {
		return err
	}

	sender := ymodem.NewSender(u.ch,
		ymodem.WithLogger(u.cfg.Logger),
		ymodem.WithHandshakeAttempts(u.cfg.HandshakeAttempts),
		ymodem.WithMaxResends(u.cfg.MaxResends),
		ymodem.WithProgressCallback(u.cfg.TransferProgress),
	)
	if err := sender.Send(ctx, img.Name, img.Size, img); err != nil {
		return fmt.Errorf("bridge update: %w", err)
	}
	return nil
}
