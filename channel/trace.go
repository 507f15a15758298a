package channel

import (
	"encoding/hex"

	"go.uber.org/zap"
)

// Trace wraps ch so that every transfer is logged as hex at debug level.
func Trace(ch Channel, logger *zap.Logger) Channel {
	return &traced{Channel: ch, log: logger.Named("wire")}
}

type traced struct {
	Channel
	log *zap.Logger
}

func (t *traced) Send(p []byte) (int, error) {
	n, err := t.Channel.Send(p)
	t.log.Debug("send", zap.String("data", hex.EncodeToString(p[:max(n, 0)])), zap.Int("len", n), zap.Error(err))
	return n, err
}

func (t *traced) Receive(p []byte) (int, error) {
	n, err := t.Channel.Receive(p)
	t.log.Debug("recv", zap.String("data", hex.EncodeToString(p[:max(n, 0)])), zap.Int("len", n), zap.Error(err))
	return n, err
}

func (t *traced) SetBaud(rate int) error {
	err := t.Channel.SetBaud(rate)
	t.log.Debug("baud", zap.Int("rate", rate), zap.Error(err))
	return err
}

func (t *traced) Reopen() error {
	err := t.Channel.Reopen()
	t.log.Debug("reopen", zap.Error(err))
	return err
}
