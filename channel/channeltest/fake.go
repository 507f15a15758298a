// Package channeltest provides a scripted channel.Channel for tests.
package channeltest

import (
	"sync"
)

// Fake replays queued replies and records everything sent to it.
//
// Each Receive returns the next queued reply, split across calls when the
// caller's buffer is smaller. An empty queue behaves like a transport
// timeout and returns (0, nil).
type Fake struct {
	mu sync.Mutex

	// Respond, if set, is called for every sent frame and its result queued.
	Respond func(frame []byte) [][]byte

	// SendErr and ReceiveErr, if set, fail the next matching call.
	SendErr    error
	ReceiveErr error
	BaudErr    error

	replies [][]byte
	sent    [][]byte
	bauds   []int
	reopens int
	closed  bool
	recvs   int
}

// New returns a Fake with replies queued.
func New(replies ...[]byte) *Fake {
	f := &Fake{}
	f.Queue(replies...)
	return f
}

// Queue appends replies.
func (f *Fake) Queue(replies ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range replies {
		f.replies = append(f.replies, append([]byte(nil), r...))
	}
}

// Send implements channel.Channel.
func (f *Fake) Send(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.SendErr; err != nil {
		f.SendErr = nil
		return 0, err
	}
	frame := append([]byte(nil), p...)
	f.sent = append(f.sent, frame)
	if f.Respond != nil {
		for _, r := range f.Respond(frame) {
			f.replies = append(f.replies, append([]byte(nil), r...))
		}
	}
	return len(p), nil
}

// Receive implements channel.Channel.
func (f *Fake) Receive(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.recvs++
	if err := f.ReceiveErr; err != nil {
		f.ReceiveErr = nil
		return 0, err
	}
	if len(f.replies) == 0 {
		return 0, nil
	}

	n := copy(p, f.replies[0])
	if n < len(f.replies[0]) {
		f.replies[0] = f.replies[0][n:]
	} else {
		f.replies = f.replies[1:]
	}
	return n, nil
}

// SetBaud implements channel.Channel.
func (f *Fake) SetBaud(rate int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.BaudErr; err != nil {
		f.BaudErr = nil
		return err
	}
	f.bauds = append(f.bauds, rate)
	return nil
}

// Reopen implements channel.Channel.
func (f *Fake) Reopen() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reopens++
	return nil
}

// Close implements channel.Channel.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Sent returns copies of every frame sent so far.
func (f *Fake) Sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

// Bauds returns every rate passed to SetBaud.
func (f *Fake) Bauds() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.bauds...)
}

// Reopens returns how many times Reopen was called.
func (f *Fake) Reopens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reopens
}

// Receives returns how many times Receive was called.
func (f *Fake) Receives() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recvs
}

// Pending returns the number of queued replies not yet consumed.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replies)
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
