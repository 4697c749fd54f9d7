package canbus

import (
	"sync"
	"time"
)

// Responder turns a sent frame into zero or more reply frames. Registered
// responders let tests and demo runs script a remote ECU.
type Responder func(id uint32, data []byte) []Frame

// LoopbackBus is an in-memory transport. Sent frames are recorded; replies
// produced by responders and frames injected from outside are queued for
// Recv in arrival order.
type LoopbackBus struct {
	mu         sync.Mutex
	pending    []Frame
	sent       []Frame
	responders []Responder
	closed     bool
}

func NewLoopbackBus() *LoopbackBus {
	return &LoopbackBus{}
}

// Respond registers a scripted responder. Responders run synchronously
// inside Send.
func (b *LoopbackBus) Respond(r Responder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responders = append(b.responders, r)
}

// Inject queues a frame as if it had been observed on the bus. The timestamp
// is preserved when set, otherwise stamped with the monotonic clock.
func (b *LoopbackBus) Inject(f Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if f.Timestamp == 0 {
		f.Timestamp = Now()
	}
	b.pending = append(b.pending, f)
}

func (b *LoopbackBus) Send(id uint32, data []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return NewSendError("loopback: bus closed")
	}
	sent := Frame{ID: id, Data: append([]byte(nil), data...), Timestamp: Now()}
	b.sent = append(b.sent, sent)
	responders := append([]Responder(nil), b.responders...)
	b.mu.Unlock()

	for _, r := range responders {
		for _, reply := range r(id, sent.Data) {
			b.Inject(reply)
		}
	}
	return nil
}

func (b *LoopbackBus) Recv(timeout time.Duration) (*Frame, error) {
	deadline := time.Now().Add(timeout)
	for {
		b.mu.Lock()
		if len(b.pending) > 0 {
			f := b.pending[0]
			b.pending = b.pending[1:]
			b.mu.Unlock()
			return &f, nil
		}
		b.mu.Unlock()
		if !time.Now().Before(deadline) {
			return nil, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (b *LoopbackBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Sent returns a copy of every frame sent so far, in order.
func (b *LoopbackBus) Sent() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Frame(nil), b.sent...)
}
