package sequence

import (
	"sync/atomic"
	"time"

	"github.com/thn-ecu/lampdiag/canbus"
	"github.com/thn-ecu/lampdiag/codec"
	"github.com/thn-ecu/lampdiag/logstream"
)

const (
	DefaultDelay    = 20 * time.Millisecond
	DefaultRxWindow = 200 * time.Millisecond

	drainPoll = 10 * time.Millisecond
)

// Runner sends ordered frame lists over a transport it opens per call. All
// observed traffic is logged; the cancel flag is honored between frames.
type Runner struct {
	Open canbus.OpenFunc
	Log  *logstream.Queue

	// Zero values select the defaults.
	Delay    time.Duration
	RxWindow time.Duration

	// Cancel, when set, is checked at every pacing point.
	Cancel *atomic.Bool
}

func (r *Runner) delay() time.Duration {
	if r.Delay > 0 {
		return r.Delay
	}
	return DefaultDelay
}

func (r *Runner) rxWindow() time.Duration {
	if r.RxWindow > 0 {
		return r.RxWindow
	}
	return DefaultRxWindow
}

func (r *Runner) cancelled() bool {
	return r.Cancel != nil && r.Cancel.Load()
}

// Send transmits the steps in order with full inter-frame pacing, draining
// and logging responses after each one. The transport is released on every
// exit path. A send or receive failure surfaces to the caller and yields
// ok == false.
func (r *Runner) Send(steps []Step) (bool, error) {
	bus, err := r.Open()
	if err != nil {
		return false, err
	}
	defer bus.Close()

	for _, step := range steps {
		if r.cancelled() {
			return false, nil
		}
		if err := r.sendAndDrain(bus, step.ID, step.Data); err != nil {
			return false, err
		}
		time.Sleep(r.delay())
	}
	return true, nil
}

// SendCombinations expands the token list and transmits every concrete
// payload to the given id, honoring the cancel flag between combinations.
// Callers are expected to have confirmed large variant counts beforehand.
func (r *Runner) SendCombinations(id uint32, tokens []codec.Token) (bool, error) {
	bus, err := r.Open()
	if err != nil {
		return false, err
	}
	defer bus.Close()

	for data := range codec.Combinations(tokens) {
		if r.cancelled() {
			return false, nil
		}
		if err := r.sendAndDrain(bus, id, data); err != nil {
			return false, err
		}
		time.Sleep(r.delay())
	}
	return true, nil
}

func (r *Runner) sendAndDrain(bus canbus.Bus, id uint32, data []byte) error {
	if err := bus.Send(id, data); err != nil {
		return err
	}
	if r.Log != nil {
		r.Log.Pushf("TX  ID=0x%03X  DLC=%d  Data=%s", id, len(data), canbus.FormatBytes(data))
	}
	return r.drain(bus)
}

// drain reads and logs everything arriving within the response window. A
// failing transport ends the window immediately and surfaces to the caller.
func (r *Runner) drain(bus canbus.Bus) error {
	deadline := time.Now().Add(r.rxWindow())
	for time.Now().Before(deadline) {
		f, err := bus.Recv(drainPoll)
		if err != nil {
			if r.Log != nil {
				r.Log.Pushf("Empfangsfehler: %v", err)
			}
			return err
		}
		if f == nil {
			continue
		}
		if r.Log != nil {
			r.Log.Pushf("RX  %s  ts=%.6f", f.String(), f.Timestamp)
		}
	}
	return nil
}
