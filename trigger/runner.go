package trigger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/thn-ecu/lampdiag/canbus"
	"github.com/thn-ecu/lampdiag/logstream"
	"github.com/thn-ecu/lampdiag/uds"
)

const (
	recvPoll  = 10 * time.Millisecond
	loopSleep = 10 * time.Millisecond

	liveIDTTL = 5 * time.Second

	eventTopIDs  = 5
	eventTopBits = 5
	finalTopBits = 20
)

// ErrAlreadyRunning is returned by Start while a run is in progress.
var ErrAlreadyRunning = errors.New("trigger finder is already running")

// Runner executes the trigger finder in a background goroutine. It holds one
// transport handle for the whole run, communicates exclusively through the
// log queue and is stopped cooperatively.
type Runner struct {
	open canbus.OpenFunc
	log  *logstream.Queue

	profile  uds.Profile
	detector Detector

	mu       sync.Mutex
	running  bool
	stopping bool
	done     chan struct{}

	liveIDs *ttlcache.Cache[uint32, []byte]
}

// NewRunner validates the options and prepares a runner. The transport is
// not touched until Start.
func NewRunner(open canbus.OpenFunc, log *logstream.Queue, opts Options) (*Runner, error) {
	profile, err := uds.ProfileByName(opts.Profile)
	if err != nil {
		return nil, err
	}
	detector, err := NewDetector(opts)
	if err != nil {
		return nil, err
	}
	return &Runner{
		open:     open,
		log:      log,
		profile:  profile,
		detector: detector,
	}, nil
}

// Start opens the transport and launches the run. A failed open aborts
// before the run ever begins.
func (r *Runner) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.running = true
	r.stopping = false
	r.done = make(chan struct{})
	r.mu.Unlock()

	bus, err := r.open()
	if err != nil {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		return err
	}

	cache := ttlcache.New[uint32, []byte](
		ttlcache.WithTTL[uint32, []byte](liveIDTTL),
	)
	r.mu.Lock()
	r.liveIDs = cache
	r.mu.Unlock()
	go cache.Start()

	go r.run(bus, cache)
	return nil
}

// Stop requests a cooperative shutdown. The run winds down after its current
// iteration; Wait blocks until the transport is released.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopping = true
}

// Wait blocks until the current run has fully wound down. It returns
// immediately when no run is active.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) shouldStop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopping
}

// ActiveIDs lists the arbitration ids seen on the bus within the live
// window, for status display while a run is active.
func (r *Runner) ActiveIDs() []uint32 {
	r.mu.Lock()
	cache := r.liveIDs
	r.mu.Unlock()
	if cache == nil {
		return nil
	}
	items := cache.Items()
	ids := make([]uint32, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	return ids
}

func (r *Runner) run(bus canbus.Bus, liveIDs *ttlcache.Cache[uint32, []byte]) {
	defer func() {
		liveIDs.Stop()
		bus.Close()
		r.mu.Lock()
		r.running = false
		close(r.done)
		r.mu.Unlock()
	}()

	var ring []ringEntry
	counters := NewCounters()

	r.detector.Reset()
	r.log.Pushf("Starte Target: %s – Profil: %s", r.detector.Name(), r.profile.Name)
	r.log.Push("Schalte das gewählte Feature mehrmals an/aus … (Stopp beendet)")

	lastState := false
	for !r.shouldStop() {
		f, err := bus.Recv(recvPoll)
		if err != nil {
			// Transport failures are not recoverable within a run.
			r.log.Pushf("Transportfehler: %v", err)
			break
		}
		if f != nil {
			ring = append(ring, ringEntry{ts: f.Timestamp, id: f.ID, data: f.Data})
			cut := f.Timestamp - ringWindowSeconds
			for len(ring) > 0 && ring[0].ts < cut {
				ring = ring[1:]
			}
			liveIDs.Set(f.ID, f.Data, ttlcache.DefaultTTL)
		}

		state, err := r.detector.ReadState(bus, r.profile)
		if err != nil {
			// A failed ground-truth read only skips this iteration.
			var timeout uds.TimeoutError
			if errors.As(err, &timeout) {
				r.log.Pushf("UDS Timeout: %v", err)
			} else {
				r.log.Pushf("Fehler beim Lesen des Ground-Truth-Signals: %v", err)
			}
			state = false
		}

		if state && !lastState {
			tEvent := canbus.Now()
			recordEvent(ring, tEvent, counters)
			r.log.Push("")
			r.log.Pushf("Ereignis @ %.3fs – Top IDs:", tEvent)
			for _, ic := range counters.topIDs(eventTopIDs) {
				r.log.Pushf("  ID 0x%03X: %d", ic.ID, ic.Count)
			}
			r.log.Push("Top Bits (ID,Byte,Bit):")
			for _, bc := range counters.topBits(eventTopBits) {
				r.log.Pushf("  0x%03X, B%d, bit%d: %d", bc.Key.ID, bc.Key.Byte, bc.Key.Bit, bc.Count)
			}
		}

		lastState = state
		time.Sleep(loopSleep)
	}

	r.log.Push("")
	r.log.Push("=== Endgültiges Ranking ===")
	for _, ic := range counters.topIDs(-1) {
		r.log.Pushf("ID 0x%03X: %d", ic.ID, ic.Count)
	}
	r.log.Push("")
	r.log.Pushf("Top %d Byte/Bit-Kandidaten:", finalTopBits)
	for _, bc := range counters.topBits(finalTopBits) {
		r.log.Pushf("ID 0x%03X  Byte %d  Bit %d  -> %d Treffer", bc.Key.ID, bc.Key.Byte, bc.Key.Bit, bc.Count)
	}
	r.log.Push("Trigger Finder beendet.")
}

// String summarizes the configured run for status lines.
func (r *Runner) String() string {
	return fmt.Sprintf("%s/%s", r.detector.Name(), r.profile.Name)
}
