package trigger

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/thn-ecu/lampdiag/canbus"
	"github.com/thn-ecu/lampdiag/logstream"
)

// newTestRunner wires a runner to a shared loopback bus that answers every
// LED status read with an all-off payload.
func newTestRunner(t *testing.T) (*Runner, *canbus.LoopbackBus, *logstream.Queue) {
	t.Helper()
	bus := canbus.NewLoopbackBus()
	respondSF(bus, 0xD631, func() []byte { return []byte{0x00, 0x00} })

	queue := logstream.NewQueue()
	open := func() (canbus.Bus, error) { return bus, nil }
	runner, err := NewRunner(open, queue, Options{Profile: "links", Target: TargetLEDAnyOn})
	if err != nil {
		t.Fatal(err)
	}
	return runner, bus, queue
}

func TestNewRunnerValidatesBeforeTransport(t *testing.T) {
	opened := false
	open := func() (canbus.Bus, error) {
		opened = true
		return canbus.NewLoopbackBus(), nil
	}

	_, err := NewRunner(open, logstream.NewQueue(), Options{Profile: "links", Target: "NOPE"})
	if err == nil {
		t.Fatal("unknown target accepted")
	}
	if _, err := NewRunner(open, logstream.NewQueue(), Options{Profile: "hinten", Target: TargetLEDAnyOn}); err == nil {
		t.Fatal("unknown profile accepted")
	}
	if opened {
		t.Error("transport was opened during validation")
	}
}

func TestRunnerStartTwice(t *testing.T) {
	runner, _, _ := newTestRunner(t)

	if err := runner.Start(); err != nil {
		t.Fatal(err)
	}
	if err := runner.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}

	runner.Stop()
	runner.Wait()
	if runner.IsRunning() {
		t.Error("still running after Wait")
	}
}

func TestRunnerStartFailsOnOpenError(t *testing.T) {
	open := func() (canbus.Bus, error) {
		return nil, canbus.NewConnectionError("no adapter")
	}
	runner, err := NewRunner(open, logstream.NewQueue(), Options{Profile: "links", Target: TargetLEDAnyOn})
	if err != nil {
		t.Fatal(err)
	}
	if err := runner.Start(); err == nil {
		t.Fatal("Start succeeded without a transport")
	}
	if runner.IsRunning() {
		t.Error("running after a failed Start")
	}
	// A failed Start must not block the next attempt.
	if err := runner.Start(); errors.Is(err, ErrAlreadyRunning) {
		t.Error("failed Start left the runner marked as running")
	}
}

func TestRunnerFinalRanking(t *testing.T) {
	runner, bus, queue := newTestRunner(t)

	if err := runner.Start(); err != nil {
		t.Fatal(err)
	}
	bus.Inject(canbus.Frame{ID: 0x1B4, Data: []byte{0x00}})
	time.Sleep(100 * time.Millisecond)
	runner.Stop()
	runner.Wait()

	output := strings.Join(queue.Drain(), "\n")
	if !strings.Contains(output, "Starte Target: LED_ANY_ON") {
		t.Errorf("missing start line:\n%s", output)
	}
	if !strings.Contains(output, "=== Endgültiges Ranking ===") {
		t.Errorf("missing final ranking:\n%s", output)
	}
	if !strings.Contains(output, "Trigger Finder beendet.") {
		t.Errorf("missing end line:\n%s", output)
	}
}

func TestRunnerActiveIDs(t *testing.T) {
	runner, bus, _ := newTestRunner(t)

	if runner.ActiveIDs() != nil {
		t.Error("ActiveIDs before Start should be nil")
	}

	if err := runner.Start(); err != nil {
		t.Fatal(err)
	}
	// The detector polls the same transport and may swallow an injected
	// frame, so keep injecting until the loop has seen both ids.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		bus.Inject(canbus.Frame{ID: 0x1B4, Data: []byte{0x00}})
		bus.Inject(canbus.Frame{ID: 0x2F8, Data: []byte{0x00}})
		if len(runner.ActiveIDs()) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	ids := runner.ActiveIDs()
	if len(ids) != 2 {
		t.Errorf("active ids = %v, want both injected ids", ids)
	}

	runner.Stop()
	runner.Wait()
}

func TestRunnerRestartGetsFreshLiveWindow(t *testing.T) {
	runner, bus, _ := newTestRunner(t)

	if err := runner.Start(); err != nil {
		t.Fatal(err)
	}
	waitForIDs := func(n int) []uint32 {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			bus.Inject(canbus.Frame{ID: 0x1B4, Data: []byte{0x00}})
			if ids := runner.ActiveIDs(); len(ids) >= n {
				return ids
			}
			time.Sleep(10 * time.Millisecond)
		}
		return runner.ActiveIDs()
	}
	if ids := waitForIDs(1); len(ids) == 0 {
		t.Fatal("first run never saw the injected id")
	}
	runner.Stop()
	runner.Wait()

	// Stopping the first run must not have killed the replacement cache.
	if err := runner.Start(); err != nil {
		t.Fatal(err)
	}
	if ids := waitForIDs(1); len(ids) == 0 {
		t.Error("second run never saw the injected id")
	}
	runner.Stop()
	runner.Wait()
}

func TestRunnerString(t *testing.T) {
	runner, _, _ := newTestRunner(t)
	if got := runner.String(); got != "LED_ANY_ON/links" {
		t.Errorf("String() = %q", got)
	}
}
