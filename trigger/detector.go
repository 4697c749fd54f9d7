// Package trigger watches the live bus, detects edge-triggered events from a
// decoded ground-truth signal and statistically correlates raw frame and bit
// changes with those events.
package trigger

import (
	"fmt"
	"math"
	"time"

	"github.com/thn-ecu/lampdiag/canbus"
	"github.com/thn-ecu/lampdiag/signal"
	"github.com/thn-ecu/lampdiag/uds"
)

// Detector delivers the boolean ground-truth signal the correlation engine
// timestamps events with. Implementations may own one scalar of state (the
// previous reading); Reset clears it before a run.
type Detector interface {
	Name() string
	Reset()
	ReadState(bus canbus.Bus, p uds.Profile) (bool, error)
}

func messageOrDefault(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}

// InvalidOperatorError reports a comparison operator outside the six
// recognized symbols.
type InvalidOperatorError struct {
	msg string
}

func NewInvalidOperatorError(msg string) InvalidOperatorError {
	return InvalidOperatorError{msg: msg}
}

func (e InvalidOperatorError) Error() string {
	return messageOrDefault(e.msg, "invalid comparison operator")
}

const detectorReadTimeout = time.Second

// LEDAnyOn fires while any LED channel of the unit is driven.
type LEDAnyOn struct{}

func (LEDAnyOn) Name() string { return "LED_ANY_ON" }
func (LEDAnyOn) Reset()       {}

func (LEDAnyOn) ReadState(bus canbus.Bus, p uds.Profile) (bool, error) {
	payload, err := uds.ReadDataByIdentifier(bus, p, uds.DIDLEDStatus, detectorReadTimeout)
	if err != nil {
		return false, err
	}
	return signal.LEDActive(payload), nil
}

// AHLMove fires when the adaptive headlight position moved by at least Delta
// degrees since the previous poll. The first reading only establishes the
// baseline.
type AHLMove struct {
	Delta float64
	prev  *float64
}

func NewAHLMove(delta float64) *AHLMove {
	if delta <= 0 {
		delta = 1.0
	}
	return &AHLMove{Delta: delta}
}

func (*AHLMove) Name() string { return "AHL_MOVE" }
func (d *AHLMove) Reset()     { d.prev = nil }

func (d *AHLMove) ReadState(bus canbus.Bus, p uds.Profile) (bool, error) {
	payload, err := uds.ReadDataByIdentifier(bus, p, uds.DIDAHLPosition, detectorReadTimeout)
	if err != nil {
		return false, err
	}
	if len(payload) < 2 {
		return false, nil
	}
	val := signal.DecodeAHL(payload)
	if d.prev == nil {
		d.prev = &val
		return false, nil
	}
	moved := math.Abs(val-*d.prev) >= d.Delta
	d.prev = &val
	return moved, nil
}

// LWRMove fires when the range leveling position moved by at least Delta
// degrees since the previous poll.
type LWRMove struct {
	Delta float64
	prev  *float64
}

func NewLWRMove(delta float64) *LWRMove {
	if delta <= 0 {
		delta = 0.5
	}
	return &LWRMove{Delta: delta}
}

func (*LWRMove) Name() string { return "LWR_MOVE" }
func (d *LWRMove) Reset()     { d.prev = nil }

func (d *LWRMove) ReadState(bus canbus.Bus, p uds.Profile) (bool, error) {
	payload, err := uds.ReadDataByIdentifier(bus, p, uds.DIDLWRPosition, detectorReadTimeout)
	if err != nil {
		return false, err
	}
	if len(payload) == 0 {
		return false, nil
	}
	val := signal.DecodeLWR(payload)
	if d.prev == nil {
		d.prev = &val
		return false, nil
	}
	moved := math.Abs(val-*d.prev) >= d.Delta
	d.prev = &val
	return moved, nil
}

var comparisons = map[string]func(a, b float64) bool{
	">":  func(a, b float64) bool { return a > b },
	">=": func(a, b float64) bool { return a >= b },
	"==": func(a, b float64) bool { return a == b },
	"!=": func(a, b float64) bool { return a != b },
	"<":  func(a, b float64) bool { return a < b },
	"<=": func(a, b float64) bool { return a <= b },
}

// UDSCustom compares one payload byte of a configurable identifier against
// a threshold. A byte beyond the payload end reads as zero.
type UDSCustom struct {
	DID       uint16
	Op        string
	Threshold float64
	Index     int

	cmp func(a, b float64) bool
}

func NewUDSCustom(did uint16, op string, threshold float64, index int) (*UDSCustom, error) {
	cmp, ok := comparisons[op]
	if !ok {
		return nil, NewInvalidOperatorError(fmt.Sprintf("invalid comparison operator %q", op))
	}
	if index < 0 {
		return nil, fmt.Errorf("payload byte index must not be negative, got %d", index)
	}
	return &UDSCustom{DID: did, Op: op, Threshold: threshold, Index: index, cmp: cmp}, nil
}

func (*UDSCustom) Name() string { return "UDS_CUSTOM" }
func (*UDSCustom) Reset()       {}

func (d *UDSCustom) ReadState(bus canbus.Bus, p uds.Profile) (bool, error) {
	payload, err := uds.ReadDataByIdentifier(bus, p, d.DID, detectorReadTimeout)
	if err != nil {
		return false, err
	}
	var value float64
	if d.Index < len(payload) {
		value = float64(payload[d.Index])
	}
	return d.cmp(value, d.Threshold), nil
}

const canBitPollWindow = 200 * time.Millisecond

// CANBit takes its ground truth straight from raw frames, without UDS: it
// fires on the rising edge of a masked byte of a fixed arbitration id
// reaching the configured value.
type CANBit struct {
	ID    uint32
	Byte  int
	Mask  byte
	Value byte

	last byte
}

func NewCANBit(id uint32, byteIdx int, mask, value byte) (*CANBit, error) {
	if id > 0x7FF {
		return nil, fmt.Errorf("CAN id 0x%X exceeds 11 bits", id)
	}
	if byteIdx < 0 || byteIdx > 7 {
		return nil, fmt.Errorf("byte index must be 0..7, got %d", byteIdx)
	}
	return &CANBit{ID: id, Byte: byteIdx, Mask: mask, Value: value}, nil
}

func (*CANBit) Name() string { return "CAN_BIT" }
func (d *CANBit) Reset()     { d.last = 0 }

func (d *CANBit) ReadState(bus canbus.Bus, _ uds.Profile) (bool, error) {
	target := d.Value & d.Mask
	deadline := time.Now().Add(canBitPollWindow)
	for time.Now().Before(deadline) {
		f, err := bus.Recv(recvPoll)
		if err != nil {
			return false, err
		}
		if f == nil || f.ID != d.ID || d.Byte >= len(f.Data) {
			continue
		}
		masked := f.Data[d.Byte] & d.Mask
		if masked == target {
			rising := d.last != target
			d.last = masked
			return rising, nil
		}
		d.last = masked
	}
	return false, nil
}
