package trigger

import "fmt"

// Target names accepted by Options.Target.
const (
	TargetLEDAnyOn  = "LED_ANY_ON"
	TargetAHLMove   = "AHL_MOVE"
	TargetLWRMove   = "LWR_MOVE"
	TargetUDSCustom = "UDS_CUSTOM"
	TargetCANBit    = "CAN_BIT"
)

// Options carries the plain configuration values the presentation layer
// supplies for a run. Variant-specific fields are pointers so that a missing
// required value is distinguishable from zero and rejected up front.
type Options struct {
	Profile string
	Target  string

	// UDS_CUSTOM
	UDSDid       *uint16
	UDSOp        string
	UDSThreshold float64
	UDSIndex     int

	// CAN_BIT
	CANID    *uint32
	CANByte  *int
	CANMask  *byte
	CANValue *byte

	// Deltas for the movement detectors; zero selects the per-variant
	// default.
	AHLDelta float64
	LWRDelta float64
}

// NewDetector validates the options and constructs the selected detector.
// Validation failures happen here, before any transport is opened.
func NewDetector(opts Options) (Detector, error) {
	switch opts.Target {
	case TargetLEDAnyOn:
		return LEDAnyOn{}, nil
	case TargetAHLMove:
		return NewAHLMove(opts.AHLDelta), nil
	case TargetLWRMove:
		return NewLWRMove(opts.LWRDelta), nil
	case TargetUDSCustom:
		if opts.UDSDid == nil {
			return nil, fmt.Errorf("target %s requires a data identifier", TargetUDSCustom)
		}
		op := opts.UDSOp
		if op == "" {
			op = ">"
		}
		return NewUDSCustom(*opts.UDSDid, op, opts.UDSThreshold, opts.UDSIndex)
	case TargetCANBit:
		if opts.CANID == nil || opts.CANByte == nil || opts.CANMask == nil || opts.CANValue == nil {
			return nil, fmt.Errorf("target %s requires CAN id, byte index, mask and value", TargetCANBit)
		}
		return NewCANBit(*opts.CANID, *opts.CANByte, *opts.CANMask, *opts.CANValue)
	default:
		return nil, fmt.Errorf("unknown target %q", opts.Target)
	}
}
