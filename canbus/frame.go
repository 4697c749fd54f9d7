package canbus

import (
	"fmt"
	"strings"
	"time"
)

// Frame is one classic CAN frame as seen on the bus: an 11-bit arbitration
// id, up to 8 data bytes and a monotonic receive timestamp in seconds.
// Frames handed out by a Bus are never mutated afterwards.
type Frame struct {
	ID        uint32
	Data      []byte
	Timestamp float64
}

// DLC returns the data length code, which for classic CAN is simply the
// number of data bytes.
func (f *Frame) DLC() int {
	return len(f.Data)
}

func (f *Frame) String() string {
	return fmt.Sprintf("ID=0x%03X DLC=%d Data=%s", f.ID, len(f.Data), FormatBytes(f.Data))
}

// FormatBytes renders data bytes as space-separated uppercase hex pairs.
func FormatBytes(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

var epoch = time.Now()

// Now returns the monotonic clock used for frame timestamps, in seconds
// since process start.
func Now() float64 {
	return time.Since(epoch).Seconds()
}
