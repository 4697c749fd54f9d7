// Package signal turns reassembled UDS payloads into physical values. All
// functions are pure; short payloads are treated as zero-padded rather than
// rejected so that displays keep showing defined values.
package signal

// LEDChannels is the number of LED channels per headlamp unit.
const LEDChannels = 10

const ledPayloadLength = 2 * LEDChannels

// DecodeLED splits the 0xD631 payload into per-channel duty-cycle
// percentages and currents. The first ten bytes are percentages clamped to
// 0..100, the next ten are currents in 10 mA steps, floored at zero and
// scaled to milliamps. Index i belongs to channel i+1.
func DecodeLED(payload []byte) (percents [LEDChannels]int, currents [LEDChannels]int) {
	padded := make([]byte, ledPayloadLength)
	copy(padded, payload)

	for i := 0; i < LEDChannels; i++ {
		pct := int(padded[i])
		if pct > 100 {
			pct = 100
		}
		percents[i] = pct
		currents[i] = int(padded[LEDChannels+i]) * 10
	}
	return percents, currents
}

// DecodeAHL decodes the adaptive headlight position (0xD663): a big-endian
// 16-bit value in 0.1 degree steps. A one-byte payload is taken as the raw
// value, an empty payload as zero.
func DecodeAHL(payload []byte) float64 {
	var raw int
	switch {
	case len(payload) >= 2:
		raw = int(payload[0])<<8 | int(payload[1])
	case len(payload) == 1:
		raw = int(payload[0])
	}
	return float64(raw) / 10.0
}

// DecodeLWR decodes the range leveling position (0xD63B): one byte in 0.1
// degree steps, zero when the payload is empty.
func DecodeLWR(payload []byte) float64 {
	if len(payload) == 0 {
		return 0
	}
	return float64(payload[0]) / 10.0
}

// LEDActive reports whether any LED channel is currently driven. It applies
// the detector-side pairwise reading of the 0xD631 payload: up to ten
// (current, percent) pairs, active when a pair shows more than 0 % duty or
// at least 50 mA.
func LEDActive(payload []byte) bool {
	n := len(payload)
	if n > ledPayloadLength {
		n = ledPayloadLength
	}
	for i := 0; i < n; i += 2 {
		milliamp := int(payload[i]) * 10
		pct := 0
		if i+1 < n {
			pct = int(payload[i+1])
		}
		if pct > 0 || milliamp >= 50 {
			return true
		}
	}
	return false
}
