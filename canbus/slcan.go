package canbus

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Lawicel SLCAN bitrate setup codes.
var slcanBitrateCodes = map[int]string{
	10000:   "S0",
	20000:   "S1",
	50000:   "S2",
	100000:  "S3",
	125000:  "S4",
	250000:  "S5",
	500000:  "S6",
	800000:  "S7",
	1000000: "S8",
}

const (
	slcanSerialBaud  = 115200
	slcanReadChunk   = 256
	slcanReadTimeout = 10 * time.Millisecond
)

// SLCANBus drives a Lawicel-style USB/serial CAN adapter speaking the ASCII
// SLCAN protocol. Only standard 11-bit frames are handled; everything else
// coming back from the adapter is skipped.
type SLCANBus struct {
	port serial.Port

	mu     sync.Mutex
	buf    []byte // partial line accumulator between Recv calls
	closed bool
}

// OpenSLCAN opens the serial device, configures the CAN bitrate and opens
// the adapter's CAN channel.
func OpenSLCAN(device string, bitrate int) (*SLCANBus, error) {
	code, ok := slcanBitrateCodes[bitrate]
	if !ok {
		return nil, NewConnectionError(fmt.Sprintf("slcan: unsupported bitrate %d", bitrate))
	}

	mode := &serial.Mode{
		BaudRate: slcanSerialBaud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, NewConnectionError(fmt.Sprintf("slcan: open %s: %v", device, err))
	}
	if err := port.SetReadTimeout(slcanReadTimeout); err != nil {
		port.Close()
		return nil, NewConnectionError(fmt.Sprintf("slcan: set read timeout: %v", err))
	}

	b := &SLCANBus{port: port}

	// Close a possibly open channel first, then set bitrate and open.
	for _, cmd := range []string{"C\r", code + "\r", "O\r"} {
		if _, err := port.Write([]byte(cmd)); err != nil {
			port.Close()
			return nil, NewConnectionError(fmt.Sprintf("slcan: setup command %q: %v", cmd, err))
		}
	}
	return b, nil
}

func (b *SLCANBus) Send(id uint32, data []byte) error {
	line, err := encodeSLCANFrame(id, data)
	if err != nil {
		return err
	}
	if _, err := b.port.Write([]byte(line)); err != nil {
		return NewSendError(fmt.Sprintf("slcan: write: %v", err))
	}
	return nil
}

func (b *SLCANBus) Recv(timeout time.Duration) (*Frame, error) {
	deadline := time.Now().Add(timeout)
	chunk := make([]byte, slcanReadChunk)
	for {
		if f := b.nextBufferedFrame(); f != nil {
			return f, nil
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}
		n, err := b.port.Read(chunk)
		if err != nil {
			return nil, NewConnectionError(fmt.Sprintf("slcan: read: %v", err))
		}
		if n > 0 {
			b.mu.Lock()
			b.buf = append(b.buf, chunk[:n]...)
			b.mu.Unlock()
		}
	}
}

// nextBufferedFrame pops complete lines off the accumulator until one parses
// as a standard data frame.
func (b *SLCANBus) nextBufferedFrame() *Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		idx := -1
		for i, c := range b.buf {
			if c == '\r' || c == '\a' {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil
		}
		line := string(b.buf[:idx])
		b.buf = b.buf[idx+1:]
		if f, ok := parseSLCANLine(line, Now()); ok {
			return f
		}
	}
}

func (b *SLCANBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.port.Write([]byte("C\r"))
	b.port.Close()
	return nil
}

// encodeSLCANFrame builds the ASCII transmit command "tIIILDD..\r" for a
// standard 11-bit frame.
func encodeSLCANFrame(id uint32, data []byte) (string, error) {
	if id > 0x7FF {
		return "", NewSendError(fmt.Sprintf("slcan: arbitration id 0x%X exceeds 11 bits", id))
	}
	if len(data) > 8 {
		return "", NewSendError(fmt.Sprintf("slcan: %d data bytes exceed classic CAN limit", len(data)))
	}
	line := fmt.Sprintf("t%03X%d", id, len(data))
	for _, d := range data {
		line += fmt.Sprintf("%02X", d)
	}
	return line + "\r", nil
}

// parseSLCANLine decodes one received line. Only standard data frames ("t")
// are of interest; status responses, acks and malformed lines report !ok.
func parseSLCANLine(line string, ts float64) (*Frame, bool) {
	if len(line) < 5 || line[0] != 't' {
		return nil, false
	}
	id, err := strconv.ParseUint(line[1:4], 16, 32)
	if err != nil || id > 0x7FF {
		return nil, false
	}
	dlc := int(line[4] - '0')
	if dlc < 0 || dlc > 8 || len(line) < 5+2*dlc {
		return nil, false
	}
	data := make([]byte, dlc)
	for i := 0; i < dlc; i++ {
		v, err := strconv.ParseUint(line[5+2*i:7+2*i], 16, 8)
		if err != nil {
			return nil, false
		}
		data[i] = byte(v)
	}
	return &Frame{ID: uint32(id), Data: data, Timestamp: ts}, true
}
