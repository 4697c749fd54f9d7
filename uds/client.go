// Package uds implements the "read data by identifier" exchange (service
// 0x22) over an extended-addressing transport: every frame carries a leading
// address byte in front of the ISO-TP style PCI nibble.
package uds

import (
	"fmt"
	"time"

	"github.com/thn-ecu/lampdiag/canbus"
)

const (
	ServiceReadDataByIdentifier = 0x22
	positiveResponseSID         = 0x62

	pciSingleFrame      = 0x00
	pciFirstFrame       = 0x10
	pciConsecutiveFrame = 0x20
	pciFlowControl      = 0x30

	// Reassembly safety ceiling. No identifier served by the headlamp
	// units carries more payload than this.
	maxPayloadLength = 128

	// DefaultTimeout bounds each response wait: the initial one and every
	// consecutive-frame wait.
	DefaultTimeout = time.Second

	recvPoll = 10 * time.Millisecond
)

// ReadDataByIdentifier performs one 0x22 exchange on the given profile and
// returns the reassembled payload without the 0x62/DID echo.
//
// Reassembly is deliberately lenient: when consecutive-frame collection is
// interrupted by a non-matching frame, whatever was collected so far is
// returned. Callers that need the declared length must validate it
// themselves.
func ReadDataByIdentifier(bus canbus.Bus, p Profile, did uint16, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	didHi := byte(did >> 8)
	didLo := byte(did)

	request := []byte{p.EAReq, 0x03, ServiceReadDataByIdentifier, didHi, didLo, 0x00, 0x00, 0x00}
	if err := bus.Send(p.TxID, request); err != nil {
		return nil, err
	}

	first, err := recvMatching(bus, p, timeout)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, TimeoutError{NewProtocolError(fmt.Sprintf("no response for DID 0x%04X within %v", did, timeout))}
	}

	switch first[1] & 0xF0 {
	case pciSingleFrame:
		if first[2] != positiveResponseSID || first[3] != didHi || first[4] != didLo {
			return nil, NegativeResponseError{NewProtocolError(fmt.Sprintf("negative response for DID 0x%04X (single frame)", did))}
		}
		length := int(first[1] & 0x0F)
		end := 5 + length
		if end > len(first) {
			end = len(first)
		}
		return append([]byte(nil), first[5:end]...), nil

	case pciFirstFrame:
		if first[3] != positiveResponseSID || first[4] != didHi || first[5] != didLo {
			return nil, NegativeResponseError{NewProtocolError(fmt.Sprintf("negative response for DID 0x%04X (first frame)", did))}
		}
		// Authorize the remaining segments before collecting them.
		flowControl := []byte{p.EAReq, pciFlowControl, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
		if err := bus.Send(p.TxID, flowControl); err != nil {
			return nil, err
		}
		payload := append([]byte(nil), first[6:]...)
		for {
			cf, err := recvMatching(bus, p, timeout)
			if err != nil {
				return nil, err
			}
			if cf == nil || cf[1]&0xF0 != pciConsecutiveFrame {
				// Lenient stop: reassembly ends here, the collected
				// prefix is the result.
				break
			}
			payload = append(payload, cf[2:]...)
			if len(payload) > maxPayloadLength {
				break
			}
		}
		return payload, nil

	default:
		return nil, UnexpectedPCIError{NewProtocolError(fmt.Sprintf("unexpected PCI 0x%02X for DID 0x%04X", first[1], did))}
	}
}

// recvMatching waits up to timeout for a frame from the profile's response
// id whose extended address byte matches. Non-matching traffic is skipped.
// The returned data is zero-padded to 8 bytes; nil means the wait ran out.
func recvMatching(bus canbus.Bus, p Profile, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		f, err := bus.Recv(recvPoll)
		if err != nil {
			return nil, err
		}
		if f == nil || f.ID != p.RxID || len(f.Data) < 2 || f.Data[0] != p.EARsp {
			continue
		}
		data := append([]byte(nil), f.Data...)
		for len(data) < 8 {
			data = append(data, 0)
		}
		return data, nil
	}
	return nil, nil
}
