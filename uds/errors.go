package uds

func messageOrDefault(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}

// ProtocolError is the base type for failures during a UDS exchange.
type ProtocolError struct {
	msg string
}

func NewProtocolError(msg string) ProtocolError {
	return ProtocolError{msg: msg}
}

func (e ProtocolError) Error() string {
	return messageOrDefault(e.msg, "UDS protocol error")
}

// NegativeResponseError reports a response whose service id or data
// identifier echo does not match the request.
type NegativeResponseError struct {
	ProtocolError
}

func (e NegativeResponseError) Error() string {
	return messageOrDefault(e.msg, "negative UDS response")
}

// UnexpectedPCIError reports a response frame with a PCI nibble that is
// neither single, first nor consecutive frame.
type UnexpectedPCIError struct {
	ProtocolError
}

func (e UnexpectedPCIError) Error() string {
	return messageOrDefault(e.msg, "unexpected PCI frame type")
}

// TimeoutError reports that no matching response frame arrived in time.
type TimeoutError struct {
	ProtocolError
}

func (e TimeoutError) Error() string {
	return messageOrDefault(e.msg, "UDS response timed out")
}
