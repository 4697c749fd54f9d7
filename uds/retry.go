package uds

import (
	"errors"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/thn-ecu/lampdiag/canbus"
)

const defaultRetryDelay = 100 * time.Millisecond

// ReadDataByIdentifierRetry repeats a read for callers that poll cyclically
// and can tolerate a short delay, such as the value table refresh. Timeouts
// are retried up to attempts times; a negative response never is, since the
// unit has already answered.
func ReadDataByIdentifierRetry(bus canbus.Bus, p Profile, did uint16, timeout time.Duration, attempts uint) ([]byte, error) {
	var payload []byte
	err := retry.Do(
		func() error {
			var err error
			payload, err = ReadDataByIdentifier(bus, p, did, timeout)
			if err != nil {
				var negative NegativeResponseError
				if errors.As(err, &negative) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			return nil
		},
		retry.Attempts(attempts),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(defaultRetryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return payload, nil
}
