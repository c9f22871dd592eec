package monitor

import (
	"errors"
	"fmt"
)

// ErrPrecondition is matched by every error reporting an operation requested
// in a state that does not allow it.
var ErrPrecondition = errors.New("precondition violated")

var (
	// ErrUnknownRecipient is returned for a recipient with no mailbox.
	ErrUnknownRecipient = fmt.Errorf("%w: unknown recipient", ErrPrecondition)

	// ErrNotMonitored is returned when polling a recipient without a monitor.
	ErrNotMonitored = fmt.Errorf("%w: recipient is not monitored", ErrPrecondition)

	// ErrNotEstablished is returned when polling a monitor whose queue was
	// never provisioned. It also matches ErrNotMonitored.
	ErrNotEstablished = fmt.Errorf("%w: queue not provisioned", ErrNotMonitored)
)

// ErrMalformedEnvelope reports a notification body that does not lead to an
// object key.
var ErrMalformedEnvelope = errors.New("malformed envelope")
