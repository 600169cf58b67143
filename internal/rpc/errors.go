package rpc

import (
	"errors"
	"fmt"

	"arenadesk/internal/rpc/transport"
	"arenadesk/pkg/platform/sentinel"
)

// TransportError reports a connection-level failure for one call: the
// channel could not accept the send, or no reply arrived in time. It is
// distinct from a downstream rejection, which comes back inside a normally
// returned Envelope.
type TransportError struct {
	Service transport.ServiceName
	Command string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rpc %s/%s: %v", e.Service, e.Command, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a per-call deadline expiry.
func IsTimeout(err error) bool {
	return errors.Is(err, sentinel.ErrTimeout)
}

// IsUnavailable reports whether err means the downstream could not be
// reached at all.
func IsUnavailable(err error) bool {
	return errors.Is(err, sentinel.ErrUnavailable)
}
