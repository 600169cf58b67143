package admin

import (
	"errors"
	"fmt"
)

// DownstreamError means a downstream service explicitly rejected an
// operation. Message carries the downstream's reason verbatim; it is the
// authoritative, user-facing description and must not be rewritten. Step
// names the failing call so multi-call operations stay diagnosable.
type DownstreamError struct {
	Step    string
	Message string
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Step, e.Message)
}

// AsDownstream extracts a DownstreamError if err carries one. Everything
// else (transport, timeout, malformed replies) should be presented as a
// generic "temporarily unavailable", never with its raw message.
func AsDownstream(err error) (*DownstreamError, bool) {
	var derr *DownstreamError
	if errors.As(err, &derr) {
		return derr, true
	}
	return nil, false
}
