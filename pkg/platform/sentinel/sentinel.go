package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Transport channels, the
// correlation registry, and stores return these (optionally wrapped) so
// services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrUnavailable: channel or resource cannot accept work right now
// - ErrTimeout: the deadline elapsed before a correlated reply arrived
// - ErrMalformedReply: a reply arrived but does not match the envelope shape
// - ErrDuplicateCorrelation: a correlation id was registered twice
var (
	ErrNotFound             = errors.New("not found")
	ErrUnavailable          = errors.New("unavailable")
	ErrTimeout              = errors.New("timeout")
	ErrMalformedReply       = errors.New("malformed reply")
	ErrDuplicateCorrelation = errors.New("duplicate correlation id")
)
