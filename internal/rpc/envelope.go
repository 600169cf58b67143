// Package rpc implements correlated request/reply calls to the downstream
// services. Every downstream answer is normalized into an Envelope; only
// connection-level problems surface as Go errors.
package rpc

import (
	"encoding/json"
	"fmt"

	"arenadesk/pkg/platform/sentinel"
)

// Envelope is the uniform shape of every downstream reply. Success=false
// means the downstream explicitly rejected the command; Message is then the
// sole, authoritative description of why.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// DecodeData unmarshals the envelope data into v.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("envelope carries no data")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode envelope data: %w", err)
	}
	return nil
}

// DecodeEnvelope parses a raw reply body. A reply missing the success key is
// malformed and is never defaulted to success; likewise a rejection without
// a message, since the message is the only error description callers get.
func DecodeEnvelope(raw json.RawMessage) (Envelope, error) {
	var probe struct {
		Success *bool           `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", sentinel.ErrMalformedReply, err)
	}
	if probe.Success == nil {
		return Envelope{}, fmt.Errorf("%w: missing success field", sentinel.ErrMalformedReply)
	}
	if !*probe.Success && probe.Message == "" {
		return Envelope{}, fmt.Errorf("%w: rejection without message", sentinel.ErrMalformedReply)
	}
	return Envelope{
		Success: *probe.Success,
		Message: probe.Message,
		Data:    probe.Data,
	}, nil
}
