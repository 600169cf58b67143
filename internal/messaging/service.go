package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"arenadesk/internal/messaging/metrics"
	"arenadesk/pkg/platform/ids"
)

// DefaultMaxRecipients bounds the fan-out cost of a single broadcast.
// Recipients beyond the cap are dropped from the call, not queued.
const DefaultMaxRecipients = 2000

// Service is the fan-out engine: dedup, cap, persist atomically, report.
type Service struct {
	store         Store
	maxRecipients int
	log           *slog.Logger
	metrics       *metrics.Metrics
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithMaxRecipients overrides the fan-out cap.
func WithMaxRecipients(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxRecipients = n
		}
	}
}

// WithMetrics attaches broadcast metrics.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService builds the fan-out engine over a durable store.
func NewService(store Store, log *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store:         store,
		maxRecipients: DefaultMaxRecipients,
		log:           log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Broadcast sends one message to a deduplicated, size-capped recipient set
// as a single durable unit. Input validation (text bounds, positive ids)
// belongs to the caller; this layer owns dedup, cap and atomic persistence.
// An input that dedups to nothing still creates the message with zero
// links.
func (s *Service) Broadcast(ctx context.Context, senderID int64, text string, recipientIDs []int64) (Receipt, error) {
	recipients, truncated := ids.DedupeCapped(recipientIDs, s.maxRecipients)
	if truncated {
		s.metrics.IncrementTruncations()
		s.log.Warn("broadcast recipient set capped",
			slog.Int64("sender_id", senderID),
			slog.Int("requested", len(recipientIDs)),
			slog.Int("kept", len(recipients)))
	}

	msg, linked, err := s.store.CreateMessageWithRecipients(ctx, senderID, text, recipients)
	if err != nil {
		s.metrics.ObserveBroadcast("failed", 0)
		return Receipt{}, fmt.Errorf("broadcast from %d: %w", senderID, err)
	}

	s.metrics.ObserveBroadcast("ok", len(linked))
	s.log.Info("broadcast stored",
		slog.Int64("message_id", msg.ID),
		slog.Int64("sender_id", senderID),
		slog.Int("recipients", len(linked)),
		slog.Bool("truncated", truncated))

	return Receipt{
		MessageID:  msg.ID,
		Text:       msg.Text,
		Recipients: linked,
		Truncated:  truncated,
	}, nil
}
