package rpc

import (
	"context"
	"time"
)

// RunJanitor periodically sweeps abandoned registrations so memory stays
// bounded when replies never arrive. Blocks until ctx is cancelled.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = r.maxAge / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Sweep()
		}
	}
}
