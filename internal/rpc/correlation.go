package rpc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"arenadesk/pkg/platform/sentinel"
)

// defaultMaxPendingAge bounds how long an abandoned registration can sit in
// the registry before the janitor expires it.
const defaultMaxPendingAge = 2 * time.Minute

type callResult struct {
	payload json.RawMessage
	err     error
}

// pendingCall is owned exclusively by the registry from creation until
// resolution or expiry. The result channel is buffered so the single sender
// never blocks, and exactly one value is ever sent on it.
type pendingCall struct {
	ch        chan callResult
	createdAt time.Time
}

// Waiter is the caller-side handle for one registered correlation id.
// Exactly one result is delivered on it, by whichever of resolve or expire
// wins.
type Waiter struct {
	id string
	ch <-chan callResult
}

// ID returns the correlation id this waiter is bound to.
func (w *Waiter) ID() string { return w.id }

// Registry matches asynchronous replies to the call that issued them. The
// id -> pendingCall map is the only structure mutated by concurrent callers;
// each entry is removed by exactly one of Resolve, Expire, or Discard, so a
// late or duplicate completion is a logged no-op.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*pendingCall

	log    *slog.Logger
	maxAge time.Duration
	now    func() time.Time
}

// NewRegistry builds an empty registry. maxAge <= 0 falls back to the
// default janitor horizon.
func NewRegistry(log *slog.Logger, maxAge time.Duration) *Registry {
	if maxAge <= 0 {
		maxAge = defaultMaxPendingAge
	}
	return &Registry{
		pending: make(map[string]*pendingCall),
		log:     log,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Register creates a PendingCall for id and returns the handle to wait on.
// A duplicate id is a programming error, never expected in correct
// operation, so it is reported rather than papered over.
func (r *Registry) Register(id string) (*Waiter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pending[id]; exists {
		return nil, fmt.Errorf("%w: %s", sentinel.ErrDuplicateCorrelation, id)
	}
	p := &pendingCall{
		ch:        make(chan callResult, 1),
		createdAt: r.now(),
	}
	r.pending[id] = p
	return &Waiter{id: id, ch: p.ch}, nil
}

// Resolve completes the matching call with the reply payload. Resolving an
// unknown or already-completed id is discarded so a duplicate or late reply
// can never corrupt another call's result.
func (r *Registry) Resolve(id string, payload json.RawMessage) {
	p, ok := r.take(id)
	if !ok {
		r.log.Debug("discarding reply for unknown or completed call",
			slog.String("correlation_id", id))
		return
	}
	p.ch <- callResult{payload: payload}
}

// Expire completes the matching call with a timeout error. Safe to race
// against a late Resolve: exactly one wins, the other is a no-op.
func (r *Registry) Expire(id string) {
	p, ok := r.take(id)
	if !ok {
		return
	}
	p.ch <- callResult{err: sentinel.ErrTimeout}
}

// Discard removes a registration without completing it. Used when the send
// itself failed and nobody will ever wait on the id.
func (r *Registry) Discard(id string) {
	r.take(id)
}

func (r *Registry) take(id string) (*pendingCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	return p, ok
}

// Len reports the number of in-flight registrations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Sweep expires every registration older than the janitor horizon and
// reports how many it removed. Callers normally let RunJanitor drive this.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.maxAge)

	r.mu.Lock()
	var stale []string
	for id, p := range r.pending {
		if p.createdAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		r.log.Warn("expiring abandoned pending call", slog.String("correlation_id", id))
		r.Expire(id)
	}
	return len(stale)
}
