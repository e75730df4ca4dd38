package presence

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the handle for one punched-in work session. The closureSent
// guard lives here, not in package state, so a fresh punch-in resets it by
// constructing a new session.
type Session struct {
	ID        string
	StartedAt time.Time

	mu          sync.Mutex
	closureSent bool
}

func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
}

// markClosureSent flips the guard and reports whether this caller won. Only
// the winner may emit; lifecycle events routinely fire in sequence (hide
// then unload) and must collapse to one attempt.
func (s *Session) markClosureSent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closureSent {
		return false
	}
	s.closureSent = true
	return true
}

// Emitter delivers closure signals over a priority-ordered transport chain,
// writing a pending closure to the ledger when every transport fails.
type Emitter struct {
	mu      sync.Mutex
	session *Session
	chain   []Transport
	ledger  *Ledger
	source  string
}

// NewEmitter builds an emitter over the given transports, tried in order.
func NewEmitter(session *Session, ledger *Ledger, transports ...Transport) *Emitter {
	return &Emitter{
		session: session,
		chain:   transports,
		ledger:  ledger,
		source:  "client",
	}
}

// BeginSession swaps in the handle for a fresh punch-in, resetting the
// closure guard.
func (e *Emitter) BeginSession(s *Session) {
	e.mu.Lock()
	e.session = s
	e.mu.Unlock()
}

func (e *Emitter) currentSession() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// SignalClosure makes one best-effort attempt to tell the server the session
// ended. Repeated calls for the same session are no-ops. Transport failure
// is absorbed into the ledger rather than surfaced; only a ledger write
// failure is returned.
func (e *Emitter) SignalClosure(ctx context.Context, trigger string) error {
	session := e.currentSession()
	if session == nil {
		return nil
	}
	if !session.markClosureSent() {
		return nil
	}

	sig := Signal{
		Trigger:   trigger,
		Source:    e.source,
		Timestamp: time.Now(),
	}

	if e.deliver(ctx, sig) {
		return nil
	}

	log.Printf("presence: all transports failed for trigger %q, storing pending closure", trigger)
	return e.ledger.Store(PendingClosure{
		Timestamp: sig.Timestamp,
		Trigger:   trigger,
		Synced:    false,
	})
}

func (e *Emitter) deliver(ctx context.Context, sig Signal) bool {
	for _, t := range e.chain {
		if err := t.Deliver(ctx, sig); err != nil {
			log.Printf("presence: %s transport failed: %v", t.Name(), err)
			continue
		}
		return true
	}
	return false
}

// ErrSyncFailed means a stored pending closure could not be replayed; the
// ledger is left intact for the next opportunity.
var ErrSyncFailed = errors.New("presence: pending closure replay failed")

// SyncPending replays any stored pending closure with trigger "reconcile",
// preserving the original trigger and timestamp for the audit trail. Safe
// to run zero, one or many times: the server treats duplicate closes as
// noops, and the ledger is only cleared on acknowledgment.
func (e *Emitter) SyncPending(ctx context.Context) (bool, error) {
	pc, err := e.ledger.Load()
	if err != nil {
		return false, err
	}
	if pc == nil {
		return false, nil
	}

	sig := Signal{
		Trigger:         TriggerReconcile,
		Source:          e.source,
		Timestamp:       pc.Timestamp,
		OriginalTrigger: pc.Trigger,
	}

	if !e.deliver(ctx, sig) {
		return false, ErrSyncFailed
	}
	if err := e.ledger.Clear(); err != nil {
		return false, err
	}
	return true, nil
}

// RetryPending periodically re-attempts SyncPending until the context is
// cancelled or the ledger is empty.
func (e *Emitter) RetryPending(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			synced, err := e.SyncPending(ctx)
			if err != nil {
				log.Printf("presence: pending closure retry: %v", err)
				continue
			}
			if synced {
				return
			}
			pc, err := e.ledger.Load()
			if err != nil {
				// A transient read failure is not an empty ledger;
				// keep retrying.
				log.Printf("presence: ledger read failed: %v", err)
				continue
			}
			if pc == nil {
				return
			}
		}
	}
}
