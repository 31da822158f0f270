package checkout

import (
	"context"
	"fmt"
	"sync"
)

// completionFunc runs the one-time completion for a QR transaction.
type completionFunc func(ctx context.Context) error

// listenerRegistry holds exactly one completion listener per TransactionUUID.
// Consume removes the listener before it runs, so duplicate deliveries and
// the manual-complete race collapse to a single effect.
type listenerRegistry struct {
	mu     sync.Mutex
	byUUID map[string]completionFunc
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{byUUID: map[string]completionFunc{}}
}

// Register installs the listener. A second registration for the same UUID is
// a programming error, not a silent replace.
func (r *listenerRegistry) Register(transactionUUID string, fn completionFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byUUID[transactionUUID]; exists {
		return fmt.Errorf("listener already registered for transaction %s", transactionUUID)
	}
	r.byUUID[transactionUUID] = fn
	return nil
}

// Deregister drops the listener. Safe to call for unknown UUIDs.
func (r *listenerRegistry) Deregister(transactionUUID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byUUID, transactionUUID)
}

// Consume removes and returns the listener, or nil when none is registered.
// The caller invokes the returned func outside the registry lock.
func (r *listenerRegistry) Consume(transactionUUID string) completionFunc {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn := r.byUUID[transactionUUID]
	delete(r.byUUID, transactionUUID)
	return fn
}

// Active reports whether a listener is currently registered.
func (r *listenerRegistry) Active(transactionUUID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byUUID[transactionUUID]
	return ok
}
