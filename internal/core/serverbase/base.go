// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Base provides lifecycle infrastructure for components with an explicit
// activate/deactivate cycle. Concrete implementations embed or hold it.
type Base struct {
	// State management (atomic for lock-free reads)
	state atomic.Int32

	// Number of completed activations.
	activations atomic.Uint64

	// Protects ctx, cancel and lastErr across transitions.
	stateMu sync.Mutex

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error

	hook func(from, to State)
}

// NewBase creates a new inactive Base with the given options.
func NewBase(opts ...Option) *Base {
	b := &Base{}
	b.state.Store(int32(StateInactive))

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// State returns the current state (atomic, lock-free read).
func (b *Base) State() State {
	return State(b.state.Load())
}

// IsActive returns true if the component is in the Active state.
func (b *Base) IsActive() bool {
	return b.State() == StateActive
}

// Activations returns how many times the component reached Active.
func (b *Base) Activations() uint64 {
	return b.activations.Load()
}

// LastError returns the error that aborted the most recent activation, or nil.
func (b *Base) LastError() error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.lastErr
}

// --- Lifecycle helpers for concrete implementations ---

// TransitionToActivating attempts to transition from Inactive to Activating.
// Returns a *TransitionError if the current state is not Inactive, or the
// wrapped context error if ctx is already cancelled.
// Must be called at the beginning of Activate().
func (b *Base) TransitionToActivating(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled before activate: %w", ctx.Err())
	default:
	}

	if !b.state.CompareAndSwap(int32(StateInactive), int32(StateActivating)) {
		return &TransitionError{Op: "activate", State: b.State()}
	}

	b.stateMu.Lock()
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.lastErr = nil
	b.stateMu.Unlock()

	b.notify(StateInactive, StateActivating)
	return nil
}

// TransitionToActive marks the component as serving.
// Returns false if the state was not Activating.
func (b *Base) TransitionToActive() bool {
	if !b.state.CompareAndSwap(int32(StateActivating), int32(StateActive)) {
		return false
	}
	b.activations.Add(1)
	b.notify(StateActivating, StateActive)
	return true
}

// AbortActivation returns an Activating component to Inactive, recording err.
func (b *Base) AbortActivation(err error) {
	b.stateMu.Lock()
	b.lastErr = err
	if b.cancel != nil {
		b.cancel()
	}
	b.stateMu.Unlock()

	if b.state.CompareAndSwap(int32(StateActivating), int32(StateInactive)) {
		b.notify(StateActivating, StateInactive)
	}
}

// BeginDeactivate attempts to transition from Active to Deactivating and
// cancels the activation context. Returns false when there is nothing to
// tear down (already Inactive, or another caller is deactivating).
func (b *Base) BeginDeactivate() bool {
	for {
		current := b.State()
		switch current {
		case StateInactive, StateDeactivating:
			return false
		case StateActivating, StateActive:
			if !b.state.CompareAndSwap(int32(current), int32(StateDeactivating)) {
				continue // State changed, retry
			}
			b.stateMu.Lock()
			if b.cancel != nil {
				b.cancel()
			}
			b.stateMu.Unlock()
			b.notify(current, StateDeactivating)
			return true
		default:
			return false
		}
	}
}

// TransitionToInactive completes a deactivation.
// Must be called after tracked goroutines have exited.
func (b *Base) TransitionToInactive() {
	if b.state.CompareAndSwap(int32(StateDeactivating), int32(StateInactive)) {
		b.notify(StateDeactivating, StateInactive)
	}
}

// Context returns the context of the current activation. It is cancelled
// when deactivation begins. Returns nil before the first activation.
func (b *Base) Context() context.Context {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.ctx
}

// AddGoroutine increments the WaitGroup counter.
// Must be called before starting a goroutine.
func (b *Base) AddGoroutine() {
	b.wg.Add(1)
}

// DoneGoroutine decrements the WaitGroup counter.
// Must be deferred at the start of each goroutine.
func (b *Base) DoneGoroutine() {
	b.wg.Done()
}

// WaitForShutdown blocks until all goroutines tracked by WG have completed.
func (b *Base) WaitForShutdown() {
	b.wg.Wait()
}

func (b *Base) notify(from, to State) {
	if b.hook != nil {
		b.hook(from, to)
	}
}
