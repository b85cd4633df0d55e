// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"context"
	"sync"
)

type (
	// Handler serves resource requests for one scheme.
	Handler interface {
		Handle(ctx context.Context, address string) (*Response, error)
	}

	// Registry is the process-wide scheme -> handler table. The zero value
	// is ready to use.
	Registry struct {
		mu       sync.RWMutex
		handlers map[string]Handler
	}
)

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register installs h for scheme. It fails with AlreadyActiveError when the
// scheme is taken.
func (r *Registry) Register(scheme string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.handlers[scheme]; taken {
		return &AlreadyActiveError{Scheme: scheme}
	}
	if r.handlers == nil {
		r.handlers = make(map[string]Handler)
	}
	r.handlers[scheme] = h
	return nil
}

// Unregister removes the handler for scheme, if any.
func (r *Registry) Unregister(scheme string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, scheme)
}

// Registered reports whether scheme has a handler.
func (r *Registry) Registered(scheme string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[scheme]
	return ok
}

// Dispatch routes address to the handler for its scheme.
func (r *Registry) Dispatch(ctx context.Context, address string) (*Response, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, &NamespaceMismatchError{Address: address}
	}

	r.mu.RLock()
	h, ok := r.handlers[addr.Scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, &InactiveError{Scheme: addr.Scheme}
	}
	return h.Handle(ctx, address)
}
