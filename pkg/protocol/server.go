// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/crxhost/crxhost/internal/core/serverbase"
	"github.com/crxhost/crxhost/pkg/locator"
)

// DefaultScheme is the scheme app resources are served under.
const DefaultScheme = "chrome-extension"

type (
	// Response is a served resource. Responses are shared between callers
	// and with the cache; Data must not be modified.
	Response struct {
		Address  string
		Data     []byte
		MIMEType string
		// Generated is true for synthesized documents.
		Generated bool
	}

	// ReadFileFunc reads a resolved file path.
	ReadFileFunc func(path string) ([]byte, error)

	// Server serves one resolved app at a time.
	Server struct {
		base     *serverbase.Base
		registry *Registry
		scheme   string
		logger   *log.Logger
		readFile ReadFileFunc

		mu      sync.RWMutex
		session *session
	}

	// session is the per-activation state. It is replaced, never mutated,
	// so requests in flight during Deactivate finish against the old one.
	session struct {
		app   *locator.ResolvedApp
		root  string
		cache *cache
	}

	// ServerOption configures a Server.
	ServerOption func(*Server)
)

// WithScheme overrides DefaultScheme.
func WithScheme(scheme string) ServerOption {
	return func(s *Server) {
		s.scheme = scheme
	}
}

// WithLogger sets the logger for lifecycle and request failures.
func WithLogger(l *log.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithReadFile replaces os.ReadFile.
func WithReadFile(fn ReadFileFunc) ServerOption {
	return func(s *Server) {
		s.readFile = fn
	}
}

// NewServer creates an inactive Server that registers into registry.
func NewServer(registry *Registry, opts ...ServerOption) *Server {
	s := &Server{
		registry: registry,
		scheme:   DefaultScheme,
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	s.base = serverbase.NewBase(serverbase.WithTransitionHook(func(from, to serverbase.State) {
		s.logger.Debug("protocol state", "scheme", s.scheme, "from", from, "to", to)
	}))
	return s
}

// Scheme returns the scheme this server registers under.
func (s *Server) Scheme() string { return s.scheme }

// State returns the lifecycle state.
func (s *Server) State() serverbase.State { return s.base.State() }

// App returns the active app, or nil when inactive.
func (s *Server) App() *locator.ResolvedApp {
	if sess := s.current(); sess != nil {
		return sess.app
	}
	return nil
}

// Activate starts serving app and registers the server's scheme.
func (s *Server) Activate(ctx context.Context, app *locator.ResolvedApp) error {
	if app == nil {
		return errors.New("activate protocol: no app")
	}

	if err := s.base.TransitionToActivating(ctx); err != nil {
		var te *serverbase.TransitionError
		if errors.As(err, &te) {
			return &AlreadyActiveError{Scheme: s.scheme}
		}
		return err
	}

	root, err := realDir(app.Dir)
	if err != nil {
		err = fmt.Errorf("activate protocol for %s: %w", app.Dir, err)
		s.base.AbortActivation(err)
		return err
	}

	if err := s.registry.Register(s.scheme, s); err != nil {
		s.base.AbortActivation(err)
		return err
	}

	s.mu.Lock()
	s.session = &session{app: app, root: root, cache: newCache()}
	s.mu.Unlock()

	s.base.TransitionToActive()
	s.logger.Info("protocol active", "scheme", s.scheme, "namespace", app.ID, "root", root)
	return nil
}

// Deactivate unregisters the scheme and drops the cache. It is a no-op
// when the server is not active.
func (s *Server) Deactivate() {
	if !s.base.BeginDeactivate() {
		return
	}

	s.registry.Unregister(s.scheme)

	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()

	s.base.TransitionToInactive()
	s.logger.Info("protocol inactive", "scheme", s.scheme)
}

// Stats returns cache counters for the current activation. It returns the
// zero value when inactive.
func (s *Server) Stats() Stats {
	if sess := s.current(); sess != nil {
		return sess.cache.stats()
	}
	return Stats{}
}

// Handle serves one resource address.
//
// Errors:
//   - *InactiveError when the server is not active
//   - *NamespaceMismatchError when address is outside the app's namespace
//   - *ResourceUnavailableError for any read failure (cached)
func (s *Server) Handle(_ context.Context, address string) (*Response, error) {
	sess := s.current()
	if sess == nil || !s.base.IsActive() {
		return nil, &InactiveError{Scheme: s.scheme}
	}

	want := string(sess.app.ID)
	addr, err := ParseAddress(address)
	if err != nil || addr.Scheme != s.scheme || addr.Namespace != want {
		s.logger.Warn("rejected foreign address", "address", address, "namespace", want)
		return nil, &NamespaceMismatchError{Address: address, Want: want}
	}

	if addr.Path == BackgroundPagePath {
		return &Response{
			Address:   address,
			Data:      renderBackgroundPage(sess.app.Manifest.BackgroundScripts()),
			MIMEType:  htmlMIMEType,
			Generated: true,
		}, nil
	}

	return sess.cache.get(address, func() (*Response, error) {
		return s.read(sess, addr)
	})
}

func (s *Server) read(sess *session, addr Address) (*Response, error) {
	path, err := resolvePath(sess.root, addr.Path)
	if err != nil {
		s.logger.Debug("resource unavailable", "address", addr.Raw, "err", err)
		return nil, &ResourceUnavailableError{Address: addr.Raw, Err: err}
	}

	sess.cache.reads.Add(1)
	data, err := s.readFile(path)
	if err != nil {
		s.logger.Debug("resource unavailable", "address", addr.Raw, "path", path, "err", err)
		return nil, &ResourceUnavailableError{Address: addr.Raw, Err: err}
	}

	return &Response{
		Address:  addr.Raw,
		Data:     data,
		MIMEType: detectMIMEType(path, data),
	}, nil
}

func (s *Server) current() *session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}
