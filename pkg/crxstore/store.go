// SPDX-License-Identifier: MPL-2.0

package crxstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

const (
	// StorePathEnv overrides the default store root.
	StorePathEnv = "CRXHOST_STORE_PATH"

	// DefaultMaxUnpackedSize bounds the total uncompressed size of one archive.
	DefaultMaxUnpackedSize int64 = 1 << 30

	stateDirName = ".crxhost"
	storeDirName = "store"
)

type (
	// Store is an on-disk package store rooted at a directory.
	Store struct {
		root          string
		logger        *log.Logger
		maxUnpackSize int64
	}

	// Option configures a Store.
	Option func(*Store)
)

// WithLogger sets the store logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithMaxUnpackedSize overrides DefaultMaxUnpackedSize.
func WithMaxUnpackedSize(n int64) Option {
	return func(s *Store) {
		s.maxUnpackSize = n
	}
}

// New creates a store rooted at root. The directory is created lazily by
// Install; Lookup on a missing root finds nothing.
func New(root string, opts ...Option) *Store {
	s := &Store{
		root:          filepath.Clean(root),
		maxUnpackSize: DefaultMaxUnpackedSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	return s
}

// Root returns the store root directory.
func (s *Store) Root() string { return s.root }

// DefaultRootWith returns the default store root using the provided getenv
// function. This enables testing without mutating process-global environment state.
func DefaultRootWith(getenv func(string) string) (string, error) {
	if envPath := getenv(StorePathEnv); envPath != "" {
		return envPath, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, stateDirName, storeDirName), nil
}
