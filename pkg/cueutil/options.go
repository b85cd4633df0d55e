// SPDX-License-Identifier: MPL-2.0

package cueutil

// DefaultMaxFileSize caps documents at 5 MiB; manifests and .nmf files are
// a few kilobytes in practice.
const DefaultMaxFileSize int64 = 5 << 20

type (
	// Option adjusts a single ParseAndDecode call.
	Option func(*parseOptions)

	parseOptions struct {
		filename    string
		maxFileSize int64
		concrete    bool
		jsonOnly    bool
	}
)

// WithFilename names the document in error positions.
func WithFilename(name string) Option {
	return func(o *parseOptions) { o.filename = name }
}

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(size int64) Option {
	return func(o *parseOptions) { o.maxFileSize = size }
}

// WithConcrete(false) accepts documents that leave optional fields open.
func WithConcrete(concrete bool) Option {
	return func(o *parseOptions) { o.concrete = concrete }
}

// WithJSON restricts input to strict JSON. CUE syntax and expressions in
// the document are rejected instead of evaluated.
func WithJSON() Option {
	return func(o *parseOptions) { o.jsonOnly = true }
}

func buildOptions(opts []Option) parseOptions {
	o := parseOptions{filename: "<input>", maxFileSize: DefaultMaxFileSize, concrete: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.filename == "" {
		o.filename = "<input>"
	}
	return o
}
