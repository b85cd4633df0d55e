// SPDX-License-Identifier: MPL-2.0

// Package issue holds crxhost's user-facing errors: ActionableError, which
// pairs a failure with suggestions, and a catalog of markdown explanations
// shown by --verbose.
package issue
