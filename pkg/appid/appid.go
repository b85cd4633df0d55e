// SPDX-License-Identifier: MPL-2.0

// Package appid resolves the canonical identifier of an app.
//
// An identifier either comes verbatim from an explicit override or is derived
// from the public key embedded in the manifest. Derivation follows the scheme
// Chrome uses for extension ids: SHA-256 over the DER-encoded key, first 16
// bytes, each hex nibble mapped onto the letters a-p. Identifiers are also the
// on-disk lookup keys for installed packages, so the derivation must never
// change.
package appid

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/crxhost/crxhost/pkg/manifest"
)

// Length is the number of characters in a derived identifier.
const Length = 32

var (
	// ErrMissingKey is the sentinel error wrapped by MissingKeyError.
	ErrMissingKey = errors.New("no identity source available")
	// ErrInvalidKey is the sentinel error wrapped by InvalidKeyError.
	ErrInvalidKey = errors.New("invalid manifest key")
	// ErrInvalidID is the sentinel error wrapped by InvalidIDError.
	ErrInvalidID = errors.New("invalid app id")
)

type (
	// ID is an app identifier. It scopes the resource protocol namespace
	// and keys the installed package store.
	ID string

	// MissingKeyError is returned when no explicit id was given and the
	// manifest carries no key to derive one from.
	MissingKeyError struct {
		// Manifest names the manifest that lacked a key, if there was one.
		Manifest string
	}

	// InvalidKeyError is returned when the manifest key is not base64.
	InvalidKeyError struct {
		Err error
	}

	// InvalidIDError is returned by ID.IsValid for ids not in derived form.
	InvalidIDError struct {
		Value ID
	}
)

// Error implements the error interface.
func (e *MissingKeyError) Error() string {
	if e.Manifest == "" {
		return "no app id given and no manifest to derive one from"
	}
	return fmt.Sprintf("no app id given and manifest %q has no key", e.Manifest)
}

// Unwrap returns ErrMissingKey so callers can use errors.Is for programmatic detection.
func (e *MissingKeyError) Unwrap() error { return ErrMissingKey }

// Error implements the error interface.
func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid manifest key: %v", e.Err)
}

// Unwrap exposes both ErrInvalidKey and the decoding failure.
func (e *InvalidKeyError) Unwrap() []error { return []error{ErrInvalidKey, e.Err} }

// Error implements the error interface.
func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid app id %q (must be %d characters in a-p)", e.Value, Length)
}

// Unwrap returns ErrInvalidID so callers can use errors.Is for programmatic detection.
func (e *InvalidIDError) Unwrap() error { return ErrInvalidID }

// String returns the identifier.
func (id ID) String() string { return string(id) }

// IsValid reports whether id has the derived form (32 letters a-p).
// Explicit overrides are not required to pass this check.
func (id ID) IsValid() (bool, []error) {
	if len(id) != Length {
		return false, []error{&InvalidIDError{Value: id}}
	}
	for i := range len(id) {
		if id[i] < 'a' || id[i] > 'p' {
			return false, []error{&InvalidIDError{Value: id}}
		}
	}
	return true, nil
}

// Resolve returns explicitID when it is non-empty, otherwise the id derived
// from m's key.
func Resolve(explicitID string, m *manifest.Manifest) (ID, error) {
	if explicitID != "" {
		return ID(explicitID), nil
	}
	if m == nil {
		return "", &MissingKeyError{}
	}
	if !m.HasKey() {
		return "", &MissingKeyError{Manifest: m.Name}
	}
	return FromKey(m.Key)
}

// FromKey derives an id from base64 public-key material as found in the
// manifest "key" field. Whitespace (including PEM-style line breaks) is
// ignored and both padded and unpadded encodings are accepted.
func FromKey(key string) (ID, error) {
	der, err := decodeKey(key)
	if err != nil {
		return "", &InvalidKeyError{Err: err}
	}
	return FromPublicKey(der), nil
}

// FromPublicKey derives an id from DER-encoded public key bytes.
func FromPublicKey(der []byte) ID {
	sum := sha256.Sum256(der)
	return FromCRXID(sum[:16])
}

// FromCRXID maps raw id bytes (the crx_id of a CRX3 header, or the first
// half of a key hash) onto the a-p alphabet.
func FromCRXID(raw []byte) ID {
	hexed := hex.EncodeToString(raw)
	out := make([]byte, len(hexed))
	for i := range len(hexed) {
		c := hexed[i]
		if c >= 'a' {
			out[i] = 'a' + (c - 'a' + 10)
		} else {
			out[i] = 'a' + (c - '0')
		}
	}
	return ID(out)
}

func decodeKey(key string) ([]byte, error) {
	canonical := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, key)
	if canonical == "" {
		return nil, errors.New("key is empty")
	}

	if der, err := base64.StdEncoding.DecodeString(canonical); err == nil {
		return der, nil
	}
	der, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(canonical, "="))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return der, nil
}
