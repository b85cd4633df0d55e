// SPDX-License-Identifier: MPL-2.0

package crxstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/crxhost/crxhost/pkg/appid"
)

const (
	crxMagic = "Cr24"

	// CrxFileHeader field numbers.
	fieldSHA256WithRSA   protowire.Number = 2
	fieldSHA256WithECDSA protowire.Number = 3
	fieldSignedHeader    protowire.Number = 10000

	// AsymmetricKeyProof / SignedData field numbers.
	fieldPublicKey protowire.Number = 1
	fieldCRXID     protowire.Number = 1

	crxIDLength = 16
)

var (
	// ErrInvalidCRX is the sentinel error wrapped by InvalidCRXError.
	ErrInvalidCRX = errors.New("invalid crx archive")

	zipMagic = []byte("PK\x03\x04")
)

type (
	// InvalidCRXError is returned for archives that are neither a readable
	// CRX2/CRX3 file nor a zip.
	InvalidCRXError struct {
		Path   string
		Reason string
	}

	// header is what the store needs from a CRX header.
	header struct {
		// Format is 2 or 3 for CRX files, 0 for a bare zip.
		Format int
		// ID is derived from the header (crx_id or the first public key).
		// Empty for bare zips.
		ID appid.ID
		// PayloadOffset is where the zip archive starts.
		PayloadOffset int64
	}
)

// Error implements the error interface.
func (e *InvalidCRXError) Error() string {
	return fmt.Sprintf("invalid crx archive %s: %s", e.Path, e.Reason)
}

// Unwrap returns ErrInvalidCRX so callers can use errors.Is for programmatic detection.
func (e *InvalidCRXError) Unwrap() error { return ErrInvalidCRX }

// parseHeader inspects the start of an archive.
func parseHeader(data []byte) (header, error) {
	if bytes.HasPrefix(data, zipMagic) {
		return header{}, nil
	}
	if len(data) < 12 || string(data[:4]) != crxMagic {
		return header{}, errors.New("missing Cr24 magic")
	}

	format := binary.LittleEndian.Uint32(data[4:8])
	switch format {
	case 2:
		return parseCRX2(data)
	case 3:
		return parseCRX3(data)
	default:
		return header{}, fmt.Errorf("unsupported crx version %d", format)
	}
}

// CRX2: magic, version, key length, signature length, key, signature, zip.
func parseCRX2(data []byte) (header, error) {
	if len(data) < 16 {
		return header{}, errors.New("truncated crx2 header")
	}
	keyLen := int64(binary.LittleEndian.Uint32(data[8:12]))
	sigLen := int64(binary.LittleEndian.Uint32(data[12:16]))
	offset := 16 + keyLen + sigLen
	if offset > int64(len(data)) {
		return header{}, errors.New("truncated crx2 header")
	}
	key := data[16 : 16+keyLen]
	h := header{Format: 2, PayloadOffset: offset}
	if len(key) > 0 {
		h.ID = appid.FromPublicKey(key)
	}
	return h, nil
}

// CRX3: magic, version, header length, CrxFileHeader protobuf, zip.
func parseCRX3(data []byte) (header, error) {
	size := int64(binary.LittleEndian.Uint32(data[8:12]))
	offset := 12 + size
	if offset > int64(len(data)) {
		return header{}, errors.New("truncated crx3 header")
	}

	crxID, firstKey, err := parseFileHeader(data[12:offset])
	if err != nil {
		return header{}, fmt.Errorf("crx3 header: %w", err)
	}

	h := header{Format: 3, PayloadOffset: offset}
	switch {
	case len(crxID) == crxIDLength:
		h.ID = appid.FromCRXID(crxID)
	case len(firstKey) > 0:
		h.ID = appid.FromPublicKey(firstKey)
	}
	return h, nil
}

// parseFileHeader returns the crx_id from signed_header_data and the first
// public key of any proof.
func parseFileHeader(b []byte) (crxID, firstKey []byte, err error) {
	err = eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case fieldSignedHeader:
			return eachField(v, func(n protowire.Number, t protowire.Type, v []byte) error {
				if n == fieldCRXID && t == protowire.BytesType {
					crxID = v
				}
				return nil
			})
		case fieldSHA256WithRSA, fieldSHA256WithECDSA:
			if firstKey != nil {
				return nil
			}
			return eachField(v, func(n protowire.Number, t protowire.Type, v []byte) error {
				if n == fieldPublicKey && t == protowire.BytesType && firstKey == nil {
					firstKey = v
				}
				return nil
			})
		}
		return nil
	})
	return crxID, firstKey, err
}

// eachField walks a protobuf message, passing the payload of length-delimited
// fields and nil for other wire types.
func eachField(b []byte, fn func(protowire.Number, protowire.Type, []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		var payload []byte
		if typ == protowire.BytesType {
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			payload, n = v, m
		} else {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
		}
		b = b[n:]

		if err := fn(num, typ, payload); err != nil {
			return err
		}
	}
	return nil
}
