// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"bytes"
	"encoding/binary"
	"maps"
	"slices"

	"github.com/klauspost/compress/zip"
	"google.golang.org/protobuf/encoding/protowire"
)

// BuildZip returns a zip archive holding files (slash-separated name -> content),
// written in name order.
func BuildZip(files map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range slices.Sorted(maps.Keys(files)) {
		w, err := zw.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildCRX2 wraps a zip of files in a CRX2 header carrying publicKey and a
// dummy signature.
func BuildCRX2(files map[string]string, publicKey []byte) ([]byte, error) {
	payload, err := BuildZip(files)
	if err != nil {
		return nil, err
	}
	sig := []byte("signature")

	var buf bytes.Buffer
	buf.WriteString("Cr24")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(publicKey)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(sig)))
	buf.Write(publicKey)
	buf.Write(sig)
	buf.Write(payload)
	return buf.Bytes(), nil
}

// BuildCRX3 wraps a zip of files in a CRX3 header. crxID, when non-nil, is
// stored as signed_header_data.crx_id; publicKey, when non-nil, as an
// RSA key proof.
func BuildCRX3(files map[string]string, crxID, publicKey []byte) ([]byte, error) {
	payload, err := BuildZip(files)
	if err != nil {
		return nil, err
	}

	var hdr []byte
	if publicKey != nil {
		var proof []byte
		proof = protowire.AppendTag(proof, 1, protowire.BytesType)
		proof = protowire.AppendBytes(proof, publicKey)
		proof = protowire.AppendTag(proof, 2, protowire.BytesType)
		proof = protowire.AppendBytes(proof, []byte("signature"))
		hdr = protowire.AppendTag(hdr, 2, protowire.BytesType)
		hdr = protowire.AppendBytes(hdr, proof)
	}
	if crxID != nil {
		var signed []byte
		signed = protowire.AppendTag(signed, 1, protowire.BytesType)
		signed = protowire.AppendBytes(signed, crxID)
		hdr = protowire.AppendTag(hdr, 10000, protowire.BytesType)
		hdr = protowire.AppendBytes(hdr, signed)
	}

	var buf bytes.Buffer
	buf.WriteString("Cr24")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(3))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(hdr)))
	buf.Write(hdr)
	buf.Write(payload)
	return buf.Bytes(), nil
}
