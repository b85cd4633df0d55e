// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"mime"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// detectMIMEType prefers the registered type for the file extension and
// falls back to sniffing the content.
func detectMIMEType(name string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return mimetype.Detect(data).String()
}
