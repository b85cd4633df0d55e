// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"html"
	"strings"
)

// BackgroundPagePath is the virtual page that loads the manifest's
// background scripts. It never exists on disk.
const BackgroundPagePath = "_generated_background_page.html"

const htmlMIMEType = "text/html; charset=utf-8"

// Scripts go in the body so they can touch document.body while loading.
func renderBackgroundPage(scripts []string) []byte {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n</head>\n<body>\n")
	for _, src := range scripts {
		sb.WriteString(`<script src="`)
		sb.WriteString(html.EscapeString(src))
		sb.WriteString("\" type=\"text/javascript\"></script>\n")
	}
	sb.WriteString("</body>\n</html>\n")
	return []byte(sb.String())
}
