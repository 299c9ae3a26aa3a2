package interactive

import (
	"bytes"
	"strings"
)

// Formats a capture can sniff as.
const (
	FormatPDF    = "pdf"
	FormatHTML   = "html"
	FormatBinary = "binary"
)

var htmlPrefixes = []string{"<!doctype html", "<html", "<head", "<body"}

// SniffFormat classifies captured bytes by leading magic: %PDF wins, then a
// whitespace/control-trimmed lowercase HTML prefix, else binary.
func SniffFormat(buf []byte) (format, contentType string) {
	if bytes.HasPrefix(buf, []byte("%PDF")) {
		return FormatPDF, "application/pdf"
	}
	head := buf
	if len(head) > 32 {
		head = head[:32]
	}
	trimmed := strings.ToLower(strings.TrimLeftFunc(string(head), func(r rune) bool {
		return r <= 0x20 || r == 0xfeff
	}))
	for _, prefix := range htmlPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return FormatHTML, "text/html"
		}
	}
	return FormatBinary, "application/octet-stream"
}

// extensionFor maps a sniffed format to the persisted file's extension.
func extensionFor(format string) string {
	switch format {
	case FormatPDF:
		return ".pdf"
	case FormatHTML:
		return ".html"
	default:
		return ".bin"
	}
}
