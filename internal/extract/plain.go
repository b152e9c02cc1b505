package extract

import (
	"bytes"
	"errors"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extractPlain decodes a text file. A leading byte order mark is dropped, CRLF line
// endings become LF and invalid UTF-8 is replaced with U+FFFD.
// Content holding NUL bytes is binary and fails.
func extractPlain(content []byte) (string, error) {
	if bytes.IndexByte(content, 0) >= 0 {
		return "", errors.New("binary content in text file")
	}
	text := strings.ToValidUTF8(string(bytes.TrimPrefix(content, utf8BOM)), "�")
	return strings.ReplaceAll(text, "\r\n", "\n"), nil
}
