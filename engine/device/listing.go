package device

import (
	"bytes"
	"strings"
)

// ParseGlassesList splits a native multi-string buffer into identifiers.
// The buffer holds NUL-terminated strings followed by an extra NUL. Parsing stops at the
// first empty string or at the end of the buffer, whichever comes first.
//
// Parameters:
//   - buf: the raw buffer filled by the driver
//
// Returns:
//   - []string: the identifiers in driver order, never nil
func ParseGlassesList(buf []byte) []string {
	ids := make([]string, 0)
	for len(buf) > 0 {
		end := bytes.IndexByte(buf, 0)
		if end < 0 {
			end = len(buf)
		}
		if end == 0 {
			break
		}
		ids = append(ids, string(buf[:end]))
		if end == len(buf) {
			break
		}
		buf = buf[end+1:]
	}
	return ids
}

// FormatGlassesList is the inverse of ParseGlassesList.
//
// Parameters:
//   - ids: the identifiers to encode; none may be empty or contain NUL
//
// Returns:
//   - []byte: the double-NUL terminated buffer
func FormatGlassesList(ids []string) []byte {
	var b bytes.Buffer
	for _, id := range ids {
		b.WriteString(id)
		b.WriteByte(0)
	}
	b.WriteByte(0)
	return b.Bytes()
}

// ValidIdentifier reports whether s can be passed to the driver as a C string: non-empty and free of NUL.
func ValidIdentifier(s string) bool {
	return s != "" && !strings.ContainsRune(s, 0)
}
