package packet

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/traditionalchinese"
)

// Charset is the string encoding used on the wire.
type Charset int

const (
	CharsetUTF8 Charset = iota
	CharsetMS950
)

// wireCharset is set once at startup, before any session exists.
var wireCharset = CharsetUTF8

// SetCharset selects the wire encoding by name ("utf-8" or "ms950").
func SetCharset(name string) error {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		wireCharset = CharsetUTF8
	case "ms950", "big5":
		wireCharset = CharsetMS950
	default:
		return fmt.Errorf("unknown charset %q", name)
	}
	return nil
}

// CurrentCharset returns the active wire encoding.
func CurrentCharset() Charset {
	return wireCharset
}

func isASCII(raw []byte) bool {
	for _, b := range raw {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// decodeString converts wire bytes to a UTF-8 string.
// Pure ASCII passes through unchanged.
func decodeString(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	if wireCharset == CharsetUTF8 || isASCII(raw) {
		return string(raw)
	}
	decoded, err := traditionalchinese.Big5.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw) // fallback to raw bytes
	}
	return string(decoded)
}

// encodeString converts a UTF-8 string to wire bytes.
func encodeString(s string) []byte {
	if wireCharset == CharsetUTF8 || isASCII([]byte(s)) {
		return []byte(s)
	}
	encoded, err := traditionalchinese.Big5.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return encoded
}
