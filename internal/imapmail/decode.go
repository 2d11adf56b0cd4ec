package imapmail

import (
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// DecodeHeader decodes RFC 2047 encoded-word header values, including
// multi-part headers mixing encodings. Unknown charsets fall back to a
// best-effort single-byte decode; a header that cannot be decoded at all
// is returned as-is rather than dropped.
func DecodeHeader(value string) string {
	if value == "" {
		return ""
	}
	dec := mime.WordDecoder{CharsetReader: charsetReader}
	decoded, err := dec.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "utf-8", "us-ascii", "ascii":
		return input, nil
	}
	if enc, err := htmlindex.Get(charset); err == nil {
		return enc.NewDecoder().Reader(input), nil
	}
	// Unknown charset: decode as windows-1252, which covers the common
	// mislabeled latin mail in practice.
	return charmap.Windows1252.NewDecoder().Reader(input), nil
}

// bodyCharsets is the ordered fallback chain for undeclared body bytes.
var bodyCharsets = []*charmap.Charmap{charmap.Windows1252, charmap.ISO8859_1}

// DecodeBody decodes raw body bytes: valid UTF-8 passes through, then the
// fixed charset chain is tried in order, and as a last resort the bytes
// are decoded as latin-1 (which is total) so something readable survives.
func DecodeBody(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	if utf8.Valid(raw) {
		return string(raw)
	}

	for _, cm := range bodyCharsets {
		if decoded, err := cm.NewDecoder().Bytes(raw); err == nil && utf8.Valid(decoded) {
			return string(decoded)
		}
	}

	// latin-1 maps every byte to a rune, so this cannot fail.
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}
