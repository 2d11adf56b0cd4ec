package imapmail

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeHeader(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"plain ascii", "Access deactivated", "Access deactivated"},
		{"utf8 q-encoded", "=?UTF-8?Q?Caf=C3=A9_newsletter?=", "Café newsletter"},
		{"utf8 b-encoded", "=?UTF-8?B?0J/RgNC40LLQtdGC?=", "Привет"},
		{"latin1", "=?ISO-8859-1?Q?M=FCnchen?=", "München"},
		{"mixed parts", "=?UTF-8?Q?Hello?= =?UTF-8?Q?_world?=", "Hello world"},
		{"unknown charset falls back", "=?X-UNKNOWN?Q?caf=E9?=", "café"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeHeader(tt.value))
		})
	}
}

func TestDecodeHeaderReturnsRawOnGarbage(t *testing.T) {
	raw := "=?UTF-8?Q?truncated"
	assert.Equal(t, raw, DecodeHeader(raw))
}

func TestDecodeBody(t *testing.T) {
	t.Run("valid utf8 passes through", func(t *testing.T) {
		assert.Equal(t, "Привет, мир", DecodeBody([]byte("Привет, мир")))
	})

	t.Run("windows-1252 bytes", func(t *testing.T) {
		// 0x93/0x94 are curly quotes in windows-1252 and invalid UTF-8.
		got := DecodeBody([]byte{0x93, 'h', 'i', 0x94})
		assert.Equal(t, "“hi”", got)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "", DecodeBody(nil))
	})

	t.Run("never returns empty for non-empty input", func(t *testing.T) {
		got := DecodeBody([]byte{0xff, 0xfe, 0x00, 0x81})
		assert.NotEmpty(t, got)
	})
}
