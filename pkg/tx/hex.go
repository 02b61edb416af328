package tx

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// ParseHex decodes a hex send string such as "48 69 0d 0a". Whitespace is
// ignored and the remaining digits must pair up into whole bytes.
func ParseHex(text string) ([]byte, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)

	if digits == "" {
		return nil, fmt.Errorf("no hex digits")
	}

	for i, r := range digits {
		if !isHexDigit(r) {
			return nil, fmt.Errorf("invalid hex digit %q at position %d", r, i)
		}
	}

	if len(digits)%2 != 0 {
		return nil, fmt.Errorf("odd number of hex digits: %d", len(digits))
	}

	data, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("failed to decode hex: %w", err)
	}

	return data, nil
}

// FormatHex renders bytes as space separated upper-case hex pairs
func FormatHex(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
