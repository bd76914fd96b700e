package parser

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// RepairEncoding undoes a single UTF-8 -> Latin-1 mis-decode: text made only
// of Latin-1 runes is re-encoded as ISO-8859-1 and kept when those bytes read
// back as valid UTF-8. Any other valid UTF-8 is already clean and returned
// unchanged. Only input that is not valid UTF-8 yields an EncodingRepairFailed
// error, alongside the original text.
func RepairEncoding(text string) (string, error) {
	if isASCII(text) {
		return text, nil
	}
	if !utf8.ValidString(text) {
		return text, &ParseError{
			Kind:  EncodingRepairFailed,
			Field: "synopsis",
			Value: truncate(strings.ToValidUTF8(text, "�"), 32),
		}
	}
	if !isLatin1(text) {
		return text, nil
	}

	raw, err := charmap.ISO8859_1.NewEncoder().String(text)
	if err != nil || !utf8.ValidString(raw) {
		return text, nil
	}
	return raw, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func isLatin1(s string) bool {
	for _, r := range s {
		if r > 0xFF {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
