// Package normalize turns message text of unknown provenance into clean
// UTF-8 suitable for storage and search.
package normalize

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/net/html/charset"
)

var cleaner = strings.NewReplacer("\x00", "", "\r", "\n")

// Bytes decodes raw text and normalizes it. Input that is not valid UTF-8 is
// decoded using a detected charset; undecodable bytes become U+FFFD. It
// never fails and returns "" for empty input.
func Bytes(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	return clean(decode(raw))
}

// String normalizes text that has already been decoded once, re-decoding it
// if it still carries invalid UTF-8.
func String(s string) string {
	if s == "" {
		return ""
	}
	if utf8.ValidString(s) {
		return clean(s)
	}
	return Bytes([]byte(s))
}

func clean(s string) string {
	return cleaner.Replace(html.UnescapeString(s))
}

func decode(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	if s, ok := decodeDetected(raw); ok {
		return s
	}
	return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
}

// decodeDetected guesses the charset of raw and decodes it. ok is false when
// detection fails or names a charset we cannot decode.
func decodeDetected(raw []byte) (string, bool) {
	result, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil || result == nil || result.Charset == "" {
		return "", false
	}

	enc, _ := charset.Lookup(result.Charset)
	if enc == nil {
		return "", false
	}

	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	return strings.ToValidUTF8(string(out), string(utf8.RuneError)), true
}
