// Package keyname renders raw store keys for display.
package keyname

import (
	"encoding/hex"
	"unicode/utf8"
)

// Display returns a human-readable name for a raw key.
//
// Keys made only of ASCII letters, digits and ASCII punctuation are returned
// as text. Anything else, including spaces, control bytes, multi-byte runes
// and invalid UTF-8, is rendered as "0x" followed by two lowercase hex
// digits per byte. The rendering is lossy: a textual key that itself looks
// like "0x..." cannot be told apart from a hex rendering.
func Display(key []byte) string {
	if Printable(key) {
		return string(key)
	}
	return Hex(key)
}

// Printable reports whether key is valid UTF-8 made only of ASCII
// alphanumerics and ASCII punctuation. The empty key is printable.
func Printable(key []byte) bool {
	if !utf8.Valid(key) {
		return false
	}
	for _, b := range key {
		if !isAlnum(b) && !isPunct(b) {
			return false
		}
	}
	return true
}

// Hex renders key as "0x" followed by lowercase hex.
func Hex(key []byte) string {
	out := make([]byte, 2+hex.EncodedLen(len(key)))
	out[0], out[1] = '0', 'x'
	hex.Encode(out[2:], key)
	return string(out)
}

func isAlnum(b byte) bool {
	return ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

// isPunct matches the 32 ASCII punctuation characters in 0x21-0x2F,
// 0x3A-0x40, 0x5B-0x60 and 0x7B-0x7E.
func isPunct(b byte) bool {
	return ('!' <= b && b <= '/') || (':' <= b && b <= '@') || ('[' <= b && b <= '`') || ('{' <= b && b <= '~')
}
