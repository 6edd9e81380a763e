package models

import "strings"

// NullAddress is the all zero address, treated the same as an empty identity.
const NullAddress = "0x0000000000000000000000000000000000000000"

// Identity names an actor, typically a 0x prefixed hex address.
type Identity string

// IsZero reports whether the identity is the null identity.
func (i Identity) IsZero() bool {
	s := strings.TrimSpace(string(i))
	return s == "" || strings.EqualFold(s, NullAddress)
}

// Normalize trims surrounding space and lowercases 0x prefixed hex
// addresses, so checksummed and plain spellings of an address compare
// equal. Any other identity is opaque and only trimmed.
func (i Identity) Normalize() Identity {
	s := strings.TrimSpace(string(i))
	if isHexAddress(s) {
		return Identity(strings.ToLower(s))
	}
	return Identity(s)
}

func (i Identity) String() string {
	return string(i)
}

func isHexAddress(s string) bool {
	if len(s) < 3 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return false
	}
	for _, c := range []byte(s[2:]) {
		switch {
		case '0' <= c && c <= '9', 'a' <= c && c <= 'f', 'A' <= c && c <= 'F':
		default:
			return false
		}
	}
	return true
}
