package models

import (
	"fmt"
	"unicode/utf8"
)

// CheckText returns an InvalidInput error naming the first field whose
// value is not valid UTF-8. Fields are given as name, value pairs.
// Strings recorded in the audit log must be valid UTF-8 for their JSON
// encoding, and so the record hash, to survive a reload.
func CheckText(fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if !utf8.ValidString(fields[i+1]) {
			return NewError(KindInvalidInput, fmt.Sprintf("%s is not valid UTF-8", fields[i]))
		}
	}
	return nil
}
