package shared

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName canonicalizes a display name coming from an upstream catalog.
//
// The name is converted to Unicode NFC and runs of whitespace are collapsed, so visually identical names
// stored from different payloads compare equal byte for byte. Case is preserved.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(norm.NFC.String(name)), " ")
}

// NameKey returns a case-insensitive comparison key for a display name.
func NameKey(name string) string {
	return strings.ToLower(NormalizeName(name))
}
