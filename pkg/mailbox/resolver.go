// Package mailbox maps email addresses to filesystem-safe mailbox
// identifiers and back. Every component that derives a path from an
// address must go through this package so the two storage backends and
// the migrator always agree on mailbox locations.
package mailbox

import "strings"

const (
	atMarker  = "_at_"
	dotMarker = "_dot_"
)

// ToIdentifier converts an email address into an identifier that is
// safe as a single path segment: every '@' becomes "_at_" and every
// '.' becomes "_dot_".
func ToIdentifier(address string) string {
	id := strings.ReplaceAll(address, "@", atMarker)
	return strings.ReplaceAll(id, ".", dotMarker)
}

// ToAddress is the inverse of ToIdentifier. The mapping is lossy in
// principle: an address whose local part literally contains "_at_" or
// "_dot_" cannot be distinguished from its encoded form. This is a
// documented limitation, not corrected here.
func ToAddress(identifier string) string {
	addr := strings.ReplaceAll(identifier, atMarker, "@")
	return strings.ReplaceAll(addr, dotMarker, ".")
}
