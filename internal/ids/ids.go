// Package ids generates the opaque 128-bit identifiers used for every
// entity in the data model (§3: "Identifiers are opaque 128-bit values,
// generated server-side, stable across restarts").
package ids

import "github.com/google/uuid"

// New returns a fresh opaque identifier, rendered as a canonical UUID
// string. Callers never parse or interpret the value.
func New() string {
	return uuid.New().String()
}
