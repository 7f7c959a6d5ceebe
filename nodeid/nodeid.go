// Package nodeid defines the opaque worker identity used across the wire
// protocol and the coordinator's worker registry.
package nodeid

import (
	"github.com/google/uuid"
)

// ID is a 128-bit worker identity, generated once per worker process and
// never reassigned or persisted. Equality is plain Go array equality, so ID
// can be used directly as a map key with no custom hash function.
type ID [16]byte

// New generates a fresh, random (UUIDv4) node identity.
func New() ID {
	return ID(uuid.New())
}

// String renders the id in canonical UUID form, for logging.
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether id is the zero value (never assigned by New).
func (id ID) IsZero() bool {
	return id == ID{}
}
