// Package uid generates the random ids elasto needs when a backend
// protocol requires the client to invent one; the Azure lease builders
// use it for the proposed-lease-id.
package uid

import (
	"github.com/google/uuid"
)

// New returns a fresh RFC 4122 random UUID string.
func New() string {
	return uuid.NewString()
}
