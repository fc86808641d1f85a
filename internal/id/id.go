package id

import (
	"github.com/gofrs/uuid/v5"
)

// New returns a random (version 4) UUID string.
func New() string {
	return uuid.Must(uuid.NewV4()).String()
}
