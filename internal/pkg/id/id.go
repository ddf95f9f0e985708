package id

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs are lexicographically sortable
// by creation time and safe for use as DynamoDB partition keys.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// NewToken returns a random (v4) UUID string: 122 bits of entropy, suitable
// for opaque flow tokens and token identifiers.
func NewToken() string {
	return uuid.NewString()
}
