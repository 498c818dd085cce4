package watermill

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
	"github.com/oklog/ulid"
)

// NewUUID returns a new UUID Version 4.
// It is used for messages consumed without the UUID header.
func NewUUID() string {
	return uuid.New().String()
}

// NewShortUUID returns a new short UUID, used for AMQP consumer tags.
func NewShortUUID() string {
	return shortuuid.New()
}

// NewULID returns a new ULID. Activation runs are identified by it, so they sort by start time.
func NewULID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
