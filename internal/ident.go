package internal

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewTokenID returns a fresh unique token identifier (jti claim).
func NewTokenID() string {
	return uuid.NewString()
}

// NewFamilyID returns a fresh family identifier for a login event. Family
// identifiers are ULIDs so that audit trails sort chronologically.
func NewFamilyID(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now.UTC()), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
