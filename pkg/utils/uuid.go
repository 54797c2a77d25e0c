package utils

import (
	"github.com/google/uuid"
)

// GenerateUUID returns a random (version 4) UUID string.
func GenerateUUID() string {
	return uuid.NewString()
}

// NewRunID returns an identifier for a batch run. Version 7 UUIDs sort by
// creation time, which keeps run listings in order.
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return GenerateUUID()
	}
	return id.String()
}
