package id

import (
	"github.com/google/uuid"
)

// Generate generates a new unique ID.
func Generate() string {
	return uuid.New().String()
}

// GenerateShort generates a shorter unique ID (first 8 chars of UUID).
func GenerateShort() string {
	return uuid.New().String()[:8]
}

// WithPrefix generates a short ID with a readable prefix, e.g.
// "local-1a2b3c4d" for synthetic builds started from the CLI.
func WithPrefix(prefix string) string {
	return prefix + "-" + GenerateShort()
}
