// Package uuid generates the time-ordered identifiers attached to selections
// and API requests.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUID v7 strings.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// NewRequestID returns a UUID7 string, falling back to a random UUIDv4 when
// the v7 generator fails. Request tracing must never fail a request.
func (g Generator) NewRequestID() string {
	if id, err := g.NewID(); err == nil {
		return id
	}
	return uuid.NewString()
}
