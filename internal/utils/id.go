package utils

import "github.com/google/uuid"

// NewID returns a random connection id.
func NewID() string {
	return uuid.NewString()
}

// NewBoardID returns an id for a freshly created board. Board ids are
// lowercase, so they survive normalization unchanged.
func NewBoardID() string {
	return uuid.NewString()
}
