// Package voice outlines the voice-cloning workflow. Cloning is
// provider-dependent and requires uploading a reference sample to the
// synthesis provider; it is not implemented.
package voice

import (
	"context"
	"errors"
)

// ErrNotImplemented signals that voice cloning is not available.
var ErrNotImplemented = errors.New("voice: cloning not implemented")

// EnsureProfile returns the existing voice profile id for a user, or "" when
// none exists.
func EnsureProfile(ctx context.Context, userID string) (string, error) {
	return "", nil
}

// Clone uploads a reference sample and returns a new voice profile id.
func Clone(ctx context.Context, userID, samplePath string) (string, error) {
	return "", ErrNotImplemented
}
