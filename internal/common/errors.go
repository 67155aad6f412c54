// Package common defines sentinel errors shared by the registry and the sync
// engine. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Validation errors.
	ErrorInvalidUserID = errors.New("invalid user id")
)
