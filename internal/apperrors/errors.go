// Package apperrors defines the tagged error kinds the core surfaces.
// Callers use errors.Is/errors.As; nothing in this package knows about
// HTTP status codes — that mapping, if ever needed, lives at a boundary
// this package doesn't import.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel kinds callers match against via errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrObjectExists          = errors.New("object exists")
	ErrValueOutOfRange      = errors.New("value out of range")
	ErrBrokerUnavailable    = errors.New("broker unavailable")
	ErrCSVDecode            = errors.New("csv decode error")
	ErrMissingCSVHeaders    = errors.New("missing csv headers")
	ErrModelAlreadyTraining = errors.New("model already training")
)

// NotFound wraps ErrNotFound with the entity/key that was missing.
func NotFound(entity string, key any) error {
	return fmt.Errorf("%s %v: %w", entity, key, ErrNotFound)
}

// ObjectExists wraps ErrObjectExists with the entity/natural-key that conflicted.
func ObjectExists(entity string, key any) error {
	return fmt.Errorf("%s %v: %w", entity, key, ErrObjectExists)
}

// ValueOutOfRange wraps ErrValueOutOfRange with the offending field/value.
func ValueOutOfRange(field string, value any) error {
	return fmt.Errorf("%s=%v: %w", field, value, ErrValueOutOfRange)
}

// MissingCSVHeaders wraps ErrMissingCSVHeaders naming the absent column.
func MissingCSVHeaders(column string) error {
	return fmt.Errorf("missing column %q: %w", column, ErrMissingCSVHeaders)
}

// ModelAlreadyTraining wraps ErrModelAlreadyTraining for a given model_dir.
func ModelAlreadyTraining(modelDir string) error {
	return fmt.Errorf("model_dir %q: %w", modelDir, ErrModelAlreadyTraining)
}
