package messages

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidIdentifier = errors.New("invalid message ID format")
	ErrNotFound          = errors.New("message not found")
	ErrMissingFields     = errors.New("message is missing required fields")
	ErrNoUpdateFields    = errors.New("no valid update data provided")
	ErrStoreUnavailable  = errors.New("message store unavailable")
	ErrInvalidPayload    = errors.New("invalid message payload")
)

// MissingFieldsError names the required fields a stored message lacks.
// It matches ErrMissingFields under errors.Is.
type MissingFieldsError struct {
	ID     string
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("message %s is missing required fields: %s", e.ID, strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Is(target error) bool { return target == ErrMissingFields }

type notFoundError struct{ id string }

func (e notFoundError) Error() string { return fmt.Sprintf("message with ID %s not found", e.id) }

func (e notFoundError) Is(target error) bool { return target == ErrNotFound }

func notFound(id string) error { return notFoundError{id: id} }

// unavailable wraps an adapter failure so it matches ErrStoreUnavailable and keeps the cause.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
