package engine

import "errors"

// ErrDuplicateID is returned when an insert carries an identity that already exists.
var ErrDuplicateID = errors.New("duplicate _id")
