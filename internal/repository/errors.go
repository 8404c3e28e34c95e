package repository

import "errors"

// ErrNotFound indicates an entity was not located, or that a conditional
// mutation matched zero rows.
var ErrNotFound = errors.New("repository: not found")

// ErrConflict indicates a uniqueness violation.
var ErrConflict = errors.New("repository: conflict")
