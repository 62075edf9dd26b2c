package repository

import "errors"

// ErrNotFound indicates the requested entity does not exist in the store.
var ErrNotFound = errors.New("entity not found")

// ErrConflict indicates a uniqueness constraint was violated.
var ErrConflict = errors.New("entity already exists")
