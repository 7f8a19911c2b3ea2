package repository

import "errors"

// ErrNotFound is returned by in-memory repository fakes when a lookup
// misses; pgx-backed repositories return pgx.ErrNoRows directly.
var ErrNotFound = errors.New("repository: not found")
