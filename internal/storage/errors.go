package storage

import "errors"

// ErrNotFound is returned by Get when no item exists for the path.
var ErrNotFound = errors.New("history item not found")
