package downloader

import (
	"errors"
	"fmt"
)

// ErrBatchInProgress is returned when a batch is submitted while another one runs.
var ErrBatchInProgress = errors.New("a batch is already in progress")

// ConfigurationError means the batch could not start: the request is invalid or the
// output folder cannot be created or written. No URL has been processed.
type ConfigurationError struct {
	Reason string // Human-readable explanation of what is misconfigured
	Err    error  // Underlying error, if any
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}

	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
