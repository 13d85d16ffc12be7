package strategy

import (
	"errors"
	"fmt"

	"github.com/italolelis/youcast/internal/engine"
)

// StrategyError is the failure of a single attempt. The cascade recovers from it
// by moving to the next attempt.
type StrategyError struct {
	Position int     // 1-based position of the attempt in the cascade
	Attempt  Attempt // The strategy that failed
	Err      error   // Underlying engine error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy %d (%s) failed: %s", e.Position, e.Attempt.Selector, e.Reason())
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}

// Reason is the human-readable cause, preferring the engine's own explanation.
func (e *StrategyError) Reason() string {
	var failure *engine.Failure
	if errors.As(e.Err, &failure) && failure.Reason != "" {
		return failure.Reason
	}

	if e.Err == nil {
		return "unknown error"
	}

	return e.Err.Error()
}

// ExhaustedError means every attempt of the cascade failed for a URL.
type ExhaustedError struct {
	URL      string         // The URL being downloaded
	Attempts int            // Number of attempts made
	Last     *StrategyError // The failure of the final attempt
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d strategies failed for %s: %s", e.Attempts, e.URL, e.Reason())
}

func (e *ExhaustedError) Unwrap() error {
	if e.Last == nil {
		return nil
	}

	return e.Last
}

// Reason is the last attempt's failure reason.
func (e *ExhaustedError) Reason() string {
	if e.Last == nil {
		return "no strategy available"
	}

	return e.Last.Reason()
}
