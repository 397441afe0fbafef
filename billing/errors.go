/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All engine error types in one place. Callers distinguish two situations:

  1. InvalidConfiguration - the calculation cannot proceed (out-of-range
     billing start day, inverted date range, negative fee rate). Fatal to
     that calculation, surfaced immediately, never silently clamped.
  2. NoData - a non-fatal signal: the cycle has started but no interval data
     has arrived yet. Callers render an "awaiting data" state rather than a
     zeroed balance; zero and unknown are NOT the same thing.

  Data-source failures (network, auth, rate limiting) are deliberately absent:
  they belong to the fetch collaborator, which must not invoke the engine at
  all when a fetch fails.

USAGE:
  if errors.Is(err, billing.ErrInvalidConfiguration) { ... }

  var cfgErr *billing.InvalidConfigurationError
  if errors.As(err, &cfgErr) { log cfgErr.Field ... }
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidConfiguration is returned for out-of-range billing start days,
	// inverted fee date ranges, and negative fee rates.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNoData signals that a cycle has no interval data yet. Non-fatal;
	// callers render a pending state.
	ErrNoData = errors.New("no interval data for cycle")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidConfigurationError identifies which input was rejected and why.
type InvalidConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v (%s)", e.Field, e.Value, e.Reason)
}

func (e *InvalidConfigurationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// IsClientError returns true if the error is due to invalid caller input
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}
