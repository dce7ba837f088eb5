/*
errors.go - Centralized error types for the allowance engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers inspect them with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Denial - The trip is not eligible for any allowance (business outcome)
  2. Lookup - A repository has no definition for a country (data error)
  3. Chain  - A chain definition cannot be built (configuration error)

Both denial and lookup errors stop the rule chain. Neither is retried
internally.

SEE ALSO:
  - calculator.go: Converts denied outcomes into DeniedError
  - rules.go: RepositoryDrivenRule propagates RuleNotFoundError
*/
package allowance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoAllowance is returned when a rule denies the allowance for a trip.
	ErrNoAllowance = errors.New("no allowance")

	// ErrRuleNotFound is returned when no rule definition exists for a country.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrUnknownRuleType is returned by chain factories for unsupported rule types.
	ErrUnknownRuleType = errors.New("unknown rule type")

	// ErrInvalidChain is returned when a chain definition is malformed.
	ErrInvalidChain = errors.New("invalid rule chain")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DeniedError reports which rule denied the allowance and why.
type DeniedError struct {
	Rule   string
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("no allowance: %s (rule %s)", e.Reason, e.Rule)
}

func (e *DeniedError) Unwrap() error {
	return ErrNoAllowance
}

// RuleNotFoundError names the country that had no definition.
type RuleNotFoundError struct {
	Country string
}

func (e *RuleNotFoundError) Error() string {
	return fmt.Sprintf("rule not found for country %q", e.Country)
}

func (e *RuleNotFoundError) Unwrap() error {
	return ErrRuleNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsDenied returns true if the error is a denial outcome.
func IsDenied(err error) bool {
	return errors.Is(err, ErrNoAllowance)
}

// IsNotFound returns true if the error indicates a missing rule definition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnknownRuleType) ||
		errors.Is(err, ErrInvalidChain)
}
