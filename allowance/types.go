/*
Package allowance provides the per-diem allowance rule engine.

PURPOSE:
  Computes a travel allowance by feeding a base value through an ordered
  chain of rules. Each rule inspects the trip (country, date, duration,
  hours worked) and either adjusts the value, leaves it alone, or denies
  the allowance for the whole trip.

KEY CONCEPTS IN THIS FILE (types.go):
  - Allowance: The numeric per-diem value being computed
  - TripContext: Read-only trip metadata consumed by rules
  - RuleDefinition: Country parameters served by a RuleRepository

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so 1.75 * 100 is exactly 175
  2. Ownership: The Calculator owns the current value and hands it to each
     rule; rules return a new value instead of mutating shared state
  3. Immutability: TripContext has no setters

USAGE:
  trip := allowance.NewTripContext("PL", date, 8, 9)
  calc := allowance.NewCalculator(allowance.NewAllowanceFromInt(100), trip)
  calc.AddRule(allowance.NewGeneralRule())
  calc.AddRule(countries.RulePL())
  err := calc.Compute(ctx)

SEE ALSO:
  - rule.go: Rule contract and outcomes
  - rules.go: Built-in rule variants
  - calculator.go: The orchestrator
*/
package allowance

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ALLOWANCE - The value being computed
// =============================================================================

// Allowance is the per-diem value. No bounds are enforced; a chain that
// produces a negative value is a valid outcome.
type Allowance struct {
	Value decimal.Decimal
}

func NewAllowance(value float64) Allowance {
	return Allowance{Value: decimal.NewFromFloat(value)}
}

func NewAllowanceFromInt(value int64) Allowance {
	return Allowance{Value: decimal.NewFromInt(value)}
}

// NewAllowanceFromString parses a decimal string such as "120.50".
func NewAllowanceFromString(s string) (Allowance, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Allowance{}, err
	}
	return Allowance{Value: d}, nil
}

func (a Allowance) Mul(f decimal.Decimal) Allowance { return Allowance{Value: a.Value.Mul(f)} }
func (a Allowance) Sub(d decimal.Decimal) Allowance { return Allowance{Value: a.Value.Sub(d)} }
func (a Allowance) Equal(b Allowance) bool { return a.Value.Equal(b.Value) }
func (a Allowance) IsNegative() bool { return a.Value.IsNegative() }
func (a Allowance) String() string { return a.Value.String() }

// =============================================================================
// TRIP CONTEXT - Read-only trip metadata
// =============================================================================

// TripContext describes one trip. Negative days or hours are accepted and
// simply flow through the rule arithmetic; callers validate before
// construction if they need to.
type TripContext struct {
	country string
	date    time.Time
	days    int
	hours   int
}

func NewTripContext(country string, date time.Time, days, hours int) TripContext {
	return TripContext{country: country, date: date, days: days, hours: hours}
}

func (t TripContext) Country() string { return t.country }
func (t TripContext) Date() time.Time { return t.date }
func (t TripContext) Weekday() time.Weekday { return t.date.Weekday() }
func (t TripContext) Days() int { return t.days }
func (t TripContext) Hours() int { return t.hours }

// =============================================================================
// RULE DEFINITION - Repository-served parameters
// =============================================================================

// RuleDefinition holds the threshold and factor for one country.
type RuleDefinition struct {
	Country       string
	DaysThreshold int
	Factor        decimal.Decimal
}
