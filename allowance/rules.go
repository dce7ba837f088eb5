/*
rules.go - Built-in rule variants

AVAILABLE RULES:
  GeneralRule:          Eligibility gate (weekend trips, short working days)
  FixedFactorRule:      Multiply once when the trip is longer than a threshold
  TieredReductionRule:  Subtract a fixed amount per duration tier (cumulative)
  RepositoryDrivenRule: Like FixedFactorRule, parameters from a RuleRepository

THRESHOLDS:
  All thresholds are strict: a rule with DaysThreshold 7 fires for 8 days,
  not for 7.

SEE ALSO:
  - rule.go: Rule contract
  - countries/: Country presets built from these variants
*/
package allowance

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// GENERAL RULE - Eligibility gate
// =============================================================================

const DefaultMinHours = 8

// DefaultWeekendDays are the days on which no allowance is paid.
var DefaultWeekendDays = []time.Weekday{time.Sunday, time.Saturday}

// GeneralRule denies the allowance for trips starting on a weekend day or
// with fewer than MinHours worked. It never changes the value itself.
type GeneralRule struct {
	WeekendDays []time.Weekday
	MinHours    int
}

// NewGeneralRule returns a GeneralRule with the default weekend and the
// 8-hour minimum.
func NewGeneralRule() *GeneralRule {
	return &GeneralRule{
		WeekendDays: slices.Clone(DefaultWeekendDays),
		MinHours:    DefaultMinHours,
	}
}

func (r *GeneralRule) Name() string { return "general" }

func (r *GeneralRule) Apply(_ context.Context, current Allowance, trip TripContext) (Outcome, error) {
	if slices.Contains(r.WeekendDays, trip.Weekday()) {
		return Denied(fmt.Sprintf("trip on %s", strings.ToLower(trip.Weekday().String()))), nil
	}
	if trip.Hours() < r.MinHours {
		return Denied(fmt.Sprintf("%d hours worked, minimum is %d", trip.Hours(), r.MinHours)), nil
	}
	return Unchanged(current), nil
}

// =============================================================================
// FIXED FACTOR RULE - Single multiplier above a day threshold
// =============================================================================

// FixedFactorRule multiplies the value by Factor when the trip lasts more
// than DaysThreshold days.
type FixedFactorRule struct {
	Country       string
	DaysThreshold int
	Factor        decimal.Decimal
}

func NewFixedFactorRule(country string, daysThreshold int, factor decimal.Decimal) *FixedFactorRule {
	return &FixedFactorRule{Country: country, DaysThreshold: daysThreshold, Factor: factor}
}

func (r *FixedFactorRule) Name() string { return "fixed_factor:" + r.Country }

func (r *FixedFactorRule) Apply(_ context.Context, current Allowance, trip TripContext) (Outcome, error) {
	if trip.Days() > r.DaysThreshold {
		return Applied(current.Mul(r.Factor)), nil
	}
	return Unchanged(current), nil
}

// =============================================================================
// TIERED REDUCTION RULE - Cumulative flat reductions
// =============================================================================

// ReductionTier subtracts Amount when the trip lasts more than AfterDays.
type ReductionTier struct {
	AfterDays int
	Amount    decimal.Decimal
}

// TieredReductionRule checks every tier independently, in order. A trip long
// enough for several tiers gets all of their reductions.
type TieredReductionRule struct {
	Country string
	Tiers   []ReductionTier
}

func NewTieredReductionRule(country string, tiers ...ReductionTier) *TieredReductionRule {
	return &TieredReductionRule{Country: country, Tiers: tiers}
}

func (r *TieredReductionRule) Name() string { return "tiered_reduction:" + r.Country }

func (r *TieredReductionRule) Apply(_ context.Context, current Allowance, trip TripContext) (Outcome, error) {
	value := current
	fired := false
	for _, tier := range r.Tiers {
		if trip.Days() > tier.AfterDays {
			value = value.Sub(tier.Amount)
			fired = true
		}
	}
	if !fired {
		return Unchanged(current), nil
	}
	return Applied(value), nil
}

// =============================================================================
// REPOSITORY DRIVEN RULE - Parameters looked up per country
// =============================================================================

// RepositoryDrivenRule reads the threshold and factor for the trip's country
// from Repository. A missing definition is an error, never a silent skip.
type RepositoryDrivenRule struct {
	Repository RuleRepository
}

func NewRepositoryDrivenRule(repo RuleRepository) *RepositoryDrivenRule {
	return &RepositoryDrivenRule{Repository: repo}
}

func (r *RepositoryDrivenRule) Name() string { return "repository" }

func (r *RepositoryDrivenRule) Apply(ctx context.Context, current Allowance, trip TripContext) (Outcome, error) {
	def, err := r.Repository.RuleForCountry(ctx, trip.Country())
	if err != nil {
		return Outcome{}, err
	}
	if trip.Days() > def.DaysThreshold {
		return Applied(current.Mul(def.Factor)), nil
	}
	return Unchanged(current), nil
}

// Compile-time checks
var (
	_ Rule = (*GeneralRule)(nil)
	_ Rule = (*FixedFactorRule)(nil)
	_ Rule = (*TieredReductionRule)(nil)
	_ Rule = (*RepositoryDrivenRule)(nil)
	_ Rule = RuleFunc{}
)
